// Package tokenstore persists the runtime-updatable upstream token so a
// /settoken issued over Telegram survives process restarts.
package tokenstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Store struct {
	path string
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("token file path is required")
	}
	return &Store{path: filepath.Clean(path)}, nil
}

// Load returns the stored token, with ok=false when no token file exists.
func (s *Store) Load() (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read token file %s: %w", s.path, err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// Save writes the token atomically: write to a temp file in the same
// directory, fsync, then rename over the target.
func (s *Store) Save(token string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure token dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", s.path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}
	defer cleanup()

	if _, err := tmp.WriteString(strings.TrimSpace(token) + "\n"); err != nil {
		return fmt.Errorf("write temp for %s: %w", s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp for %s: %w", s.path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("chmod temp for %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", s.path, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp for %s: %w", s.path, err)
	}
	return nil
}
