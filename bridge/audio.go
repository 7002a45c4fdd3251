package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

const (
	defaultAudioTimeout  = 30 * time.Second
	defaultAudioMaxBytes = 20 * 1024 * 1024
)

type AudioDownloaderOptions struct {
	HTTPClient *http.Client
	Dir        string // temp dir; defaults to os.TempDir()
	MaxBytes   int64
}

// AudioDownloader fetches a remote audio attachment into a scoped temp file.
// The returned cleanup deletes the file after delivery, success or failure,
// so attachments never accumulate on disk.
type AudioDownloader struct {
	http     *http.Client
	dir      string
	maxBytes int64
}

func NewAudioDownloader(opts AudioDownloaderOptions) *AudioDownloader {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultAudioTimeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultAudioMaxBytes
	}
	return &AudioDownloader{
		http:     httpClient,
		dir:      strings.TrimSpace(opts.Dir),
		maxBytes: maxBytes,
	}
}

func (d *AudioDownloader) Fetch(ctx context.Context, rawURL string) (string, func(), error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", nil, fmt.Errorf("parse audio url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", nil, fmt.Errorf("unsupported audio url scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", nil, fmt.Errorf("audio download http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	pattern := "audio_*" + audioExt(u.Path)
	f, err := os.CreateTemp(d.dir, pattern)
	if err != nil {
		return "", nil, err
	}
	dstPath := f.Name()
	cleanup := func() { _ = os.Remove(dstPath) }

	limited := io.LimitReader(resp.Body, d.maxBytes+1)
	n, err := io.Copy(f, limited)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if n > d.maxBytes {
		cleanup()
		return "", nil, fmt.Errorf("audio file too large (>%d bytes)", d.maxBytes)
	}
	return dstPath, cleanup, nil
}

func audioExt(urlPath string) string {
	switch ext := strings.ToLower(path.Ext(urlPath)); ext {
	case ".mp3", ".ogg", ".m4a":
		return ext
	default:
		return ".mp3"
	}
}
