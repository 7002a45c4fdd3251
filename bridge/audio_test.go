package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestAudioDownloaderFetchAndCleanup(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mp3 bytes"))
	}))
	defer srv.Close()

	d := NewAudioDownloader(AudioDownloaderOptions{
		HTTPClient: srv.Client(),
		Dir:        t.TempDir(),
	})
	path, cleanup, err := d.Fetch(context.Background(), srv.URL+"/rec/call.mp3")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.HasSuffix(path, ".mp3") {
		t.Fatalf("path extension mismatch: got %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "mp3 bytes" {
		t.Fatalf("content mismatch: got %q", string(data))
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("cleanup did not remove file: %v", err)
	}
}

func TestAudioDownloaderRejectsNonHTTP(t *testing.T) {
	t.Parallel()

	d := NewAudioDownloader(AudioDownloaderOptions{Dir: t.TempDir()})
	if _, _, err := d.Fetch(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatalf("Fetch() expected error for non-http scheme")
	}
}

func TestAudioDownloaderRejectsOversizedFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	d := NewAudioDownloader(AudioDownloaderOptions{
		HTTPClient: srv.Client(),
		Dir:        t.TempDir(),
		MaxBytes:   10,
	})
	if _, _, err := d.Fetch(context.Background(), srv.URL+"/rec/big.mp3"); err == nil {
		t.Fatalf("Fetch() expected error for oversized file")
	}
}

func TestAudioDownloaderRejectsHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewAudioDownloader(AudioDownloaderOptions{
		HTTPClient: srv.Client(),
		Dir:        t.TempDir(),
	})
	if _, _, err := d.Fetch(context.Background(), srv.URL+"/rec/missing.mp3"); err == nil {
		t.Fatalf("Fetch() expected error for http 404")
	}
}
