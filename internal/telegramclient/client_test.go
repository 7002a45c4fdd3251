package telegramclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSendMessage(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "tok")
	if err := c.SendMessage(context.Background(), 12345, "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if gotPath != "/bottok/sendMessage" {
		t.Fatalf("path mismatch: got %q", gotPath)
	}
	if gotBody.ChatID != 12345 {
		t.Fatalf("chat_id mismatch: got %d want 12345", gotBody.ChatID)
	}
	if gotBody.Text != "hello" {
		t.Fatalf("text mismatch: got %q want %q", gotBody.Text, "hello")
	}
}

func TestSendMessageRejectsNotOK(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": false}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "tok")
	if err := c.SendMessage(context.Background(), 1, "hello"); err == nil {
		t.Fatalf("SendMessage() expected error for ok=false")
	}
}

func TestSendAudioMultipart(t *testing.T) {
	t.Parallel()

	audioPath := filepath.Join(t.TempDir(), "call.mp3")
	if err := os.WriteFile(audioPath, []byte("mp3 bytes"), 0o600); err != nil {
		t.Fatalf("write temp audio: %v", err)
	}

	var gotChatID, gotCaption, gotFilename string
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotChatID = r.FormValue("chat_id")
		gotCaption = r.FormValue("caption")
		f, hdr, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotFilename = hdr.Filename
			gotFile, _ = io.ReadAll(f)
			_ = f.Close()
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "tok")
	if err := c.SendAudio(context.Background(), 12345, audioPath, "New call"); err != nil {
		t.Fatalf("SendAudio() error = %v", err)
	}
	if gotChatID != "12345" {
		t.Fatalf("chat_id mismatch: got %q", gotChatID)
	}
	if gotCaption != "New call" {
		t.Fatalf("caption mismatch: got %q", gotCaption)
	}
	if gotFilename != "call.mp3" {
		t.Fatalf("filename mismatch: got %q", gotFilename)
	}
	if string(gotFile) != "mp3 bytes" {
		t.Fatalf("file content mismatch: got %q", string(gotFile))
	}
}

func TestGetUpdatesAdvancesOffset(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true, "result": [
			{"update_id": 10, "message": {"message_id": 1, "chat": {"id": 5}, "text": "/ping"}},
			{"update_id": 11, "message": {"message_id": 2, "chat": {"id": 5}, "text": "/status"}}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "tok")
	updates, next, err := c.GetUpdates(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("GetUpdates() error = %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("updates mismatch: got %d want 2", len(updates))
	}
	if next != 12 {
		t.Fatalf("offset mismatch: got %d want 12", next)
	}
	if updates[0].Message.Text != "/ping" {
		t.Fatalf("text mismatch: got %q", updates[0].Message.Text)
	}
}
