package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Telegram hard limits. Longer payloads are truncated, not rejected.
const (
	MaxMessageRunes = 4096
	MaxCaptionRunes = 1024
)

type SendTextFunc func(ctx context.Context, text string) error

type SendAudioFunc func(ctx context.Context, audioPath, caption string) error

type SinkAdapterOptions struct {
	SendText  SendTextFunc
	SendAudio SendAudioFunc
	Logger    *slog.Logger
}

// SinkAdapter wraps the Telegram send functions with the containment the
// pipeline relies on: truncation to channel limits and a text fallback when
// an audio send fails. A dropped delivery is accepted data loss.
type SinkAdapter struct {
	sendText  SendTextFunc
	sendAudio SendAudioFunc
	logger    *slog.Logger
}

func NewSinkAdapter(opts SinkAdapterOptions) (*SinkAdapter, error) {
	if opts.SendText == nil {
		return nil, fmt.Errorf("send text func is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SinkAdapter{
		sendText:  opts.SendText,
		sendAudio: opts.SendAudio,
		logger:    logger,
	}, nil
}

func (a *SinkAdapter) Deliver(ctx context.Context, text, audioPath string) error {
	if a == nil || a.sendText == nil {
		return fmt.Errorf("sink adapter is not initialized")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}

	audioPath = strings.TrimSpace(audioPath)
	if audioPath != "" && a.sendAudio != nil && fileExists(audioPath) {
		err := a.sendAudio(ctx, audioPath, TruncateRunes(text, MaxCaptionRunes))
		if err == nil {
			return nil
		}
		// Fall back to a plain text send rather than losing the event.
		a.logger.Warn("sink_audio_send_error", "path", audioPath, "error", err.Error())
	}
	return a.sendText(ctx, TruncateRunes(text, MaxMessageRunes))
}

func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
