package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/munnme/orangecarrier2-bot/bridge"
)

type WSFrameOptions struct {
	URL    string // websocket endpoint, e.g. wss://hub.orangecarrier.com/live
	Dialer *websocket.Dialer
}

// WSFrame consumes the hub's raw websocket channel: each text frame is a
// JSON array [event_type, payload] with no Socket.IO framing around it.
// Frames are forwarded as-is; shape decisions belong to the normalizer.
type WSFrame struct {
	rawURL string
	dialer *websocket.Dialer
}

func NewWSFrame(opts WSFrameOptions) (*WSFrame, error) {
	rawURL := strings.TrimSpace(opts.URL)
	if rawURL == "" {
		return nil, fmt.Errorf("websocket url is required")
	}
	dialer := opts.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = 15 * time.Second
		dialer = &d
	}
	return &WSFrame{rawURL: rawURL, dialer: dialer}, nil
}

func (t *WSFrame) Name() string { return "wsframe" }

func (t *WSFrame) Run(ctx context.Context, sess Session) error {
	u, err := url.Parse(t.rawURL)
	if err != nil {
		return fmt.Errorf("parse websocket url: %w", err)
	}
	if sess.Token != "" {
		q := u.Query()
		q.Set("token", sess.Token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sess.SetState(StateConnected)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		sess.Emit(bridge.RawEvent{Kind: bridge.RawFrame, Payload: json.RawMessage(data)})
	}
}
