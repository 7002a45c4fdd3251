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

// Engine.IO / Socket.IO v4 packet prefixes, as seen on the wire when the
// hub speaks websocket-only Socket.IO.
const (
	eioOpen = "0"
	eioPing = "2"
	eioPong = "3"

	sioConnect      = "40"
	sioDisconnect   = "41"
	sioEvent        = "42"
	sioConnectError = "44"
)

const socketIOWriteTimeout = 10 * time.Second

type SocketIOOptions struct {
	BaseURL string // e.g. https://hub.orangecarrier.com
	Dialer  *websocket.Dialer
}

// SocketIO speaks the hub's Socket.IO channel over a single websocket:
// engine.io handshake, namespace connect, then an auth emit answered by an
// auth_response event. All events, auth_response included, flow out through
// Session.Emit so the pipeline sees them.
type SocketIO struct {
	baseURL string
	dialer  *websocket.Dialer
}

func NewSocketIO(opts SocketIOOptions) (*SocketIO, error) {
	baseURL := strings.TrimSpace(strings.TrimRight(opts.BaseURL, "/"))
	if baseURL == "" {
		return nil, fmt.Errorf("socketio base url is required")
	}
	dialer := opts.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = 15 * time.Second
		dialer = &d
	}
	return &SocketIO{baseURL: baseURL, dialer: dialer}, nil
}

func (t *SocketIO) Name() string { return "socketio" }

func (t *SocketIO) Run(ctx context.Context, sess Session) error {
	wsURL, err := socketIOURL(t.baseURL, sess.Token)
	if err != nil {
		return err
	}
	conn, _, err := t.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("socketio dial: %w", err)
	}
	defer conn.Close()
	// Unblock ReadMessage when the supervisor cancels the session.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("socketio read: %w", err)
		}
		if err := t.handlePacket(conn, sess, string(data)); err != nil {
			return err
		}
	}
}

func (t *SocketIO) handlePacket(conn *websocket.Conn, sess Session, pkt string) error {
	switch {
	case pkt == eioPing:
		return writeText(conn, eioPong)
	case strings.HasPrefix(pkt, sioConnect):
		sess.SetState(StateConnected)
		sess.SetState(StateAuthenticating)
		return t.emitAuth(conn, sess.Token)
	case strings.HasPrefix(pkt, sioEvent):
		name, payload, err := decodeSocketIOEvent(pkt[len(sioEvent):])
		if err != nil {
			// Malformed event packets are the normalizer's problem shape,
			// not a reason to drop the connection.
			sess.Emit(bridge.RawEvent{Kind: bridge.RawPush, Name: "malformed", Payload: json.RawMessage(pkt[len(sioEvent):])})
			return nil
		}
		if name == "auth_response" {
			sess.SetState(StateAuthenticated)
		}
		sess.Emit(bridge.RawEvent{Kind: bridge.RawPush, Name: name, Payload: payload})
		return nil
	case strings.HasPrefix(pkt, sioConnectError):
		return fmt.Errorf("socketio connect error: %s", strings.TrimSpace(pkt[len(sioConnectError):]))
	case strings.HasPrefix(pkt, sioDisconnect):
		return fmt.Errorf("socketio server disconnect")
	case strings.HasPrefix(pkt, eioOpen):
		// Engine.IO handshake; reply with the namespace connect.
		return writeText(conn, sioConnect)
	default:
		return nil
	}
}

func (t *SocketIO) emitAuth(conn *websocket.Conn, token string) error {
	packet, err := encodeSocketIOEvent("auth", map[string]string{"token": token})
	if err != nil {
		return err
	}
	return writeText(conn, packet)
}

func socketIOURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse socketio base url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported socketio scheme: %s", u.Scheme)
	}
	u.Path = "/socket.io/"
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func decodeSocketIOEvent(body string) (string, json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(body), &parts); err != nil {
		return "", nil, fmt.Errorf("socketio event decode: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("socketio event decode: empty array")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("socketio event decode: %w", err)
	}
	var payload json.RawMessage
	if len(parts) > 1 {
		payload = parts[1]
	}
	return name, payload, nil
}

func encodeSocketIOEvent(name string, payload any) (string, error) {
	arr := []any{name}
	if payload != nil {
		arr = append(arr, payload)
	}
	raw, err := json.Marshal(arr)
	if err != nil {
		return "", err
	}
	return sioEvent + string(raw), nil
}

func writeText(conn *websocket.Conn, s string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(socketIOWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, []byte(s))
}
