// Package transport owns the upstream side of the bridge: the three channel
// variants that OrangeCarrier has exposed over time (Socket.IO, raw
// websocket frames, HTML polling) and the supervisor that keeps whichever
// one is configured connected forever.
package transport

import (
	"context"

	"github.com/munnme/orangecarrier2-bot/bridge"
)

type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateConnected      State = "connected"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
)

// Session carries the per-attempt wiring a transport needs: the credential
// snapshot taken at connect time, the raw-event outlet, and the state
// reporter. Token updates never mutate a running session; the supervisor
// tears the session down and starts a new one.
type Session struct {
	Token    string
	Emit     func(bridge.RawEvent)
	SetState func(State)
}

// Transport runs one connection (or polling) lifetime and returns when the
// connection drops, the poll loop is cancelled, or a fatal protocol error
// occurs. The supervisor, not the transport, decides what happens next.
type Transport interface {
	Name() string
	Run(ctx context.Context, sess Session) error
}
