package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/munnme/orangecarrier2-bot/bridge"
	"github.com/munnme/orangecarrier2-bot/internal/retryutil"
)

const defaultBackoff = 5 * time.Second

type SupervisorOptions struct {
	Transport Transport
	Token     string
	Backoff   time.Duration
	Logger    *slog.Logger
	Emit      func(bridge.RawEvent)
	// Notify forwards connectivity changes through the delivery sink; the
	// destination chat doubles as the operator's status console.
	Notify func(ctx context.Context, text string)
}

// Supervisor wraps a transport in the never-give-up reconnect loop: connect,
// consume until error, wait a fixed backoff, repeat. It also owns the
// runtime credential cell; SetToken tears down the live session so the next
// attempt dials with the new token.
type Supervisor struct {
	transport Transport
	backoff   time.Duration
	logger    *slog.Logger
	emit      func(bridge.RawEvent)
	notify    func(ctx context.Context, text string)

	mu         sync.Mutex
	token      string
	state      State
	cancelConn context.CancelFunc
}

func NewSupervisor(opts SupervisorOptions) (*Supervisor, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.Emit == nil {
		return nil, fmt.Errorf("emit func is required")
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		transport: opts.Transport,
		backoff:   backoff,
		logger:    logger,
		emit:      opts.Emit,
		notify:    opts.Notify,
		token:     strings.TrimSpace(opts.Token),
		state:     StateDisconnected,
	}, nil
}

// Run loops until ctx is done. Transport errors are never fatal; every exit
// from the transport goes back through disconnected, backoff, connecting.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			s.logger.Info("supervisor_stop", "transport", s.transport.Name(), "reason", "context_canceled")
			return nil
		}

		s.setState(ctx, StateConnecting)
		attemptCtx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancelConn = cancel
		token := s.token
		s.mu.Unlock()

		err := s.transport.Run(attemptCtx, Session{
			Token:    token,
			Emit:     s.emit,
			SetState: func(st State) { s.setState(ctx, st) },
		})
		cancel()
		s.mu.Lock()
		s.cancelConn = nil
		s.mu.Unlock()
		s.setState(ctx, StateDisconnected)

		if ctx.Err() != nil {
			s.logger.Info("supervisor_stop", "transport", s.transport.Name(), "reason", "context_canceled")
			return nil
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("transport_error", "transport", s.transport.Name(), "error", err.Error())
		}
		if err := retryutil.SleepWithContext(ctx, s.backoff); err != nil {
			s.logger.Info("supervisor_stop", "transport", s.transport.Name(), "reason", "context_canceled")
			return nil
		}
	}
}

// SetToken updates the credential cell and aborts the live session so the
// reconnect loop dials again with the new token. The newer credential always
// wins: the old connection is cancelled before the next attempt starts.
func (s *Supervisor) SetToken(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	cancel := s.cancelConn
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.logger.Info("supervisor_token_updated", "transport", s.transport.Name())
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(ctx context.Context, next State) {
	s.mu.Lock()
	prev := s.state
	if prev == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()

	s.logger.Info("transport_state", "transport", s.transport.Name(), "from", string(prev), "to", string(next))
	if s.notify == nil || ctx.Err() != nil {
		return
	}
	switch {
	case next == StateConnected:
		s.notify(ctx, "Connected to OrangeCarrier upstream.")
	case next == StateAuthenticated:
		s.notify(ctx, "Upstream authentication succeeded.")
	case next == StateDisconnected && wasLive(prev):
		s.notify(ctx, "Lost upstream connection. Reconnecting...")
	}
}

func wasLive(st State) bool {
	switch st {
	case StateConnected, StateAuthenticating, StateAuthenticated:
		return true
	default:
		return false
	}
}
