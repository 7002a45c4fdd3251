package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/munnme/orangecarrier2-bot/bridge"
	"github.com/stretchr/testify/require"
)

func TestHTMLPollEmitsBlocksAndSurvivesErrors(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var cookies []string
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fetches++
		n := fetches
		cookies = append(cookies, r.Header.Get("Cookie"))
		mu.Unlock()
		if n == 2 {
			// One bad cycle; the poll loop must keep going.
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`<div>Incoming call from +1 555 0100</div>`))
	}))
	defer srv.Close()

	poll, err := NewHTMLPoll(HTMLPollOptions{
		URL:        srv.URL,
		Interval:   5 * time.Millisecond,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	var emits int
	var lastRaw bridge.RawEvent
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- poll.Run(ctx, Session{
			Token: "session=abc",
			Emit: func(raw bridge.RawEvent) {
				mu.Lock()
				emits++
				lastRaw = raw
				mu.Unlock()
			},
			SetState: func(State) {},
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fetches >= 4 && emits >= 2
	}, 5*time.Second, 2*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "session=abc", cookies[0])
	require.Equal(t, bridge.RawBlocks, lastRaw.Kind)
	require.Len(t, lastRaw.Blocks, 1)
	require.Contains(t, lastRaw.Blocks[0].Text, "+1 555 0100")
}
