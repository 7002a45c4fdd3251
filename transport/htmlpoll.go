package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/munnme/orangecarrier2-bot/bridge"
	"github.com/munnme/orangecarrier2-bot/internal/retryutil"
)

const defaultPollInterval = 15 * time.Second

type HTMLPollOptions struct {
	URL        string // live-calls page
	Interval   time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// HTMLPoll is the session-cookie variant: no persistent connection, just a
// fixed-interval GET against the live-calls page, scraped into blocks. A
// failed fetch is logged and the loop sleeps through the same interval; the
// poll never terminates on error.
type HTMLPoll struct {
	pageURL  string
	interval time.Duration
	http     *http.Client
	logger   *slog.Logger
}

func NewHTMLPoll(opts HTMLPollOptions) (*HTMLPoll, error) {
	pageURL := strings.TrimSpace(opts.URL)
	if pageURL == "" {
		return nil, fmt.Errorf("poll url is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTMLPoll{
		pageURL:  pageURL,
		interval: interval,
		http:     httpClient,
		logger:   logger,
	}, nil
}

func (t *HTMLPoll) Name() string { return "htmlpoll" }

func (t *HTMLPoll) Run(ctx context.Context, sess Session) error {
	sess.SetState(StateConnected)
	for {
		blocks, err := t.fetch(ctx, sess.Token)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Warn("poll_fetch_error", "url", t.pageURL, "error", err.Error())
		} else {
			sess.Emit(bridge.RawEvent{Kind: bridge.RawBlocks, Blocks: blocks})
		}
		if err := retryutil.SleepWithContext(ctx, t.interval); err != nil {
			return err
		}
	}
}

func (t *HTMLPoll) fetch(ctx context.Context, cookie string) ([]bridge.Block, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.pageURL, nil)
	if err != nil {
		return nil, err
	}
	if cookie = strings.TrimSpace(cookie); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("poll http %d", resp.StatusCode)
	}
	return ExtractBlocks(resp.Body)
}
