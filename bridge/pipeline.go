package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SeenStore is the dedup ledger consulted by the pipeline.
type SeenStore interface {
	Has(ctx context.Context, id string) bool
	Mark(ctx context.Context, id string) error
}

// Sink delivers one event downstream. audioPath may be empty.
type Sink interface {
	Deliver(ctx context.Context, text, audioPath string) error
}

// AudioFetcher materializes a remote audio reference as a local file.
// cleanup removes the file and is safe to call exactly once.
type AudioFetcher interface {
	Fetch(ctx context.Context, url string) (path string, cleanup func(), err error)
}

type PipelineOptions struct {
	Store  SeenStore
	Sink   Sink
	Audio  AudioFetcher
	Logger *slog.Logger
}

// Pipeline is the dedup-and-deliver core: check-then-mark against the seen
// ledger, then hand the event to the sink exactly once per id.
type Pipeline struct {
	store  SeenStore
	sink   Sink
	audio  AudioFetcher
	logger *slog.Logger
}

func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("seen store is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:  opts.Store,
		sink:   opts.Sink,
		audio:  opts.Audio,
		logger: logger,
	}, nil
}

// Process runs one event through dedup and delivery. It never returns an
// error: every failure mode downstream of normalization is contained here,
// so the transport supervisor cannot be crashed by a bad event.
func (p *Pipeline) Process(ctx context.Context, ev Event) {
	if !ev.Generic {
		if p.store.Has(ctx, ev.ID) {
			p.logger.Debug("event_deduped", "id", ev.ID, "source", string(ev.Source))
			return
		}
		// Mark before delivering: a crash mid-delivery loses the event
		// instead of duplicating it, which is the right trade for a live
		// feed. A failed mark is logged and the event still delivered.
		if err := p.store.Mark(ctx, ev.ID); err != nil {
			p.logger.Warn("seen_mark_error", "id", ev.ID, "error", err.Error())
		}
	}

	audioPath := ""
	if url := strings.TrimSpace(ev.AudioRef); url != "" && p.audio != nil {
		path, cleanup, err := p.audio.Fetch(ctx, url)
		if err != nil {
			// Degrade to text-only, never drop the event.
			p.logger.Warn("audio_fetch_error", "id", ev.ID, "url", url, "error", err.Error())
		} else {
			audioPath = path
			if cleanup != nil {
				defer cleanup()
			}
		}
	}

	if err := p.sink.Deliver(ctx, ev.Text, audioPath); err != nil {
		p.logger.Warn("delivery_error", "id", ev.ID, "source", string(ev.Source), "error", err.Error())
	}
}
