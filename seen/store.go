// Package seen holds the dedup ledger: the durable set of event ids that have
// already been handed to the delivery sink.
package seen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/munnme/orangecarrier2-bot/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	gdb    *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

func NewStore(gdb *gorm.DB, logger *slog.Logger) (*Store, error) {
	if gdb == nil {
		return nil, fmt.Errorf("nil gorm db")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{gdb: gdb, logger: logger, nowFn: time.Now}, nil
}

// Has reports whether id was marked before. A read failure is treated as
// "unseen" so a broken ledger degrades to duplicate delivery, never to
// silent loss.
func (s *Store) Has(ctx context.Context, id string) bool {
	if s == nil || s.gdb == nil {
		return false
	}
	var row models.SeenEvent
	err := s.gdb.WithContext(ctx).Take(&row, "id = ?", id).Error
	if err == nil {
		return true
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	s.logger.Warn("seen_store_read_error", "id", id, "error", err.Error())
	return false
}

// Mark records id as delivered. Re-marking an existing id is a no-op, not an
// error: the insert uses ON CONFLICT DO NOTHING so concurrent callers cannot
// race a check-then-insert.
func (s *Store) Mark(ctx context.Context, id string) error {
	if s == nil || s.gdb == nil {
		return fmt.Errorf("seen store is not initialized")
	}
	row := models.SeenEvent{
		ID:        id,
		FirstSeen: s.nowFn().UTC().Format(time.RFC3339),
	}
	err := s.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("mark seen %s: %w", id, err)
	}
	return nil
}
