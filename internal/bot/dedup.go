package bot

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/averbier/go-topic-bot/internal/repo"
)

// Deduper tracks which Telegram update ids were already handled so
// redelivered updates can be skipped.
type Deduper interface {
	// Seen reports whether updateID was already processed.
	Seen(ctx context.Context, updateID int) (bool, error)
	// Mark records updateID as processed. Reports repo.ErrDuplicateUpdate
	// when another delivery won the race.
	Mark(ctx context.Context, updateID int, userID int64) error
}

// LedgerDedup persists processed update ids in the durable ledger, surviving
// process restarts within the retention window.
type LedgerDedup struct {
	DB  *gorm.DB
	TTL time.Duration
}

func (d *LedgerDedup) Seen(ctx context.Context, updateID int) (bool, error) {
	return repo.SeenUpdate(ctx, d.DB, updateID, time.Now().UTC())
}

func (d *LedgerDedup) Mark(ctx context.Context, updateID int, userID int64) error {
	return repo.MarkUpdate(ctx, d.DB, updateID, userID, d.TTL)
}

// IsDuplicate reports whether err marks a lost dedup race.
func IsDuplicate(err error) bool {
	return errors.Is(err, repo.ErrDuplicateUpdate)
}
