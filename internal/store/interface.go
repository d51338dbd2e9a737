package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrPersistenceUnavailable wraps every storage read or write failure.
var ErrPersistenceUnavailable = errors.New("persistence unavailable")

// HistoryRepository loads and saves one HistoryRecord per player.
// Load of an unknown player returns an empty record and no error.
type HistoryRepository interface {
	Load(ctx context.Context, playerID string) (HistoryRecord, error)
	Save(ctx context.Context, playerID string, rec HistoryRecord) error
	Delete(ctx context.Context, playerID string) error
}

// PatternStore holds opening pattern rows keyed by (player, signature).
type PatternStore interface {
	// Upsert creates the row if needed, increments its frequency by one and
	// adds the counters in d.
	Upsert(ctx context.Context, d PatternDelta) error
	List(ctx context.Context, playerID string) ([]Pattern, error)
	DeletePlayer(ctx context.Context, playerID string) error
}

// PlayerLister is implemented by pattern stores that can enumerate players.
type PlayerLister interface {
	Players(ctx context.Context) ([]string, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistenceUnavailable, op, err)
}
