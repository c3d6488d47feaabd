package ranking

import (
	"context"
	"time"

	"github.com/storeway/catsync/internal/domain"
)

// CounterSource supplies behavioral counters from the record store.
type CounterSource interface {
	Counters(ctx context.Context, id string, q domain.CounterQuery) (domain.Counters, error)
	CountersBatch(ctx context.Context, ids []string, q domain.CounterQuery) (map[string]domain.Counters, error)
	CounterBounds(ctx context.Context, q domain.CounterQuery) (domain.CounterBounds, error)
}

// SnapshotStore persists computed rank snapshots.
type SnapshotStore interface {
	Put(ctx context.Context, snap domain.RankSnapshot) error
}

// Refresher pushes a fresh score into the search index (rank fields only).
type Refresher interface {
	RefreshRank(ctx context.Context, snap domain.RankSnapshot) error
}

// Weights are the per-signal score weights (w1..w4).
type Weights struct {
	Orders    float64
	Views     float64
	Favorites float64
	Rating    float64
}

// Config holds the scoring configuration.
type Config struct {
	Weights Weights
	Window  time.Duration
	Recency []float64
}
