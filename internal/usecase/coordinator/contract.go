package coordinator

import (
	"context"
	"time"

	"github.com/storeway/catsync/internal/domain"
)

// feed is the consumer interface over the record store's change feed (ISP).
type feed interface {
	ListChangedSince(ctx context.Context, cursor domain.Cursor, limit int) ([]domain.ChangeEvent, error)
	FeedHead(ctx context.Context) (domain.Cursor, error)
	ListItems(ctx context.Context, afterID string, limit int) ([]domain.CatalogItem, string, error)
	ListActiveSince(ctx context.Context, since time.Time) ([]string, error)
}

// writer applies one item's change to the search index.
type writer interface {
	Apply(ctx context.Context, itemID string, kind domain.ChangeKind) error
}

// ranker recomputes popularity snapshots for dirty items.
type ranker interface {
	RecomputeBatch(ctx context.Context, itemIDs []string) ([]domain.RankSnapshot, error)
}

// tagger reconciles derived tag assignments for one item.
type tagger interface {
	Scan(ctx context.Context, itemID string) (bool, error)
}

// checkpointStore persists per-component cursors.
type checkpointStore interface {
	Get(ctx context.Context, c domain.Component) (domain.Checkpoint, error)
	Advance(ctx context.Context, c domain.Component, cursor domain.Cursor) error
	Reset(ctx context.Context, c domain.Component, cursor domain.Cursor) error
}

// deadLetterStore sets permanently failed work aside for inspection.
type deadLetterStore interface {
	Record(ctx context.Context, dl domain.DeadLetter) (domain.DeadLetter, error)
	Get(ctx context.Context, id string) (domain.DeadLetter, error)
	Delete(ctx context.Context, id string) error
}

// alerter delivers operator alerts, fire and forget.
type alerter interface {
	Alert(ctx context.Context, a domain.Alert)
}

// schemaManager rebuilds the physical search index during reindex-all.
type schemaManager interface {
	Drop(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
}
