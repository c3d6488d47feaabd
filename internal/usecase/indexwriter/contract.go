package indexwriter

import (
	"context"

	"github.com/storeway/catsync/internal/domain"
)

// RecordStore is the slice of the record store the writer needs.
type RecordStore interface {
	GetItem(ctx context.Context, id string) (domain.CatalogItem, error)
}

// DocumentRepo persists index documents.
type DocumentRepo interface {
	Upsert(ctx context.Context, doc domain.IndexDocument) error
	Delete(ctx context.Context, id string) error
	PatchRank(ctx context.Context, id string, score float64, orderCount int64) (bool, error)
	PatchTags(ctx context.Context, id string, tags []string) (bool, error)
}

// RankReader supplies the latest rank snapshot for document projection.
type RankReader interface {
	Latest(ctx context.Context, itemID string) (domain.RankSnapshot, error)
	Delete(ctx context.Context, itemID string) error
}

// TagReader supplies the merged tag set for document projection.
type TagReader interface {
	Tags(ctx context.Context, itemID string) ([]string, error)
	DeleteAll(ctx context.Context, itemID string) error
}
