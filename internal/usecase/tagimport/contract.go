package tagimport

import (
	"context"
	"time"

	"github.com/storeway/catsync/internal/domain"
)

// records is the consumer interface over the catalog record store (ISP).
type records interface {
	GetItem(ctx context.Context, id string) (domain.CatalogItem, error)
}

// tagStore is the consumer interface over the tag assignment store (ISP).
type tagStore interface {
	List(ctx context.Context, itemID string, source domain.TagSource) ([]domain.TagAssignment, error)
	Add(ctx context.Context, itemID string, source domain.TagSource, tags []string, at time.Time) error
	Remove(ctx context.Context, itemID string, source domain.TagSource, tags []string) error
	Tags(ctx context.Context, itemID string) ([]string, error)
}

// refresher pushes the merged tag set into the search document (ISP).
type refresher interface {
	RefreshTags(ctx context.Context, itemID string, tags []string) error
}
