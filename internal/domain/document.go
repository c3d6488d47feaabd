package domain

import (
	"sort"
	"strings"
	"time"
)

// IndexDocument is the search-index projection of a catalog item: searchable
// text fields plus filterable/sortable attributes. It is derived state and
// can always be rebuilt from the record store.
type IndexDocument struct {
	ID          string
	SKU         string
	Title       string
	Description string
	Brand       string
	Category    string
	Price       float64
	Stock       int64
	Tags        []string

	RankScore  float64
	OrderCount int64

	Version   int64
	UpdatedAt time.Time
}

// NewIndexDocument projects an item plus its latest rank snapshot and tag set
// into an index document. Tags are deduplicated and sorted so repeated
// projections of the same inputs are byte-identical.
func NewIndexDocument(item CatalogItem, rank RankSnapshot, tags []string) IndexDocument {
	return IndexDocument{
		ID:          item.ID,
		SKU:         item.SKU,
		Title:       item.Title,
		Description: item.Description,
		Brand:       item.Brand,
		Category:    item.Category,
		Price:       item.Price,
		Stock:       item.Stock,
		Tags:        NormalizeTags(tags),
		RankScore:   rank.Score,
		OrderCount:  rank.OrderCount,
		Version:     item.Version,
		UpdatedAt:   item.ModifiedAt,
	}
}

// NormalizeTags lowercases, deduplicates and sorts a tag list.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
