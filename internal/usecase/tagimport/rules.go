package tagimport

import (
	"strings"
	"time"

	"github.com/storeway/catsync/internal/domain"
)

// Rule derives tags from an item's structured attributes. The rule set is
// closed: category mappings, price bands, keyword extraction and SKU-list
// importers, all dispatched through this one interface.
type Rule interface {
	Name() string
	Tags(item domain.CatalogItem) []string
}

// CategoryRule maps category-path segments to tags.
type CategoryRule struct {
	mapping map[string][]string
}

// NewCategoryRule builds a category rule from segment→tags mappings.
// Segment keys are matched case-insensitively against the item's slash
// separated category path.
func NewCategoryRule(mapping map[string][]string) *CategoryRule {
	m := make(map[string][]string, len(mapping))
	for k, v := range mapping {
		m[strings.ToLower(k)] = v
	}
	return &CategoryRule{mapping: m}
}

func (r *CategoryRule) Name() string { return "category" }

func (r *CategoryRule) Tags(item domain.CatalogItem) []string {
	var out []string
	for _, segment := range strings.Split(strings.ToLower(item.Category), "/") {
		out = append(out, r.mapping[strings.TrimSpace(segment)]...)
	}
	return out
}

// PriceBand tags items priced strictly below Max. Max 0 means unbounded.
type PriceBand struct {
	Max float64
	Tag string
}

// PriceBandRule assigns the tag of the first band an item's price falls
// into. Bands are evaluated in declaration order.
type PriceBandRule struct {
	bands []PriceBand
}

// NewPriceBandRule builds a price band rule.
func NewPriceBandRule(bands []PriceBand) *PriceBandRule {
	return &PriceBandRule{bands: bands}
}

func (r *PriceBandRule) Name() string { return "price_band" }

func (r *PriceBandRule) Tags(item domain.CatalogItem) []string {
	for _, b := range r.bands {
		if b.Max <= 0 || item.Price < b.Max {
			return []string{b.Tag}
		}
	}
	return nil
}

// KeywordRule extracts tags from the item's title and description by
// keyword presence.
type KeywordRule struct {
	keywords map[string]string // keyword → tag
}

// NewKeywordRule builds a keyword rule. Keywords match case-insensitively
// as substrings of the title or description.
func NewKeywordRule(keywords map[string]string) *KeywordRule {
	m := make(map[string]string, len(keywords))
	for k, v := range keywords {
		m[strings.ToLower(k)] = v
	}
	return &KeywordRule{keywords: m}
}

func (r *KeywordRule) Name() string { return "keyword" }

func (r *KeywordRule) Tags(item domain.CatalogItem) []string {
	haystack := strings.ToLower(item.Title + " " + item.Description)
	var out []string
	for keyword, tag := range r.keywords {
		if strings.Contains(haystack, keyword) {
			out = append(out, tag)
		}
	}
	return out
}

// Importer assigns a fixed tag list to an explicit SKU list during an
// activation window (campaign imports: promos, seasonal collections).
// Outside the window it contributes nothing, so a rescan removes its tags.
type Importer struct {
	ImporterName string
	SKUs         map[string]struct{}
	ImportTags   []string
	Start, End   time.Time

	now func() time.Time
}

// NewImporter builds an SKU-list importer. Zero Start or End leaves that
// side of the window open.
func NewImporter(name string, skus, tags []string, start, end time.Time) *Importer {
	set := make(map[string]struct{}, len(skus))
	for _, sku := range skus {
		set[sku] = struct{}{}
	}
	return &Importer{
		ImporterName: name,
		SKUs:         set,
		ImportTags:   tags,
		Start:        start,
		End:          end,
		now:          time.Now,
	}
}

// WithClock overrides the clock (tests).
func (r *Importer) WithClock(now func() time.Time) *Importer {
	r.now = now
	return r
}

func (r *Importer) Name() string { return "importer:" + r.ImporterName }

// ActiveAt reports whether the importer's activation window covers t.
func (r *Importer) ActiveAt(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

func (r *Importer) Tags(item domain.CatalogItem) []string {
	if !r.ActiveAt(r.now()) {
		return nil
	}
	if _, ok := r.SKUs[item.SKU]; !ok {
		return nil
	}
	return r.ImportTags
}
