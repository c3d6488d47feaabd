package domain

import "time"

// CatalogItem is the record-store projection of a product consumed by the
// pipeline. The record store owns it; the pipeline never writes it back.
type CatalogItem struct {
	ID          string
	SKU         string
	Title       string
	Description string
	Brand       string
	Category    string // slash-separated category path
	Price       float64
	Stock       int64

	ReviewCount int64
	AvgRating   float64

	// Version increases on every record-store mutation of this item.
	// Index writes with an older version are discarded.
	Version    int64
	ModifiedAt time.Time
}

// Counters are recency-weighted behavioral signal counts for one item over
// the ranking window. Values are float64 because sub-window recency weights
// are applied by the record store aggregation.
type Counters struct {
	Views     float64
	Orders    float64
	Favorites float64

	// OrderCountRaw is the unweighted order count, used for tie-breaking.
	OrderCountRaw int64

	ReviewCount int64
	AvgRating   float64
}

// CounterBounds are catalog-wide min/max per behavioral signal, used to keep
// normalized scores comparable across recomputation cycles.
type CounterBounds struct {
	MinViews, MaxViews         float64
	MinOrders, MaxOrders       float64
	MinFavorites, MaxFavorites float64
}

// CounterQuery describes the rolling window for counter aggregation.
// The window is split into len(Recency) equal sub-windows, most recent first,
// and each sub-window's counts are multiplied by the matching recency weight.
type CounterQuery struct {
	Window  time.Duration
	Recency []float64
}

// SubWindow returns the duration of one recency sub-window.
func (q CounterQuery) SubWindow() time.Duration {
	if len(q.Recency) == 0 {
		return q.Window
	}
	return q.Window / time.Duration(len(q.Recency))
}
