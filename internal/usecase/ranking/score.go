package ranking

import "github.com/storeway/catsync/internal/domain"

// maxRating is the record store's rating scale ceiling.
const maxRating = 5.0

// Score computes the popularity score for one item's counters against
// catalog-wide bounds. It is a pure function: identical inputs always yield
// bit-identical results. An item with zero behavioral signal lands on the
// minimum score, never an error.
func Score(w Weights, c domain.Counters, b domain.CounterBounds) float64 {
	return w.Orders*normalize(c.Orders, b.MinOrders, b.MaxOrders) +
		w.Views*normalize(c.Views, b.MinViews, b.MaxViews) +
		w.Favorites*normalize(c.Favorites, b.MinFavorites, b.MaxFavorites) +
		w.Rating*(clamp(c.AvgRating, 0, maxRating)/maxRating)
}

// normalize maps v into [0,1] by catalog-wide min/max. A degenerate range
// (all items equal, or no signal at all) maps to 0.
func normalize(v, min, max float64) float64 {
	if max <= min {
		return 0
	}
	return clamp((v-min)/(max-min), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
