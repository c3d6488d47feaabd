package domain

import "time"

// RankSnapshot is one popularity score computation for one item. Snapshots
// are immutable; a new computation supersedes the previous one for the item.
type RankSnapshot struct {
	ItemID     string
	Score      float64
	OrderCount int64 // unweighted orders in the window, first tie-break key
	ComputedAt time.Time
	Window     time.Duration
}

// CompareRank orders snapshots for the index sort: higher score first, ties
// broken by higher order count, then by item id ascending. Returns a
// negative number when a sorts before b.
func CompareRank(a, b RankSnapshot) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	}
	switch {
	case a.OrderCount > b.OrderCount:
		return -1
	case a.OrderCount < b.OrderCount:
		return 1
	}
	switch {
	case a.ItemID < b.ItemID:
		return -1
	case a.ItemID > b.ItemID:
		return 1
	}
	return 0
}
