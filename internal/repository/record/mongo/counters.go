package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/storeway/catsync/internal/domain"
)

// Behavioral event kinds recorded in the activity collection.
const (
	activityView     = "view"
	activityOrder    = "order"
	activityFavorite = "favorite"
)

// Counters aggregates one item's behavioral signals over the rolling window,
// with recency weights applied per sub-window by the aggregation itself.
func (r *Repo) Counters(ctx context.Context, id string, q domain.CounterQuery) (domain.Counters, error) {
	batch, err := r.CountersBatch(ctx, []string{id}, q)
	if err != nil {
		return domain.Counters{}, err
	}
	return batch[id], nil
}

// CountersBatch aggregates behavioral signals for many items in one pass.
// It is a pure amortization of Counters: per-item results are identical to
// individual calls against the same data.
func (r *Repo) CountersBatch(ctx context.Context, ids []string, q domain.CounterQuery) (map[string]domain.Counters, error) {
	out := make(map[string]domain.Counters, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	// Item-level fields (review count, rating) come from the items collection.
	cur, err := r.items.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("find items for counters: %w", err))
	}
	var itemDocs []itemDoc
	if err := cur.All(ctx, &itemDocs); err != nil {
		return nil, domain.Transient(fmt.Errorf("decode items for counters: %w", err))
	}
	for _, d := range itemDocs {
		out[d.ID] = domain.Counters{ReviewCount: d.ReviewCount, AvgRating: d.AvgRating}
	}

	pipeline := r.weightedPipeline(q, bson.M{"item_id": bson.M{"$in": ids}})
	agg, err := r.activity.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("aggregate counters: %w", err))
	}
	defer func() { _ = agg.Close(ctx) }()

	var rows []weightedRow
	if err := agg.All(ctx, &rows); err != nil {
		return nil, domain.Transient(fmt.Errorf("decode counters: %w", err))
	}

	for _, row := range rows {
		c := out[row.ID.ItemID]
		switch row.ID.Kind {
		case activityView:
			c.Views = row.Weighted
		case activityOrder:
			c.Orders = row.Weighted
			c.OrderCountRaw = row.Raw
		case activityFavorite:
			c.Favorites = row.Weighted
		}
		out[row.ID.ItemID] = c
	}
	return out, nil
}

// CounterBounds returns catalog-wide min/max of the recency-weighted signals,
// the normalization denominators that keep scores comparable across cycles.
func (r *Repo) CounterBounds(ctx context.Context, q domain.CounterQuery) (domain.CounterBounds, error) {
	pipeline := r.weightedPipeline(q, nil)
	pipeline = append(pipeline,
		bson.M{"$group": bson.M{
			"_id": "$_id.kind",
			"min": bson.M{"$min": "$weighted"},
			"max": bson.M{"$max": "$weighted"},
		}},
	)

	agg, err := r.activity.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.CounterBounds{}, domain.Transient(fmt.Errorf("aggregate counter bounds: %w", err))
	}
	defer func() { _ = agg.Close(ctx) }()

	var rows []struct {
		Kind string  `bson:"_id"`
		Min  float64 `bson:"min"`
		Max  float64 `bson:"max"`
	}
	if err := agg.All(ctx, &rows); err != nil {
		return domain.CounterBounds{}, domain.Transient(fmt.Errorf("decode counter bounds: %w", err))
	}

	var b domain.CounterBounds
	for _, row := range rows {
		switch row.Kind {
		case activityView:
			b.MinViews, b.MaxViews = row.Min, row.Max
		case activityOrder:
			b.MinOrders, b.MaxOrders = row.Min, row.Max
		case activityFavorite:
			b.MinFavorites, b.MaxFavorites = row.Min, row.Max
		}
	}
	return b, nil
}

// ListActiveSince returns the ids of items with any behavioral activity at
// or after the given instant. The ranking cycle derives its work set from
// this, so counter-driven recomputes survive a process restart. A zero
// since returns every item with recorded activity.
func (r *Repo) ListActiveSince(ctx context.Context, since time.Time) ([]string, error) {
	filter := bson.M{}
	if !since.IsZero() {
		filter["occurred_at"] = bson.M{"$gte": since}
	}

	var ids []string
	if err := r.activity.Distinct(ctx, "item_id", filter).Decode(&ids); err != nil {
		return nil, domain.Transient(fmt.Errorf("distinct active items: %w", err))
	}
	return ids, nil
}

type weightedRow struct {
	ID struct {
		ItemID string `bson:"item_id"`
		Kind   string `bson:"kind"`
	} `bson:"_id"`
	Weighted float64 `bson:"weighted"`
	Raw      int64   `bson:"raw"`
}

// weightedPipeline groups activity events by item and kind, summing quantity
// weighted by the recency of the sub-window each event falls into.
func (r *Repo) weightedPipeline(q domain.CounterQuery, match bson.M) []bson.M {
	now := r.now().UTC()
	since := now.Add(-q.Window)

	if match == nil {
		match = bson.M{}
	}
	match["occurred_at"] = bson.M{"$gte": since}

	// Sub-window boundaries, most recent first: an event newer than
	// boundary[i] but not matched earlier gets recency weight i.
	sub := q.SubWindow()
	branches := make([]bson.M, 0, len(q.Recency))
	for i, w := range q.Recency {
		boundary := now.Add(-time.Duration(i+1) * sub)
		branches = append(branches, bson.M{
			"case": bson.M{"$gte": []any{"$occurred_at", boundary}},
			"then": w,
		})
	}

	weightExpr := bson.M{"$switch": bson.M{
		"branches": branches,
		"default":  0.0,
	}}
	if len(branches) == 0 {
		weightExpr = bson.M{"$literal": 1.0}
	}

	return []bson.M{
		{"$match": match},
		{"$addFields": bson.M{"recency_weight": weightExpr}},
		{"$group": bson.M{
			"_id":      bson.M{"item_id": "$item_id", "kind": "$kind"},
			"weighted": bson.M{"$sum": bson.M{"$multiply": []any{"$qty", "$recency_weight"}}},
			"raw":      bson.M{"$sum": "$qty"},
		}},
	}
}
