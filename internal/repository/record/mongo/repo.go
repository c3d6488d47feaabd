package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/storeway/catsync/internal/domain"
)

// Collection names inside the record-store database.
const (
	collItems    = "items"
	collChanges  = "changes"
	collActivity = "activity"
)

// Repo adapts the external record store (MongoDB) to the pipeline's
// interfaces. The record store owns all of this data; the repo never writes.
type Repo struct {
	items    *mongo.Collection
	changes  *mongo.Collection
	activity *mongo.Collection
	now      func() time.Time
}

// New creates a record-store adapter over the given database.
func New(db *mongo.Database) *Repo {
	return &Repo{
		items:    db.Collection(collItems),
		changes:  db.Collection(collChanges),
		activity: db.Collection(collActivity),
		now:      time.Now,
	}
}

// WithClock overrides the clock (tests).
func (r *Repo) WithClock(now func() time.Time) *Repo {
	r.now = now
	return r
}

type itemDoc struct {
	ID          string    `bson:"_id"`
	SKU         string    `bson:"sku"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Brand       string    `bson:"brand"`
	Category    string    `bson:"category"`
	Price       float64   `bson:"price"`
	Stock       int64     `bson:"stock"`
	ReviewCount int64     `bson:"review_count"`
	AvgRating   float64   `bson:"average_rating"`
	Version     int64     `bson:"version"`
	ModifiedAt  time.Time `bson:"modified_at"`
}

func (d itemDoc) toDomain() domain.CatalogItem {
	return domain.CatalogItem{
		ID:          d.ID,
		SKU:         d.SKU,
		Title:       d.Title,
		Description: d.Description,
		Brand:       d.Brand,
		Category:    d.Category,
		Price:       d.Price,
		Stock:       d.Stock,
		ReviewCount: d.ReviewCount,
		AvgRating:   d.AvgRating,
		Version:     d.Version,
		ModifiedAt:  d.ModifiedAt.UTC(),
	}
}

// GetItem returns one catalog item by id.
func (r *Repo) GetItem(ctx context.Context, id string) (domain.CatalogItem, error) {
	var doc itemDoc
	err := r.items.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.CatalogItem{}, domain.ErrItemNotFound
		}
		return domain.CatalogItem{}, domain.Transient(fmt.Errorf("find item %s: %w", id, err))
	}
	return doc.toDomain(), nil
}

// ListItems pages through the whole catalog by id, for full reindex runs.
// Returns the items after afterID plus the id to resume from; an empty
// resume id means the scan is complete.
func (r *Repo) ListItems(ctx context.Context, afterID string, limit int) ([]domain.CatalogItem, string, error) {
	if limit <= 0 {
		limit = 100
	}

	filter := bson.M{}
	if afterID != "" {
		filter["_id"] = bson.M{"$gt": afterID}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := r.items.Find(ctx, filter, opts)
	if err != nil {
		return nil, "", domain.Transient(fmt.Errorf("list items after %q: %w", afterID, err))
	}
	defer func() { _ = cur.Close(ctx) }()

	var docs []itemDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, "", domain.Transient(fmt.Errorf("decode items: %w", err))
	}

	items := make([]domain.CatalogItem, len(docs))
	for i, d := range docs {
		items[i] = d.toDomain()
	}

	next := ""
	if len(docs) == limit {
		next = docs[len(docs)-1].ID
	}
	return items, next, nil
}

type changeDoc struct {
	Seq        int64     `bson:"seq"`
	ItemID     string    `bson:"item_id"`
	Kind       string    `bson:"kind"`
	OccurredAt time.Time `bson:"occurred_at"`
	Diff       []string  `bson:"diff"`
}

// ListChangedSince returns change events after the given cursor in feed
// order. The feed is paginated and restartable from any returned cursor.
func (r *Repo) ListChangedSince(ctx context.Context, cursor domain.Cursor, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	seq, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := r.changes.Find(ctx, bson.M{"seq": bson.M{"$gt": seq}}, opts)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("list changes after %q: %w", cursor, err))
	}
	defer func() { _ = cur.Close(ctx) }()

	var docs []changeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, domain.Transient(fmt.Errorf("decode changes: %w", err))
	}

	events := make([]domain.ChangeEvent, len(docs))
	for i, d := range docs {
		events[i] = domain.ChangeEvent{
			Cursor:     EncodeCursor(d.Seq),
			ItemID:     d.ItemID,
			Kind:       domain.ChangeKind(d.Kind),
			OccurredAt: d.OccurredAt.UTC(),
			Diff:       d.Diff,
		}
	}
	return events, nil
}

// FeedHead returns the cursor of the newest change event, or the empty
// cursor for an empty feed. Reindex uses it to fast-forward checkpoints.
func (r *Repo) FeedHead(ctx context.Context) (domain.Cursor, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})

	var doc changeDoc
	err := r.changes.FindOne(ctx, bson.M{}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", domain.Transient(fmt.Errorf("read feed head: %w", err))
	}
	return EncodeCursor(doc.Seq), nil
}

// Ping checks record-store connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.items.Database().Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping record store: %w", err)
	}
	return nil
}

// EncodeCursor renders a feed sequence number as a cursor. Zero-padding
// keeps lexicographic and numeric order identical, which the checkpoint
// monotonicity check relies on.
func EncodeCursor(seq int64) domain.Cursor {
	return domain.Cursor(fmt.Sprintf("%020d", seq))
}

func decodeCursor(c domain.Cursor) (int64, error) {
	if c == "" {
		return 0, nil
	}
	seq, err := strconv.ParseInt(string(c), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed feed cursor %q: %w", c, err)
	}
	return seq, nil
}
