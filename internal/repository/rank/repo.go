package rank

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/storeway/catsync/internal/domain"
)

// store is the consumer interface for rank snapshots (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

// Repo keeps the latest RankSnapshot per item. Snapshots are immutable;
// a new computation fully supersedes the previous record.
type Repo struct {
	store  store
	prefix string
}

// New creates a rank snapshot repository under the given key prefix.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

func (r *Repo) key(itemID string) string {
	return fmt.Sprintf("%s:rank:%s", r.prefix, itemID)
}

// Put stores a snapshot as the latest for its item.
func (r *Repo) Put(ctx context.Context, snap domain.RankSnapshot) error {
	fields := map[string]string{
		"score":       strconv.FormatFloat(snap.Score, 'f', -1, 64),
		"order_count": strconv.FormatInt(snap.OrderCount, 10),
		"computed_at": strconv.FormatInt(snap.ComputedAt.UnixNano(), 10),
		"window_sec":  strconv.FormatInt(int64(snap.Window.Seconds()), 10),
	}
	if err := r.store.HSet(ctx, r.key(snap.ItemID), fields); err != nil {
		return domain.Transient(fmt.Errorf("put rank snapshot %s: %w", snap.ItemID, err))
	}
	return nil
}

// Latest returns the most recent snapshot for an item. An item that has never
// been ranked gets a zero snapshot (minimum score), not an error.
func (r *Repo) Latest(ctx context.Context, itemID string) (domain.RankSnapshot, error) {
	fields, err := r.store.HGetAll(ctx, r.key(itemID))
	if err != nil {
		return domain.RankSnapshot{}, domain.Transient(fmt.Errorf("get rank snapshot %s: %w", itemID, err))
	}
	if len(fields) == 0 {
		return domain.RankSnapshot{ItemID: itemID}, nil
	}

	snap := domain.RankSnapshot{ItemID: itemID}
	snap.Score, _ = strconv.ParseFloat(fields["score"], 64)
	snap.OrderCount, _ = strconv.ParseInt(fields["order_count"], 10, 64)
	if ns, perr := strconv.ParseInt(fields["computed_at"], 10, 64); perr == nil {
		snap.ComputedAt = time.Unix(0, ns).UTC()
	}
	if sec, perr := strconv.ParseInt(fields["window_sec"], 10, 64); perr == nil {
		snap.Window = time.Duration(sec) * time.Second
	}
	return snap, nil
}

// Delete removes the snapshot for an item (deleted items).
func (r *Repo) Delete(ctx context.Context, itemID string) error {
	if err := r.store.Del(ctx, r.key(itemID)); err != nil {
		return domain.Transient(fmt.Errorf("delete rank snapshot %s: %w", itemID, err))
	}
	return nil
}
