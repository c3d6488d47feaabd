package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/storeway/catsync/internal/db"
	"github.com/storeway/catsync/internal/domain"
)

// store is the consumer interface for checkpoint persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	CompareAndSwap(ctx context.Context, key string, expected, next []byte) (bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo persists per-component checkpoints as versioned JSON records updated
// via compare-and-swap, so concurrent cycle runs cannot regress a cursor.
type Repo struct {
	store  store
	prefix string
	now    func() time.Time
}

// New creates a checkpoint repository under the given key prefix.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix, now: time.Now}
}

// WithClock overrides the clock (tests).
func (r *Repo) WithClock(now func() time.Time) *Repo {
	r.now = now
	return r
}

func (r *Repo) key(c domain.Component) string {
	return fmt.Sprintf("%s:checkpoint:%s", r.prefix, c)
}

// Get returns the checkpoint for a component. A component that has never
// checkpointed gets a zero-revision record with an empty cursor.
func (r *Repo) Get(ctx context.Context, c domain.Component) (domain.Checkpoint, error) {
	data, err := r.store.Get(ctx, r.key(c))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Checkpoint{Component: c}, nil
		}
		return domain.Checkpoint{}, domain.Transient(fmt.Errorf("get checkpoint %s: %w", c, err))
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("decode checkpoint %s: %w", c, err)
	}
	return cp, nil
}

// Advance moves the component cursor forward. Regressions are rejected with
// domain.ErrCheckpointRegression; a CAS loss to a concurrent writer retries
// against the fresh record, so the stored cursor only ever grows.
func (r *Repo) Advance(ctx context.Context, c domain.Component, cursor domain.Cursor) error {
	for {
		cur, err := r.Get(ctx, c)
		if err != nil {
			return err
		}
		if cursor <= cur.Cursor {
			if cursor == cur.Cursor {
				return nil
			}
			return fmt.Errorf("%w: %s has %q, refusing %q", domain.ErrCheckpointRegression, c, cur.Cursor, cursor)
		}

		next := domain.Checkpoint{
			Component: c,
			Cursor:    cursor,
			Revision:  cur.Revision + 1,
			UpdatedAt: r.now().UTC(),
		}

		ok, err := r.swap(ctx, cur, next)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		// Lost the CAS race; re-read and re-check monotonicity.
	}
}

// Reset forces the component cursor to the given position, regressions
// included. Only the explicit reindex-all flow calls this. A failed read
// aborts the reset: writing a guessed revision over a record we could not
// see would leave Advance CASing against the wrong generation forever.
func (r *Repo) Reset(ctx context.Context, c domain.Component, cursor domain.Cursor) error {
	cur, err := r.Get(ctx, c)
	if err != nil {
		return err
	}

	next := domain.Checkpoint{
		Component: c,
		Cursor:    cursor,
		Revision:  cur.Revision + 1,
		UpdatedAt: r.now().UTC(),
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", c, err)
	}
	if err := r.store.Set(ctx, r.key(c), data); err != nil {
		return domain.Transient(fmt.Errorf("reset checkpoint %s: %w", c, err))
	}
	return nil
}

func (r *Repo) swap(ctx context.Context, cur, next domain.Checkpoint) (bool, error) {
	nextData, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("encode checkpoint %s: %w", next.Component, err)
	}

	var expected []byte
	if cur.Revision > 0 || cur.Cursor != "" {
		expected, err = json.Marshal(cur)
		if err != nil {
			return false, fmt.Errorf("encode checkpoint %s: %w", cur.Component, err)
		}
	}

	ok, err := r.store.CompareAndSwap(ctx, r.key(next.Component), expected, nextData)
	if err != nil {
		return false, domain.Transient(fmt.Errorf("cas checkpoint %s: %w", next.Component, err))
	}
	return ok, nil
}
