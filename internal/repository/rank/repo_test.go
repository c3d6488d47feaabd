package rank

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/storeway/catsync/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn    func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
	delFn     func(ctx context.Context, key string) error
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "catsync"), ms
}

func TestPut_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	computed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		if key != "catsync:rank:item-1" {
			t.Errorf("unexpected key: %s", key)
		}
		if fields["score"] != "0.73" {
			t.Errorf("unexpected score: %s", fields["score"])
		}
		if fields["order_count"] != "15" {
			t.Errorf("unexpected order_count: %s", fields["order_count"])
		}
		if fields["window_sec"] != "3600" {
			t.Errorf("unexpected window_sec: %s", fields["window_sec"])
		}
		return nil
	}

	err := repo.Put(ctx, domain.RankSnapshot{
		ItemID:     "item-1",
		Score:      0.73,
		OrderCount: 15,
		ComputedAt: computed,
		Window:     time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLatest_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	computed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "catsync:rank:item-1" {
			t.Errorf("unexpected key: %s", key)
		}
		return map[string]string{
			"score":       "0.73",
			"order_count": "15",
			"computed_at": strconv.FormatInt(computed.UnixNano(), 10),
			"window_sec":  "3600",
		}, nil
	}

	snap, err := repo.Latest(ctx, "item-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ItemID != "item-1" || snap.Score != 0.73 || snap.OrderCount != 15 {
		t.Errorf("decoded snapshot mismatch: %+v", snap)
	}
	if !snap.ComputedAt.Equal(computed) || snap.Window != time.Hour {
		t.Errorf("decoded snapshot mismatch: %+v", snap)
	}
}

func TestLatest_NeverRanked(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{}, nil
	}

	snap, err := repo.Latest(ctx, "item-1")
	if err != nil {
		t.Fatalf("unranked item should not be an error, got %v", err)
	}
	if snap.ItemID != "item-1" || snap.Score != 0 || snap.OrderCount != 0 {
		t.Errorf("expected zero snapshot, got %+v", snap)
	}
}

func TestLatest_StoreError_Transient(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return nil, errors.New("connection lost")
	}

	_, err := repo.Latest(ctx, "item-1")
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestDelete_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	var deleted string
	ms.delFn = func(_ context.Context, key string) error {
		deleted = key
		return nil
	}

	if err := repo.Delete(ctx, "item-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "catsync:rank:item-1" {
		t.Errorf("unexpected key: %s", deleted)
	}
}
