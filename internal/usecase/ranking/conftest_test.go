package ranking

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/storeway/catsync/internal/domain"
)

type mockCounters struct {
	countersFn      func(ctx context.Context, id string, q domain.CounterQuery) (domain.Counters, error)
	countersBatchFn func(ctx context.Context, ids []string, q domain.CounterQuery) (map[string]domain.Counters, error)
	counterBoundsFn func(ctx context.Context, q domain.CounterQuery) (domain.CounterBounds, error)
}

func (m *mockCounters) Counters(ctx context.Context, id string, q domain.CounterQuery) (domain.Counters, error) {
	if m.countersFn != nil {
		return m.countersFn(ctx, id, q)
	}
	return domain.Counters{}, nil
}

func (m *mockCounters) CountersBatch(ctx context.Context, ids []string, q domain.CounterQuery) (map[string]domain.Counters, error) {
	if m.countersBatchFn != nil {
		return m.countersBatchFn(ctx, ids, q)
	}
	return map[string]domain.Counters{}, nil
}

func (m *mockCounters) CounterBounds(ctx context.Context, q domain.CounterQuery) (domain.CounterBounds, error) {
	if m.counterBoundsFn != nil {
		return m.counterBoundsFn(ctx, q)
	}
	return domain.CounterBounds{}, nil
}

type mockSnaps struct {
	putFn func(ctx context.Context, snap domain.RankSnapshot) error
}

func (m *mockSnaps) Put(ctx context.Context, snap domain.RankSnapshot) error {
	if m.putFn != nil {
		return m.putFn(ctx, snap)
	}
	return nil
}

type mockRefresher struct {
	refreshRankFn func(ctx context.Context, snap domain.RankSnapshot) error
}

func (m *mockRefresher) RefreshRank(ctx context.Context, snap domain.RankSnapshot) error {
	if m.refreshRankFn != nil {
		return m.refreshRankFn(ctx, snap)
	}
	return nil
}

var testClock = func() time.Time {
	return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func testConfig() Config {
	return Config{
		Weights: Weights{Orders: 0.4, Views: 0.2, Favorites: 0.2, Rating: 0.2},
		Window:  21 * 24 * time.Hour,
		Recency: []float64{0.5, 0.3, 0.2},
	}
}

type testDeps struct {
	counters  *mockCounters
	snaps     *mockSnaps
	refresher *mockRefresher
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		counters:  &mockCounters{},
		snaps:     &mockSnaps{},
		refresher: &mockRefresher{},
	}
	svc := New(deps.counters, deps.snaps, deps.refresher, testConfig(), zap.NewNop()).WithClock(testClock)
	return svc, deps
}

func testBounds() domain.CounterBounds {
	return domain.CounterBounds{
		MinViews: 0, MaxViews: 1000,
		MinOrders: 0, MaxOrders: 100,
		MinFavorites: 0, MaxFavorites: 50,
	}
}
