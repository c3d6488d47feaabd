package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/storeway/catsync/internal/domain"
	"github.com/storeway/catsync/internal/metrics"
)

// Service recomputes popularity scores from behavioral counters and writes
// them back as rank snapshots plus indexed rank fields.
type Service struct {
	counters  CounterSource
	snaps     SnapshotStore
	refresher Refresher
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a ranking engine.
func New(counters CounterSource, snaps SnapshotStore, refresher Refresher, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		counters:  counters,
		snaps:     snaps,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the clock (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) query() domain.CounterQuery {
	return domain.CounterQuery{Window: s.cfg.Window, Recency: s.cfg.Recency}
}

// Recompute reads the item's current counters, computes its score against
// catalog-wide bounds, persists a new snapshot and refreshes the indexed
// rank fields.
func (s *Service) Recompute(ctx context.Context, itemID string) (domain.RankSnapshot, error) {
	q := s.query()

	bounds, err := s.counters.CounterBounds(ctx, q)
	if err != nil {
		return domain.RankSnapshot{}, fmt.Errorf("counter bounds: %w", err)
	}
	c, err := s.counters.Counters(ctx, itemID, q)
	if err != nil {
		return domain.RankSnapshot{}, fmt.Errorf("counters for %s: %w", itemID, err)
	}

	return s.commit(ctx, itemID, c, bounds)
}

// RecomputeBatch recomputes many items in one pass. Counter bounds are read
// once and counters are fetched in a single batch, but the per-item scores
// are identical to individual Recompute calls against the same data.
func (s *Service) RecomputeBatch(ctx context.Context, itemIDs []string) ([]domain.RankSnapshot, error) {
	ids := dedupe(itemIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	q := s.query()

	bounds, err := s.counters.CounterBounds(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("counter bounds: %w", err)
	}
	batch, err := s.counters.CountersBatch(ctx, ids, q)
	if err != nil {
		return nil, fmt.Errorf("counters batch: %w", err)
	}

	snaps := make([]domain.RankSnapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.commit(ctx, id, batch[id], bounds)
		if err != nil {
			return snaps, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *Service) commit(ctx context.Context, itemID string, c domain.Counters, b domain.CounterBounds) (domain.RankSnapshot, error) {
	snap := domain.RankSnapshot{
		ItemID:     itemID,
		Score:      Score(s.cfg.Weights, c, b),
		OrderCount: c.OrderCountRaw,
		ComputedAt: s.now().UTC(),
		Window:     s.cfg.Window,
	}

	if err := s.snaps.Put(ctx, snap); err != nil {
		return domain.RankSnapshot{}, fmt.Errorf("store snapshot %s: %w", itemID, err)
	}
	if err := s.refresher.RefreshRank(ctx, snap); err != nil {
		return domain.RankSnapshot{}, err
	}

	metrics.RankRecomputeTotal.Inc()
	s.logger.Debug("rank recomputed",
		zap.String("item_id", itemID),
		zap.Float64("score", snap.Score),
	)
	return snap, nil
}

// dedupe sorts and deduplicates ids so batch results are deterministic
// regardless of dirty-set iteration order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
