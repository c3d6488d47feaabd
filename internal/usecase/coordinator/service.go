package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/storeway/catsync/internal/domain"
	"github.com/storeway/catsync/internal/metrics"
)

// timeCursorLayout is fixed width so cursor strings order the same way the
// instants they encode do.
const timeCursorLayout = "2006-01-02T15:04:05.000000000Z"

// Config tunes the coordinator's scheduling and retry policy.
type Config struct {
	Workers     int
	BatchSize   int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Service sequences the index writer, ranking engine and tag importer
// against the shared per-component checkpoints. It owns retry with backoff,
// dead-lettering, failure isolation and the manual reindex-all flow.
type Service struct {
	feed        feed
	writer      writer
	ranker      ranker
	tagger      tagger
	checkpoints checkpointStore
	deadletters deadLetterStore
	alerts      alerter
	schema      schemaManager
	cfg         Config
	logger      *zap.Logger

	locks *keyedLock

	mu       sync.Mutex
	dirty    map[string]struct{}
	failures map[string]int
	// stalled remembers which event cursor is already dead-lettered per
	// item, so a cursor stall re-delivering the same event every poll does
	// not pile up duplicate records and alerts.
	stalled map[string]domain.Cursor

	reindexMu     sync.Mutex
	reindexCancel context.CancelFunc

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates the sync coordinator.
func New(f feed, w writer, rk ranker, tg tagger, cps checkpointStore, dls deadLetterStore, al alerter, sm schemaManager, cfg Config, logger *zap.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Service{
		feed:        f,
		writer:      w,
		ranker:      rk,
		tagger:      tg,
		checkpoints: cps,
		deadletters: dls,
		alerts:      al,
		schema:      sm,
		cfg:         cfg,
		logger:      logger,
		locks:       newKeyedLock(),
		dirty:       make(map[string]struct{}),
		failures:    make(map[string]int),
		stalled:     make(map[string]domain.Cursor),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// WithClock overrides the clock and disables backoff sleeps (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

// ProcessBatch drains one batch of the change feed through the worker pool
// and advances the index writer checkpoint past the contiguous settled
// prefix. Returns how many events the cursor moved past.
func (s *Service) ProcessBatch(ctx context.Context) (int, error) {
	cp, err := s.checkpoints.Get(ctx, domain.ComponentIndexWriter)
	if err != nil {
		return 0, err
	}
	events, err := s.feed.ListChangedSince(ctx, cp.Cursor, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list change feed: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	tasks := make([]*task, len(events))
	for i, ev := range events {
		tasks[i] = &task{event: ev, state: taskPending}
	}

	jobs := make(chan *task)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				s.run(ctx, t)
			}
		}()
	}
	for _, t := range tasks {
		jobs <- t
	}
	close(jobs)
	wg.Wait()

	settled := 0
	var last domain.Cursor
	for _, t := range tasks {
		if !t.settled() {
			break
		}
		last = t.event.Cursor
		settled++
	}
	if settled > 0 {
		if err := s.checkpoints.Advance(ctx, domain.ComponentIndexWriter, last); err != nil {
			return 0, err
		}
	}
	if settled < len(tasks) {
		s.logger.Warn("change feed cursor stalled on failed event",
			zap.Int("settled", settled),
			zap.Int("batch", len(tasks)),
			zap.String("item_id", tasks[settled].event.ItemID))
	}
	return settled, nil
}

// Enqueue validates a single change event and hands it to the pipeline
// without waiting for the apply; only invalid input is reported back.
// Counter increments just mark the item dirty for the next scheduled cycle;
// structural changes run through the index writer with the full retry
// policy, detached from the caller's deadline.
func (s *Service) Enqueue(ctx context.Context, ev domain.ChangeEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.Kind == domain.ChangeCounterIncremented {
		s.markDirty(ev.ItemID)
		metrics.EventsTotal.WithLabelValues(string(ev.Kind), "applied").Inc()
		return nil
	}

	t := &task{event: ev, state: taskPending}
	go s.run(context.WithoutCancel(ctx), t)
	return nil
}

// run executes one task to a terminal state. Per-item locking keeps
// concurrent work on the same item serialized while other items proceed.
func (s *Service) run(ctx context.Context, t *task) {
	t.state = taskInFlight
	ev := t.event

	if err := ev.Validate(); err != nil {
		// Retry cannot fix bad input: straight to the dead-letter store.
		t.err = err
		s.deadLetter(ctx, t, false)
		metrics.EventsTotal.WithLabelValues(string(ev.Kind), "invalid").Inc()
		return
	}

	if ev.Kind == domain.ChangeCounterIncremented {
		s.markDirty(ev.ItemID)
		t.state = taskDone
		metrics.EventsTotal.WithLabelValues(string(ev.Kind), "applied").Inc()
		return
	}

	s.locks.Lock(ev.ItemID)
	defer s.locks.Unlock(ev.ItemID)

	timer := time.Now()
	var err error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		t.attempts = attempt
		err = s.writer.Apply(ctx, ev.ItemID, ev.Kind)
		if err == nil || !domain.IsTransient(err) {
			break
		}
		if attempt == s.cfg.MaxAttempts {
			break
		}
		t.state = taskRetrying
		metrics.RetriesTotal.WithLabelValues(string(domain.ComponentIndexWriter)).Inc()
		if serr := s.sleep(ctx, s.backoff(attempt)); serr != nil {
			err = serr
			break
		}
	}
	metrics.ApplyDuration.WithLabelValues(string(domain.ComponentIndexWriter)).Observe(time.Since(timer).Seconds())

	if err != nil {
		t.err = err
		s.deadLetter(ctx, t, domain.IsTransient(err))
		metrics.EventsTotal.WithLabelValues(string(ev.Kind), "deadletter").Inc()
		return
	}

	switch ev.Kind {
	case domain.ChangeDeleted:
		s.clearItem(ev.ItemID)
	default:
		s.markDirty(ev.ItemID)
	}
	s.clearFailures(ev.ItemID)
	t.state = taskDone
	metrics.EventsTotal.WithLabelValues(string(ev.Kind), "applied").Inc()
}

// backoff grows exponentially from the base and saturates at the cap.
func (s *Service) backoff(attempt int) time.Duration {
	d := s.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.cfg.BackoffCap {
			return s.cfg.BackoffCap
		}
	}
	if s.cfg.BackoffCap > 0 && d > s.cfg.BackoffCap {
		return s.cfg.BackoffCap
	}
	return d
}

func (s *Service) deadLetter(ctx context.Context, t *task, retryable bool) {
	t.state = taskDeadLetter
	t.retryable = retryable

	// A retryable dead letter leaves the cursor stalled, so the same event
	// comes back on every poll. Record and alert it once; the guard clears
	// when the item finally applies.
	if retryable && !s.markStalled(t.event.ItemID, t.event.Cursor) {
		return
	}

	count := s.bumpFailures(t.event.ItemID)
	dl := domain.DeadLetter{
		ItemID:    t.event.ItemID,
		Component: domain.ComponentIndexWriter,
		Kind:      t.event.Kind,
		Attempts:  t.attempts,
		LastError: t.err.Error(),
	}
	if _, err := s.deadletters.Record(ctx, dl); err != nil {
		s.logger.Error("record dead letter", zap.String("item_id", dl.ItemID), zap.Error(err))
	}
	metrics.DeadLettersTotal.WithLabelValues(string(dl.Component)).Inc()

	s.alerts.Alert(ctx, domain.Alert{
		ItemID:       t.event.ItemID,
		Component:    domain.ComponentIndexWriter,
		FailureCount: count,
		LastError:    t.err.Error(),
	})
	s.logger.Error("event dead-lettered",
		zap.String("item_id", t.event.ItemID),
		zap.String("kind", string(t.event.Kind)),
		zap.Int("attempts", t.attempts),
		zap.Bool("retryable", retryable),
		zap.Error(t.err))
}

// Requeue replays a dead letter through the index writer and deletes the
// record on success. Dead letters for unreplayable input are just dropped.
func (s *Service) Requeue(ctx context.Context, id string) error {
	dl, err := s.deadletters.Get(ctx, id)
	if err != nil {
		return err
	}
	if dl.Kind.Valid() && dl.Kind != domain.ChangeCounterIncremented && dl.ItemID != "" {
		s.locks.Lock(dl.ItemID)
		err = s.writer.Apply(ctx, dl.ItemID, dl.Kind)
		s.locks.Unlock(dl.ItemID)
		if err != nil {
			return err
		}
		s.markDirty(dl.ItemID)
		s.clearFailures(dl.ItemID)
	}
	return s.deadletters.Delete(ctx, id)
}

// RunScheduledCycle recomputes ranking for every item with work pending:
// the union of the in-memory dirty set and every item with recorded
// activity since the ranking checkpoint. Deriving the work set from the
// activity log means counter recomputes survive a restart that wiped the
// dirty set. The dirty set is only cleared once the batch commits, so a
// failed cycle re-runs over the same items; recomputation from current
// counters makes that harmless.
func (s *Service) RunScheduledCycle(ctx context.Context) (int, error) {
	cp, err := s.checkpoints.Get(ctx, domain.ComponentRanking)
	if err != nil {
		return 0, err
	}
	active, err := s.feed.ListActiveSince(ctx, timeFromCursor(cp.Cursor))
	if err != nil {
		return 0, fmt.Errorf("list active items: %w", err)
	}

	ids := mergeIDs(s.snapshotDirty(), active)
	if len(ids) == 0 {
		return 0, nil
	}

	timer := time.Now()
	if _, err := s.ranker.RecomputeBatch(ctx, ids); err != nil {
		return 0, fmt.Errorf("recompute ranks: %w", err)
	}
	metrics.ApplyDuration.WithLabelValues(string(domain.ComponentRanking)).Observe(time.Since(timer).Seconds())

	s.clearDirty(ids)
	if err := s.checkpoints.Advance(ctx, domain.ComponentRanking, s.timeCursor()); err != nil && !errors.Is(err, domain.ErrCheckpointRegression) {
		return len(ids), err
	}
	s.logger.Info("ranking cycle complete", zap.Int("items", len(ids)))
	return len(ids), nil
}

// RunTagSweep walks the whole catalog and reconciles derived tags for every
// item. Per-item failures are logged and skipped; a sweep never halts on
// one bad item.
func (s *Service) RunTagSweep(ctx context.Context) (int, error) {
	changed := 0
	after := ""
	for {
		items, next, err := s.feed.ListItems(ctx, after, s.cfg.BatchSize)
		if err != nil {
			return changed, fmt.Errorf("list items: %w", err)
		}
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return changed, err
			}
			did, err := s.tagger.Scan(ctx, item.ID)
			if err != nil {
				s.logger.Warn("tag scan failed", zap.String("item_id", item.ID), zap.Error(err))
				continue
			}
			if did {
				changed++
			}
		}
		if next == "" {
			break
		}
		after = next
	}
	if err := s.checkpoints.Advance(ctx, domain.ComponentTagImport, s.timeCursor()); err != nil && !errors.Is(err, domain.ErrCheckpointRegression) {
		return changed, err
	}
	s.logger.Info("tag sweep complete", zap.Int("changed", changed))
	return changed, nil
}

// ReindexAll drops and rebuilds the whole index from the record store.
// The change feed checkpoint is pinned to the current head first, so the
// rebuild itself covers the backlog and incremental processing resumes
// from a consistent point afterwards. Only one run at a time.
func (s *Service) ReindexAll(ctx context.Context) error {
	s.reindexMu.Lock()
	if s.reindexCancel != nil {
		s.reindexMu.Unlock()
		return domain.ErrReindexRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.reindexCancel = cancel
	s.reindexMu.Unlock()

	metrics.ReindexRunning.Set(1)
	defer func() {
		metrics.ReindexRunning.Set(0)
		s.reindexMu.Lock()
		s.reindexCancel = nil
		s.reindexMu.Unlock()
		cancel()
	}()

	head, err := s.feed.FeedHead(runCtx)
	if err != nil {
		return fmt.Errorf("read feed head: %w", err)
	}
	if err := s.checkpoints.Reset(runCtx, domain.ComponentIndexWriter, head); err != nil {
		return err
	}
	if err := s.checkpoints.Reset(runCtx, domain.ComponentReindex, ""); err != nil {
		return err
	}
	if err := s.schema.Drop(runCtx); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	if err := s.schema.EnsureSchema(runCtx); err != nil {
		return fmt.Errorf("recreate index: %w", err)
	}

	total := 0
	after := ""
	for {
		items, next, err := s.feed.ListItems(runCtx, after, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		for _, item := range items {
			if err := runCtx.Err(); err != nil {
				s.logger.Warn("reindex cancelled", zap.Int("items_done", total))
				return err
			}
			s.locks.Lock(item.ID)
			err := s.writer.Apply(runCtx, item.ID, domain.ChangeUpdated)
			s.locks.Unlock(item.ID)
			if err != nil {
				t := &task{event: domain.ChangeEvent{ItemID: item.ID, Kind: domain.ChangeUpdated}, attempts: 1, err: err}
				s.deadLetter(runCtx, t, domain.IsTransient(err))
				continue
			}
			total++
			metrics.ReindexedItems.Inc()
		}
		if len(items) > 0 {
			last := items[len(items)-1].ID
			if err := s.checkpoints.Advance(runCtx, domain.ComponentReindex, domain.Cursor(last)); err != nil && !errors.Is(err, domain.ErrCheckpointRegression) {
				return err
			}
		}
		if next == "" {
			break
		}
		after = next
	}

	s.logger.Info("reindex complete", zap.Int("items", total))
	return nil
}

// CancelReindex stops a running reindex-all. Reports whether one was
// running.
func (s *Service) CancelReindex() bool {
	s.reindexMu.Lock()
	defer s.reindexMu.Unlock()
	if s.reindexCancel == nil {
		return false
	}
	s.reindexCancel()
	return true
}

// ReindexRunning reports whether a reindex-all is in flight.
func (s *Service) ReindexRunning() bool {
	s.reindexMu.Lock()
	defer s.reindexMu.Unlock()
	return s.reindexCancel != nil
}

// DirtyCount reports how many items await the next ranking cycle.
func (s *Service) DirtyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty)
}

func (s *Service) markDirty(itemID string) {
	s.mu.Lock()
	s.dirty[itemID] = struct{}{}
	metrics.DirtyItems.Set(float64(len(s.dirty)))
	s.mu.Unlock()
}

func (s *Service) snapshotDirty() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Service) clearDirty(ids []string) {
	s.mu.Lock()
	for _, id := range ids {
		delete(s.dirty, id)
	}
	metrics.DirtyItems.Set(float64(len(s.dirty)))
	s.mu.Unlock()
}

// clearItem forgets all per-item bookkeeping after a delete.
func (s *Service) clearItem(itemID string) {
	s.mu.Lock()
	delete(s.dirty, itemID)
	delete(s.failures, itemID)
	delete(s.stalled, itemID)
	metrics.DirtyItems.Set(float64(len(s.dirty)))
	s.mu.Unlock()
}

func (s *Service) bumpFailures(itemID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[itemID]++
	return s.failures[itemID]
}

func (s *Service) clearFailures(itemID string) {
	s.mu.Lock()
	delete(s.failures, itemID)
	delete(s.stalled, itemID)
	s.mu.Unlock()
}

// markStalled reports whether this event cursor is new for the item,
// remembering it either way.
func (s *Service) markStalled(itemID string, cursor domain.Cursor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, seen := s.stalled[itemID]; seen && cur == cursor {
		return false
	}
	s.stalled[itemID] = cursor
	return true
}

func (s *Service) timeCursor() domain.Cursor {
	return domain.Cursor(s.now().UTC().Format(timeCursorLayout))
}

// timeFromCursor decodes a time cursor; an empty or foreign cursor maps to
// the zero time, which widens the activity query to everything on record.
func timeFromCursor(c domain.Cursor) time.Time {
	t, err := time.Parse(timeCursorLayout, string(c))
	if err != nil {
		return time.Time{}
	}
	return t
}

// mergeIDs unions two id lists into a sorted, deduplicated slice.
func mergeIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range append(append([]string(nil), a...), b...) {
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

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
