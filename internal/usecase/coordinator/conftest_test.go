package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/storeway/catsync/internal/domain"
)

type mockFeed struct {
	listChangedSinceFn func(ctx context.Context, cursor domain.Cursor, limit int) ([]domain.ChangeEvent, error)
	feedHeadFn         func(ctx context.Context) (domain.Cursor, error)
	listItemsFn        func(ctx context.Context, afterID string, limit int) ([]domain.CatalogItem, string, error)
	listActiveSinceFn  func(ctx context.Context, since time.Time) ([]string, error)
}

func (m *mockFeed) ListChangedSince(ctx context.Context, cursor domain.Cursor, limit int) ([]domain.ChangeEvent, error) {
	if m.listChangedSinceFn != nil {
		return m.listChangedSinceFn(ctx, cursor, limit)
	}
	return nil, nil
}

func (m *mockFeed) FeedHead(ctx context.Context) (domain.Cursor, error) {
	if m.feedHeadFn != nil {
		return m.feedHeadFn(ctx)
	}
	return "", nil
}

func (m *mockFeed) ListItems(ctx context.Context, afterID string, limit int) ([]domain.CatalogItem, string, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx, afterID, limit)
	}
	return nil, "", nil
}

func (m *mockFeed) ListActiveSince(ctx context.Context, since time.Time) ([]string, error) {
	if m.listActiveSinceFn != nil {
		return m.listActiveSinceFn(ctx, since)
	}
	return nil, nil
}

type mockWriter struct {
	mu      sync.Mutex
	applied []string
	applyFn func(ctx context.Context, itemID string, kind domain.ChangeKind) error
}

func (m *mockWriter) Apply(ctx context.Context, itemID string, kind domain.ChangeKind) error {
	m.mu.Lock()
	m.applied = append(m.applied, itemID)
	m.mu.Unlock()
	if m.applyFn != nil {
		return m.applyFn(ctx, itemID, kind)
	}
	return nil
}

func (m *mockWriter) applies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.applied...)
}

type mockRanker struct {
	recomputeBatchFn func(ctx context.Context, itemIDs []string) ([]domain.RankSnapshot, error)
}

func (m *mockRanker) RecomputeBatch(ctx context.Context, itemIDs []string) ([]domain.RankSnapshot, error) {
	if m.recomputeBatchFn != nil {
		return m.recomputeBatchFn(ctx, itemIDs)
	}
	return nil, nil
}

type mockTagger struct {
	scanFn func(ctx context.Context, itemID string) (bool, error)
}

func (m *mockTagger) Scan(ctx context.Context, itemID string) (bool, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, itemID)
	}
	return false, nil
}

type mockCheckpoints struct {
	mu        sync.Mutex
	cursors   map[domain.Component]domain.Cursor
	getFn     func(ctx context.Context, c domain.Component) (domain.Checkpoint, error)
	advanceFn func(ctx context.Context, c domain.Component, cursor domain.Cursor) error
	resetFn   func(ctx context.Context, c domain.Component, cursor domain.Cursor) error
}

func newMockCheckpoints() *mockCheckpoints {
	return &mockCheckpoints{cursors: make(map[domain.Component]domain.Cursor)}
}

func (m *mockCheckpoints) Get(ctx context.Context, c domain.Component) (domain.Checkpoint, error) {
	if m.getFn != nil {
		return m.getFn(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Checkpoint{Component: c, Cursor: m.cursors[c]}, nil
}

func (m *mockCheckpoints) Advance(ctx context.Context, c domain.Component, cursor domain.Cursor) error {
	if m.advanceFn != nil {
		return m.advanceFn(ctx, c, cursor)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[c] = cursor
	return nil
}

func (m *mockCheckpoints) Reset(ctx context.Context, c domain.Component, cursor domain.Cursor) error {
	if m.resetFn != nil {
		return m.resetFn(ctx, c, cursor)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[c] = cursor
	return nil
}

func (m *mockCheckpoints) cursor(c domain.Component) domain.Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[c]
}

type mockDeadLetters struct {
	mu       sync.Mutex
	recorded []domain.DeadLetter
	getFn    func(ctx context.Context, id string) (domain.DeadLetter, error)
	deleteFn func(ctx context.Context, id string) error
	deleted  []string
}

func (m *mockDeadLetters) Record(ctx context.Context, dl domain.DeadLetter) (domain.DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dl.ID = fmt.Sprintf("dl-%d", len(m.recorded)+1)
	m.recorded = append(m.recorded, dl)
	return dl, nil
}

func (m *mockDeadLetters) Get(ctx context.Context, id string) (domain.DeadLetter, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domain.DeadLetter{}, domain.ErrDocumentNotFound
}

func (m *mockDeadLetters) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, id)
	m.mu.Unlock()
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockDeadLetters) all() []domain.DeadLetter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DeadLetter(nil), m.recorded...)
}

type mockAlerter struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (m *mockAlerter) Alert(_ context.Context, a domain.Alert) {
	m.mu.Lock()
	m.alerts = append(m.alerts, a)
	m.mu.Unlock()
}

func (m *mockAlerter) all() []domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Alert(nil), m.alerts...)
}

type mockSchema struct {
	dropFn         func(ctx context.Context) error
	ensureSchemaFn func(ctx context.Context) error
}

func (m *mockSchema) Drop(ctx context.Context) error {
	if m.dropFn != nil {
		return m.dropFn(ctx)
	}
	return nil
}

func (m *mockSchema) EnsureSchema(ctx context.Context) error {
	if m.ensureSchemaFn != nil {
		return m.ensureSchemaFn(ctx)
	}
	return nil
}

var testClock = func() time.Time {
	return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

type testDeps struct {
	feed        *mockFeed
	writer      *mockWriter
	ranker      *mockRanker
	tagger      *mockTagger
	checkpoints *mockCheckpoints
	deadletters *mockDeadLetters
	alerts      *mockAlerter
	schema      *mockSchema
}

func newTestService(t *testing.T, cfg Config) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		feed:        &mockFeed{},
		writer:      &mockWriter{},
		ranker:      &mockRanker{},
		tagger:      &mockTagger{},
		checkpoints: newMockCheckpoints(),
		deadletters: &mockDeadLetters{},
		alerts:      &mockAlerter{},
		schema:      &mockSchema{},
	}
	svc := New(deps.feed, deps.writer, deps.ranker, deps.tagger,
		deps.checkpoints, deps.deadletters, deps.alerts, deps.schema,
		cfg, zap.NewNop()).WithClock(testClock)
	return svc, deps
}

// waitFor polls until cond holds; enqueued work runs on its own goroutine.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func feedEvents(kinds map[string]domain.ChangeKind, order ...string) []domain.ChangeEvent {
	out := make([]domain.ChangeEvent, 0, len(order))
	for i, id := range order {
		kind := domain.ChangeUpdated
		if k, ok := kinds[id]; ok {
			kind = k
		}
		out = append(out, domain.ChangeEvent{
			Cursor: domain.Cursor(fmt.Sprintf("%020d", i+1)),
			ItemID: id,
			Kind:   kind,
		})
	}
	return out
}
