package chi

import (
	"context"
	"net/http/httptest"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/storeway/catsync/internal/domain"
	healthuc "github.com/storeway/catsync/internal/usecase/health"
)

type mockCoordinator struct {
	reindexAllFn     func(ctx context.Context) error
	cancelReindexFn  func() bool
	reindexRunningFn func() bool
	requeueFn        func(ctx context.Context, id string) error
	dirtyCountFn     func() int
}

func (m *mockCoordinator) ReindexAll(ctx context.Context) error {
	if m.reindexAllFn != nil {
		return m.reindexAllFn(ctx)
	}
	return nil
}

func (m *mockCoordinator) CancelReindex() bool {
	if m.cancelReindexFn != nil {
		return m.cancelReindexFn()
	}
	return false
}

func (m *mockCoordinator) ReindexRunning() bool {
	if m.reindexRunningFn != nil {
		return m.reindexRunningFn()
	}
	return false
}

func (m *mockCoordinator) Requeue(ctx context.Context, id string) error {
	if m.requeueFn != nil {
		return m.requeueFn(ctx, id)
	}
	return nil
}

func (m *mockCoordinator) DirtyCount() int {
	if m.dirtyCountFn != nil {
		return m.dirtyCountFn()
	}
	return 0
}

type mockDeadLetters struct {
	listFn   func(ctx context.Context) ([]domain.DeadLetter, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockDeadLetters) List(ctx context.Context) ([]domain.DeadLetter, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockDeadLetters) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockCheckpoints struct {
	getFn func(ctx context.Context, c domain.Component) (domain.Checkpoint, error)
}

func (m *mockCheckpoints) Get(ctx context.Context, c domain.Component) (domain.Checkpoint, error) {
	if m.getFn != nil {
		return m.getFn(ctx, c)
	}
	return domain.Checkpoint{Component: c}, nil
}

type mockDocuments struct {
	countFn  func(ctx context.Context) (int, error)
	searchFn func(ctx context.Context, query string, offset, limit int) ([]domain.IndexDocument, int, error)
}

func (m *mockDocuments) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockDocuments) Search(ctx context.Context, query string, offset, limit int) ([]domain.IndexDocument, int, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, offset, limit)
	}
	return nil, 0, nil
}

type mockPinger struct {
	pingFn func(ctx context.Context) error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

type testDeps struct {
	coordinator *mockCoordinator
	deadletters *mockDeadLetters
	checkpoints *mockCheckpoints
	documents   *mockDocuments
	index       *mockPinger
	records     *mockPinger
}

func newTestServer(t *testing.T) (*httptest.Server, *testDeps) {
	t.Helper()
	deps := &testDeps{
		coordinator: &mockCoordinator{},
		deadletters: &mockDeadLetters{},
		checkpoints: &mockCheckpoints{},
		documents:   &mockDocuments{},
		index:       &mockPinger{},
		records:     &mockPinger{},
	}

	srv := NewServer(deps.coordinator, deps.deadletters, deps.checkpoints,
		deps.documents, healthuc.New(deps.index, deps.records), zap.NewNop())

	r := chirouter.NewRouter()
	srv.Register(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, deps
}
