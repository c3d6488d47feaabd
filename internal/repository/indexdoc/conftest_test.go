package indexdoc

import (
	"context"
	"testing"
	"time"

	"github.com/storeway/catsync/internal/db"
	"github.com/storeway/catsync/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetAllFn         func(ctx context.Context, key string) (map[string]string, error)
	hreplaceIfNewerFn func(ctx context.Context, key, versionField string, version int64, fields map[string]string) (bool, error)
	hsetIfExistsFn    func(ctx context.Context, key string, fields map[string]string) (bool, error)
	delFn             func(ctx context.Context, key string) error
	createIndexFn     func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn       func(ctx context.Context, name string, deleteDocs bool) error
	indexExistsFn     func(ctx context.Context, name string) (bool, error)
	searchListFn      func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	searchCountFn     func(ctx context.Context, index, query string) (int, error)
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HReplaceIfNewer(ctx context.Context, key, versionField string, version int64, fields map[string]string) (bool, error) {
	if m.hreplaceIfNewerFn != nil {
		return m.hreplaceIfNewerFn(ctx, key, versionField, version, fields)
	}
	return true, nil
}

func (m *mockStore) HSetIfExists(ctx context.Context, key string, fields map[string]string) (bool, error) {
	if m.hsetIfExistsFn != nil {
		return m.hsetIfExistsFn(ctx, key, fields)
	}
	return false, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name, deleteDocs)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "catsync"), ms
}

func testDocument(t *testing.T) domain.IndexDocument {
	t.Helper()
	return domain.IndexDocument{
		ID:          "item-1",
		SKU:         "SKU-001",
		Title:       "Trail Running Shoes",
		Description: "Lightweight shoes for rocky trails",
		Brand:       "Peakline",
		Category:    "shoes/running",
		Price:       129.99,
		Stock:       42,
		Tags:        []string{"running", "sale"},
		RankScore:   0.73,
		OrderCount:  15,
		Version:     7,
		UpdatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}
