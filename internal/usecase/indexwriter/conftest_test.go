package indexwriter

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/storeway/catsync/internal/domain"
)

type mockRecords struct {
	getItemFn func(ctx context.Context, id string) (domain.CatalogItem, error)
}

func (m *mockRecords) GetItem(ctx context.Context, id string) (domain.CatalogItem, error) {
	if m.getItemFn != nil {
		return m.getItemFn(ctx, id)
	}
	return domain.CatalogItem{}, domain.ErrItemNotFound
}

type mockDocs struct {
	upsertFn    func(ctx context.Context, doc domain.IndexDocument) error
	deleteFn    func(ctx context.Context, id string) error
	patchRankFn func(ctx context.Context, id string, score float64, orderCount int64) (bool, error)
	patchTagsFn func(ctx context.Context, id string, tags []string) (bool, error)
}

func (m *mockDocs) Upsert(ctx context.Context, doc domain.IndexDocument) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, doc)
	}
	return nil
}

func (m *mockDocs) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockDocs) PatchRank(ctx context.Context, id string, score float64, orderCount int64) (bool, error) {
	if m.patchRankFn != nil {
		return m.patchRankFn(ctx, id, score, orderCount)
	}
	return true, nil
}

func (m *mockDocs) PatchTags(ctx context.Context, id string, tags []string) (bool, error) {
	if m.patchTagsFn != nil {
		return m.patchTagsFn(ctx, id, tags)
	}
	return true, nil
}

type mockRanks struct {
	latestFn func(ctx context.Context, itemID string) (domain.RankSnapshot, error)
	deleteFn func(ctx context.Context, itemID string) error
}

func (m *mockRanks) Latest(ctx context.Context, itemID string) (domain.RankSnapshot, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, itemID)
	}
	return domain.RankSnapshot{ItemID: itemID}, nil
}

func (m *mockRanks) Delete(ctx context.Context, itemID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, itemID)
	}
	return nil
}

type mockTags struct {
	tagsFn      func(ctx context.Context, itemID string) ([]string, error)
	deleteAllFn func(ctx context.Context, itemID string) error
}

func (m *mockTags) Tags(ctx context.Context, itemID string) ([]string, error) {
	if m.tagsFn != nil {
		return m.tagsFn(ctx, itemID)
	}
	return nil, nil
}

func (m *mockTags) DeleteAll(ctx context.Context, itemID string) error {
	if m.deleteAllFn != nil {
		return m.deleteAllFn(ctx, itemID)
	}
	return nil
}

type testDeps struct {
	records *mockRecords
	docs    *mockDocs
	ranks   *mockRanks
	tags    *mockTags
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		records: &mockRecords{},
		docs:    &mockDocs{},
		ranks:   &mockRanks{},
		tags:    &mockTags{},
	}
	svc := New(deps.records, deps.docs, deps.ranks, deps.tags, zap.NewNop())
	return svc, deps
}

func testItem(t *testing.T) domain.CatalogItem {
	t.Helper()
	return domain.CatalogItem{
		ID:         "item-1",
		SKU:        "SKU-001",
		Title:      "Trail Running Shoes",
		Brand:      "Peakline",
		Category:   "shoes/running",
		Price:      129.99,
		Stock:      42,
		Version:    7,
		ModifiedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}
