package tagimport

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

type mockTagStore struct {
	listFn   func(ctx context.Context, itemID string, source domain.TagSource) ([]domain.TagAssignment, error)
	addFn    func(ctx context.Context, itemID string, source domain.TagSource, tags []string, at time.Time) error
	removeFn func(ctx context.Context, itemID string, source domain.TagSource, tags []string) error
	tagsFn   func(ctx context.Context, itemID string) ([]string, error)
}

func (m *mockTagStore) List(ctx context.Context, itemID string, source domain.TagSource) ([]domain.TagAssignment, error) {
	if m.listFn != nil {
		return m.listFn(ctx, itemID, source)
	}
	return nil, nil
}

func (m *mockTagStore) Add(ctx context.Context, itemID string, source domain.TagSource, tags []string, at time.Time) error {
	if m.addFn != nil {
		return m.addFn(ctx, itemID, source, tags, at)
	}
	return nil
}

func (m *mockTagStore) Remove(ctx context.Context, itemID string, source domain.TagSource, tags []string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, itemID, source, tags)
	}
	return nil
}

func (m *mockTagStore) Tags(ctx context.Context, itemID string) ([]string, error) {
	if m.tagsFn != nil {
		return m.tagsFn(ctx, itemID)
	}
	return nil, nil
}

type mockRefresher struct {
	refreshTagsFn func(ctx context.Context, itemID string, tags []string) error
}

func (m *mockRefresher) RefreshTags(ctx context.Context, itemID string, tags []string) error {
	if m.refreshTagsFn != nil {
		return m.refreshTagsFn(ctx, itemID, tags)
	}
	return nil
}

var testClock = func() time.Time {
	return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

type testDeps struct {
	records   *mockRecords
	tags      *mockTagStore
	refresher *mockRefresher
}

func newTestService(t *testing.T, rules ...Rule) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		records:   &mockRecords{},
		tags:      &mockTagStore{},
		refresher: &mockRefresher{},
	}
	svc := New(deps.records, deps.tags, deps.refresher, rules, zap.NewNop()).WithClock(testClock)
	return svc, deps
}

func testItem(t *testing.T) domain.CatalogItem {
	t.Helper()
	return domain.CatalogItem{
		ID:          "item-1",
		SKU:         "SKU-001",
		Title:       "Waterproof Trail Running Shoes",
		Description: "Lightweight shoes for rocky trails",
		Category:    "Shoes/Running",
		Price:       49.99,
	}
}

func assignments(itemID string, tags ...string) []domain.TagAssignment {
	out := make([]domain.TagAssignment, 0, len(tags))
	for _, tag := range tags {
		out = append(out, domain.TagAssignment{ItemID: itemID, Tag: tag, Source: domain.TagSourceImport})
	}
	return out
}
