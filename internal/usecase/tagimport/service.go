package tagimport

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/storeway/catsync/internal/domain"
	"github.com/storeway/catsync/internal/metrics"
)

// Service derives automatic tag assignments for catalog items and keeps the
// stored assignments in sync with the rule set. It only ever touches
// assignments it owns (source "import"); manually curated rule-source
// assignments survive every scan untouched.
type Service struct {
	records   records
	tags      tagStore
	refresher refresher
	rules     []Rule
	logger    *zap.Logger
	now       func() time.Time
}

// New creates the tag import service.
func New(rec records, ts tagStore, ref refresher, rules []Rule, logger *zap.Logger) *Service {
	return &Service{
		records:   rec,
		tags:      ts,
		refresher: ref,
		rules:     rules,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the clock (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Scan recomputes the derived tags for one item and reconciles stored
// assignments against them. It is a diff: unchanged inputs produce zero
// writes, so repeated scans are idempotent. Returns whether anything
// changed.
func (s *Service) Scan(ctx context.Context, itemID string) (bool, error) {
	item, err := s.records.GetItem(ctx, itemID)
	if err != nil {
		if err == domain.ErrItemNotFound {
			// Deletion is the index writer's job; nothing to derive here.
			return false, nil
		}
		return false, fmt.Errorf("load item: %w", err)
	}

	desired := s.derive(item)

	current, err := s.tags.List(ctx, itemID, domain.TagSourceImport)
	if err != nil {
		return false, fmt.Errorf("list assignments: %w", err)
	}
	have := make(map[string]struct{}, len(current))
	for _, a := range current {
		have[a.Tag] = struct{}{}
	}

	var add, remove []string
	for tag := range desired {
		if _, ok := have[tag]; !ok {
			add = append(add, tag)
		}
	}
	for tag := range have {
		if _, ok := desired[tag]; !ok {
			remove = append(remove, tag)
		}
	}
	if len(add) == 0 && len(remove) == 0 {
		return false, nil
	}
	sort.Strings(add)
	sort.Strings(remove)

	at := s.now()
	if len(add) > 0 {
		if err := s.tags.Add(ctx, itemID, domain.TagSourceImport, add, at); err != nil {
			return false, fmt.Errorf("add tags: %w", err)
		}
		metrics.TagWritesTotal.WithLabelValues("add").Add(float64(len(add)))
	}
	if len(remove) > 0 {
		if err := s.tags.Remove(ctx, itemID, domain.TagSourceImport, remove); err != nil {
			return false, fmt.Errorf("remove tags: %w", err)
		}
		metrics.TagWritesTotal.WithLabelValues("remove").Add(float64(len(remove)))
	}

	merged, err := s.tags.Tags(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("merge tags: %w", err)
	}
	if err := s.refresher.RefreshTags(ctx, itemID, merged); err != nil {
		return false, fmt.Errorf("refresh document tags: %w", err)
	}

	s.logger.Debug("tag assignments reconciled",
		zap.String("item_id", itemID),
		zap.Strings("added", add),
		zap.Strings("removed", remove))
	return true, nil
}

func (s *Service) derive(item domain.CatalogItem) map[string]struct{} {
	out := make(map[string]struct{})
	for _, rule := range s.rules {
		for _, tag := range domain.NormalizeTags(rule.Tags(item)) {
			out[tag] = struct{}{}
		}
	}
	return out
}
