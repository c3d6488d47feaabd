package tagstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/storeway/catsync/internal/domain"
)

// store is the consumer interface for tag assignments (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, key string) error
}

// Repo stores the TagAssignment set of each item, partitioned by source so
// importer-managed tags never collide with curated ones.
type Repo struct {
	store  store
	prefix string
}

// New creates a tag assignment repository under the given key prefix.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

func (r *Repo) key(itemID string, source domain.TagSource) string {
	return fmt.Sprintf("%s:tags:%s:%s", r.prefix, source, itemID)
}

// List returns the assignments of one source for an item, sorted by tag.
func (r *Repo) List(ctx context.Context, itemID string, source domain.TagSource) ([]domain.TagAssignment, error) {
	fields, err := r.store.HGetAll(ctx, r.key(itemID, source))
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("list %s tags for %s: %w", source, itemID, err))
	}

	out := make([]domain.TagAssignment, 0, len(fields))
	for tag, raw := range fields {
		a := domain.TagAssignment{ItemID: itemID, Tag: tag, Source: source}
		if ns, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			a.AssignedAt = time.Unix(0, ns).UTC()
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

// Tags returns the merged tag set of both sources for an item.
func (r *Repo) Tags(ctx context.Context, itemID string) ([]string, error) {
	var all []string
	for _, source := range []domain.TagSource{domain.TagSourceRule, domain.TagSourceImport} {
		assignments, err := r.List(ctx, itemID, source)
		if err != nil {
			return nil, err
		}
		for _, a := range assignments {
			all = append(all, a.Tag)
		}
	}
	return domain.NormalizeTags(all), nil
}

// Add assigns tags to an item for one source. Re-adding an existing tag
// refreshes its timestamp only; the set semantics make this idempotent.
func (r *Repo) Add(ctx context.Context, itemID string, source domain.TagSource, tags []string, at time.Time) error {
	if len(tags) == 0 {
		return nil
	}
	fields := make(map[string]string, len(tags))
	stamp := strconv.FormatInt(at.UnixNano(), 10)
	for _, tag := range domain.NormalizeTags(tags) {
		fields[tag] = stamp
	}
	if err := r.store.HSet(ctx, r.key(itemID, source), fields); err != nil {
		return domain.Transient(fmt.Errorf("add %s tags for %s: %w", source, itemID, err))
	}
	return nil
}

// Remove unassigns tags from an item for one source.
func (r *Repo) Remove(ctx context.Context, itemID string, source domain.TagSource, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	if err := r.store.HDel(ctx, r.key(itemID, source), domain.NormalizeTags(tags)...); err != nil {
		return domain.Transient(fmt.Errorf("remove %s tags for %s: %w", source, itemID, err))
	}
	return nil
}

// DeleteAll removes every assignment of an item (record-store deletion).
func (r *Repo) DeleteAll(ctx context.Context, itemID string) error {
	for _, source := range []domain.TagSource{domain.TagSourceRule, domain.TagSourceImport} {
		if err := r.store.Del(ctx, r.key(itemID, source)); err != nil {
			return domain.Transient(fmt.Errorf("delete %s tags for %s: %w", source, itemID, err))
		}
	}
	return nil
}
