package deadletter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/storeway/catsync/internal/domain"
)

// store is the consumer interface for dead-letter records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo stores permanently failed units of work for manual inspection.
// Entries are excluded from automatic retry; operators requeue or delete
// them through the ops API.
type Repo struct {
	store  store
	prefix string
	now    func() time.Time
}

// New creates a dead-letter repository under the given key prefix.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix, now: time.Now}
}

// WithClock overrides the clock (tests).
func (r *Repo) WithClock(now func() time.Time) *Repo {
	r.now = now
	return r
}

func (r *Repo) key(id string) string {
	return fmt.Sprintf("%s:deadletter:%s", r.prefix, id)
}

// Record persists a new dead-letter entry and returns it with ID and
// creation time filled in.
func (r *Repo) Record(ctx context.Context, dl domain.DeadLetter) (domain.DeadLetter, error) {
	dl.ID = uuid.NewString()
	dl.CreatedAt = r.now().UTC()

	fields := map[string]string{
		"item_id":    dl.ItemID,
		"component":  string(dl.Component),
		"kind":       string(dl.Kind),
		"attempts":   strconv.Itoa(dl.Attempts),
		"last_error": dl.LastError,
		"created_at": strconv.FormatInt(dl.CreatedAt.UnixNano(), 10),
	}
	if err := r.store.HSet(ctx, r.key(dl.ID), fields); err != nil {
		return domain.DeadLetter{}, domain.Transient(fmt.Errorf("record dead letter for %s: %w", dl.ItemID, err))
	}
	return dl, nil
}

// Get returns one entry by id.
func (r *Repo) Get(ctx context.Context, id string) (domain.DeadLetter, error) {
	fields, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return domain.DeadLetter{}, domain.Transient(fmt.Errorf("get dead letter %s: %w", id, err))
	}
	if len(fields) == 0 {
		return domain.DeadLetter{}, domain.ErrDocumentNotFound
	}
	return decode(id, fields), nil
}

// List returns all entries, newest first.
func (r *Repo) List(ctx context.Context) ([]domain.DeadLetter, error) {
	keys, err := r.store.Scan(ctx, r.key("*"))
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("scan dead letters: %w", err))
	}
	if len(keys) == 0 {
		return nil, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("load dead letters: %w", err))
	}

	idOffset := len(r.key(""))
	out := make([]domain.DeadLetter, 0, len(hashes))
	for i, fields := range hashes {
		if len(fields) == 0 {
			continue
		}
		out = append(out, decode(keys[i][idOffset:], fields))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes an entry (after manual requeue or dismissal).
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return domain.Transient(fmt.Errorf("delete dead letter %s: %w", id, err))
	}
	return nil
}

func decode(id string, fields map[string]string) domain.DeadLetter {
	dl := domain.DeadLetter{
		ID:        id,
		ItemID:    fields["item_id"],
		Component: domain.Component(fields["component"]),
		Kind:      domain.ChangeKind(fields["kind"]),
		LastError: fields["last_error"],
	}
	dl.Attempts, _ = strconv.Atoi(fields["attempts"])
	if ns, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		dl.CreatedAt = time.Unix(0, ns).UTC()
	}
	return dl
}
