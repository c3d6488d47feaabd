package indexdoc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/storeway/catsync/internal/db"
	"github.com/storeway/catsync/internal/domain"
)

// store is the consumer interface for index documents (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HReplaceIfNewer(ctx context.Context, key, versionField string, version int64, fields map[string]string) (bool, error)
	HSetIfExists(ctx context.Context, key string, fields map[string]string) (bool, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo stores IndexDocuments as hashes behind an FT index.
type Repo struct {
	store  store
	prefix string
}

// New creates an index document repository under the given key prefix.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

func (r *Repo) indexName() string { return r.prefix + "-products" }
func (r *Repo) docKey(id string) string {
	return fmt.Sprintf("%s:doc:%s", r.prefix, id)
}

// EnsureSchema creates the product FT index if it does not exist yet.
// Searchable text: sku, title, description, brand, category. Filterable and
// sortable: price, stock, tags, rank_score, order_count.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return domain.Transient(fmt.Errorf("check product index: %w", err))
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(r.indexName()).
		Prefix(r.prefix + ":doc:").
		TextNoStem("sku").
		Text("title").
		Text("description").
		Text("brand").
		Text("category").
		Numeric("price", true).
		Numeric("stock", true).
		TagWithOpts("tags", ",", false).
		Numeric("rank_score", true).
		Numeric("order_count", true).
		Numeric("version", false).
		Build()
	if err != nil {
		return fmt.Errorf("build product index: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return domain.Transient(fmt.Errorf("create product index: %w", err))
	}
	return nil
}

// Drop removes the FT index together with all indexed documents.
func (r *Repo) Drop(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName(), true); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil
		}
		return domain.Transient(fmt.Errorf("drop product index: %w", err))
	}
	return nil
}

// Upsert writes the document unless a newer version is already indexed.
// A stale write returns domain.ErrVersionConflict; the replacement itself is
// atomic, so a document is never left with fields from two versions.
func (r *Repo) Upsert(ctx context.Context, doc domain.IndexDocument) error {
	ok, err := r.store.HReplaceIfNewer(ctx, r.docKey(doc.ID), "version", doc.Version, encode(doc))
	if err != nil {
		return domain.Transient(fmt.Errorf("upsert document %s: %w", doc.ID, err))
	}
	if !ok {
		return domain.ErrVersionConflict
	}
	return nil
}

// Get returns the indexed document by item id.
func (r *Repo) Get(ctx context.Context, id string) (domain.IndexDocument, error) {
	fields, err := r.store.HGetAll(ctx, r.docKey(id))
	if err != nil {
		return domain.IndexDocument{}, domain.Transient(fmt.Errorf("get document %s: %w", id, err))
	}
	if len(fields) == 0 {
		return domain.IndexDocument{}, domain.ErrDocumentNotFound
	}
	return decode(id, fields), nil
}

// Delete removes the document. Deleting an absent document is a no-op.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.docKey(id)); err != nil {
		return domain.Transient(fmt.Errorf("delete document %s: %w", id, err))
	}
	return nil
}

// PatchRank updates only the rank fields of an existing document. Returns
// false without writing when the item is not indexed; the existence check
// and the write are one atomic step, so a patch racing a delete cannot
// recreate the document. The version stamp is untouched: rank refreshes
// never race catalog-content writes.
func (r *Repo) PatchRank(ctx context.Context, id string, score float64, orderCount int64) (bool, error) {
	fields := map[string]string{
		"rank_score":  formatFloat(score),
		"order_count": strconv.FormatInt(orderCount, 10),
	}
	ok, err := r.store.HSetIfExists(ctx, r.docKey(id), fields)
	if err != nil {
		return false, domain.Transient(fmt.Errorf("patch rank %s: %w", id, err))
	}
	return ok, nil
}

// PatchTags updates only the tags field of an existing document, with the
// same atomic existence guard as PatchRank.
func (r *Repo) PatchTags(ctx context.Context, id string, tags []string) (bool, error) {
	fields := map[string]string{"tags": strings.Join(domain.NormalizeTags(tags), ",")}
	ok, err := r.store.HSetIfExists(ctx, r.docKey(id), fields)
	if err != nil {
		return false, domain.Transient(fmt.Errorf("patch tags %s: %w", id, err))
	}
	return ok, nil
}

// Search runs an FT query against the product index, ranked by rank_score
// descending so the best-selling items surface first. An empty query matches
// everything. The FT sort keys on score alone; the page is re-ordered with
// the full rank tie-break (order count, then item id) so equal scores list
// deterministically.
func (r *Repo) Search(ctx context.Context, query string, offset, limit int) ([]domain.IndexDocument, int, error) {
	res, err := r.store.SearchList(ctx, &db.ListQuery{
		IndexName: r.indexName(),
		Query:     query,
		SortBy:    "rank_score",
		SortAsc:   false,
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		return nil, 0, domain.Transient(fmt.Errorf("search documents: %w", err))
	}

	docs := make([]domain.IndexDocument, 0, len(res.Entries))
	for _, e := range res.Entries {
		id := strings.TrimPrefix(e.Key, r.prefix+":doc:")
		docs = append(docs, decode(id, e.Fields))
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return domain.CompareRank(rankKey(docs[i]), rankKey(docs[j])) < 0
	})
	return docs, res.Total, nil
}

func rankKey(d domain.IndexDocument) domain.RankSnapshot {
	return domain.RankSnapshot{ItemID: d.ID, Score: d.RankScore, OrderCount: d.OrderCount}
}

// Count returns the number of indexed documents.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName(), "*")
	if err != nil {
		return 0, domain.Transient(fmt.Errorf("count documents: %w", err))
	}
	return n, nil
}

func encode(doc domain.IndexDocument) map[string]string {
	return map[string]string{
		"id":          doc.ID,
		"sku":         doc.SKU,
		"title":       doc.Title,
		"description": doc.Description,
		"brand":       doc.Brand,
		"category":    doc.Category,
		"price":       formatFloat(doc.Price),
		"stock":       strconv.FormatInt(doc.Stock, 10),
		"tags":        strings.Join(doc.Tags, ","),
		"rank_score":  formatFloat(doc.RankScore),
		"order_count": strconv.FormatInt(doc.OrderCount, 10),
		"version":     strconv.FormatInt(doc.Version, 10),
		"updated_at":  strconv.FormatInt(doc.UpdatedAt.Unix(), 10),
	}
}

func decode(id string, fields map[string]string) domain.IndexDocument {
	doc := domain.IndexDocument{
		ID:          id,
		SKU:         fields["sku"],
		Title:       fields["title"],
		Description: fields["description"],
		Brand:       fields["brand"],
		Category:    fields["category"],
	}
	doc.Price, _ = strconv.ParseFloat(fields["price"], 64)
	doc.Stock, _ = strconv.ParseInt(fields["stock"], 10, 64)
	if fields["tags"] != "" {
		doc.Tags = strings.Split(fields["tags"], ",")
	}
	doc.RankScore, _ = strconv.ParseFloat(fields["rank_score"], 64)
	doc.OrderCount, _ = strconv.ParseInt(fields["order_count"], 10, 64)
	doc.Version, _ = strconv.ParseInt(fields["version"], 10, 64)
	if ts, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		doc.UpdatedAt = time.Unix(ts, 0).UTC()
	}
	return doc
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
