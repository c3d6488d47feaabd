package indexwriter

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/storeway/catsync/internal/domain"
)

// Service projects catalog items into index documents and applies change
// events. All operations are idempotent; within one item, writes resolve by
// source version, not arrival order.
type Service struct {
	records RecordStore
	docs    DocumentRepo
	ranks   RankReader
	tags    TagReader
	logger  *zap.Logger
}

// New creates an index writer.
func New(records RecordStore, docs DocumentRepo, ranks RankReader, tags TagReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{records: records, docs: docs, ranks: ranks, tags: tags, logger: logger}
}

// Apply projects one change event onto the index.
//
// created/updated fetch the current item state, merge the latest rank
// snapshot and tag set, and upsert — the upsert is discarded when a newer
// version is already indexed, which makes out-of-order redelivery safe.
// deleted removes the document and the item's derived state. An item that
// vanished between the event and the fetch is treated as deleted, not as an
// error. Transient store failures surface to the caller for retry.
func (s *Service) Apply(ctx context.Context, itemID string, kind domain.ChangeKind) error {
	switch kind {
	case domain.ChangeDeleted:
		return s.remove(ctx, itemID)
	case domain.ChangeCreated, domain.ChangeUpdated:
		// fall through to projection
	default:
		return domain.InvalidEvent(fmt.Sprintf("index writer cannot apply %q", kind))
	}

	item, err := s.records.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			// Race between the event and a deletion: converge on deleted.
			s.logger.Debug("source item vanished, removing document", zap.String("item_id", itemID))
			return s.remove(ctx, itemID)
		}
		return fmt.Errorf("fetch item %s: %w", itemID, err)
	}

	snap, err := s.ranks.Latest(ctx, itemID)
	if err != nil {
		return fmt.Errorf("fetch rank snapshot %s: %w", itemID, err)
	}
	tags, err := s.tags.Tags(ctx, itemID)
	if err != nil {
		return fmt.Errorf("fetch tags %s: %w", itemID, err)
	}

	doc := domain.NewIndexDocument(item, snap, tags)
	if err := s.docs.Upsert(ctx, doc); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// Expected under out-of-order delivery; the indexed state is newer.
			s.logger.Debug("stale write discarded",
				zap.String("item_id", itemID),
				zap.Int64("version", doc.Version),
			)
			return nil
		}
		return fmt.Errorf("upsert document %s: %w", itemID, err)
	}

	return nil
}

// RefreshRank updates only the rank fields of an indexed document. Items not
// currently indexed are skipped; their next full projection picks up the
// snapshot anyway.
func (s *Service) RefreshRank(ctx context.Context, snap domain.RankSnapshot) error {
	patched, err := s.docs.PatchRank(ctx, snap.ItemID, snap.Score, snap.OrderCount)
	if err != nil {
		return fmt.Errorf("refresh rank %s: %w", snap.ItemID, err)
	}
	if !patched {
		s.logger.Debug("rank refresh skipped, item not indexed", zap.String("item_id", snap.ItemID))
	}
	return nil
}

// RefreshTags updates only the tags field of an indexed document.
func (s *Service) RefreshTags(ctx context.Context, itemID string, tags []string) error {
	patched, err := s.docs.PatchTags(ctx, itemID, tags)
	if err != nil {
		return fmt.Errorf("refresh tags %s: %w", itemID, err)
	}
	if !patched {
		s.logger.Debug("tag refresh skipped, item not indexed", zap.String("item_id", itemID))
	}
	return nil
}

func (s *Service) remove(ctx context.Context, itemID string) error {
	if err := s.docs.Delete(ctx, itemID); err != nil {
		return fmt.Errorf("delete document %s: %w", itemID, err)
	}
	if err := s.ranks.Delete(ctx, itemID); err != nil {
		return fmt.Errorf("delete rank snapshot %s: %w", itemID, err)
	}
	if err := s.tags.DeleteAll(ctx, itemID); err != nil {
		return fmt.Errorf("delete tags %s: %w", itemID, err)
	}
	return nil
}
