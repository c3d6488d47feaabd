// Package chi exposes the operational HTTP surface of the sync pipeline:
// health and metrics, reindex control, dead-letter inspection and the
// per-component checkpoint view.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/storeway/catsync/internal/domain"
	healthuc "github.com/storeway/catsync/internal/usecase/health"
)

// Error response codes returned to API clients.
const (
	codeUnauthorized = "unauthorized"
	codeNotFound     = "not_found"
	codeConflict     = "conflict"
	codeInternal     = "internal_error"
)

// Coordinator is the consumer interface over the sync coordinator (ISP).
type Coordinator interface {
	ReindexAll(ctx context.Context) error
	CancelReindex() bool
	ReindexRunning() bool
	Requeue(ctx context.Context, id string) error
	DirtyCount() int
}

// DeadLetterReader lists and deletes dead-letter records.
type DeadLetterReader interface {
	List(ctx context.Context) ([]domain.DeadLetter, error)
	Delete(ctx context.Context, id string) error
}

// CheckpointReader reads per-component checkpoints.
type CheckpointReader interface {
	Get(ctx context.Context, c domain.Component) (domain.Checkpoint, error)
}

// DocumentReader queries the product index.
type DocumentReader interface {
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, query string, offset, limit int) ([]domain.IndexDocument, int, error)
}

// Server implements the operational HTTP API.
type Server struct {
	coordinator Coordinator
	deadletters DeadLetterReader
	checkpoints CheckpointReader
	documents   DocumentReader
	health      *healthuc.Service
	logger      *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	coordinator Coordinator,
	deadletters DeadLetterReader,
	checkpoints CheckpointReader,
	documents DocumentReader,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		coordinator: coordinator,
		deadletters: deadletters,
		checkpoints: checkpoints,
		documents:   documents,
		health:      health,
		logger:      logger,
	}
}

// Register mounts all routes on the given router. Middleware is assembled
// by the caller.
func (s *Server) Register(r chirouter.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chirouter.Router) {
		r.Get("/status", s.GetStatus)
		r.Get("/search", s.SearchDocuments)
		r.Post("/reindex", s.StartReindex)
		r.Delete("/reindex", s.CancelReindex)
		r.Get("/checkpoints", s.ListCheckpoints)
		r.Get("/deadletters", s.ListDeadLetters)
		r.Post("/deadletters/{id}/requeue", s.RequeueDeadLetter)
		r.Delete("/deadletters/{id}", s.DeleteDeadLetter)
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// GetStatus handles GET /v1/status.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.documents.Count(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"indexed_documents": count,
		"dirty_items":       s.coordinator.DirtyCount(),
		"reindex_running":   s.coordinator.ReindexRunning(),
	})
}

// Search pagination bounds.
const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// SearchDocuments handles GET /v1/search. Accepts an FT query in q
// (empty matches everything) plus offset/limit pagination; results come
// back ranked by score so operators can eyeball what the storefront sees.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	offset := parseIntParam(r, "offset", 0)
	limit := parseIntParam(r, "limit", defaultSearchLimit)
	if limit < 1 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}
	if offset < 0 {
		offset = 0
	}

	docs, total, err := s.documents.Search(r.Context(), query, offset, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]map[string]any, len(docs))
	for i, doc := range docs {
		items[i] = map[string]any{
			"id":          doc.ID,
			"sku":         doc.SKU,
			"title":       doc.Title,
			"brand":       doc.Brand,
			"category":    doc.Category,
			"price":       doc.Price,
			"stock":       doc.Stock,
			"tags":        doc.Tags,
			"rank_score":  doc.RankScore,
			"order_count": doc.OrderCount,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// StartReindex handles POST /v1/reindex. The rebuild runs detached from
// the request; progress is visible via /v1/status and /v1/checkpoints.
func (s *Server) StartReindex(w http.ResponseWriter, r *http.Request) {
	if s.coordinator.ReindexRunning() {
		writeError(w, http.StatusConflict, codeConflict, domain.ErrReindexRunning.Error())
		return
	}

	go func() {
		ctx := context.Background()
		if err := s.coordinator.ReindexAll(ctx); err != nil {
			if errors.Is(err, domain.ErrReindexRunning) || errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error("reindex failed", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"started_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// CancelReindex handles DELETE /v1/reindex.
func (s *Server) CancelReindex(w http.ResponseWriter, r *http.Request) {
	if !s.coordinator.CancelReindex() {
		writeError(w, http.StatusNotFound, codeNotFound, "no reindex in progress")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCheckpoints handles GET /v1/checkpoints.
func (s *Server) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	components := []domain.Component{
		domain.ComponentIndexWriter,
		domain.ComponentRanking,
		domain.ComponentTagImport,
		domain.ComponentReindex,
	}

	items := make([]domain.Checkpoint, 0, len(components))
	for _, c := range components {
		cp, err := s.checkpoints.Get(r.Context(), c)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		items = append(items, cp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ListDeadLetters handles GET /v1/deadletters.
func (s *Server) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	dls, err := s.deadletters.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]map[string]any, len(dls))
	for i, dl := range dls {
		items[i] = map[string]any{
			"id":         dl.ID,
			"item_id":    dl.ItemID,
			"component":  dl.Component,
			"kind":       dl.Kind,
			"attempts":   dl.Attempts,
			"last_error": dl.LastError,
			"created_at": dl.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// RequeueDeadLetter handles POST /v1/deadletters/{id}/requeue.
func (s *Server) RequeueDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := chirouter.URLParam(r, "id")
	if err := s.coordinator.Requeue(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDeadLetter handles DELETE /v1/deadletters/{id}.
func (s *Server) DeleteDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := chirouter.URLParam(r, "id")
	if err := s.deadletters.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrItemNotFound,
		domain.ErrDocumentNotFound,
		domain.ErrReindexRunning,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	switch {
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, msg)
	case errors.Is(err, domain.ErrReindexRunning):
		writeError(w, http.StatusConflict, codeConflict, msg)
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
