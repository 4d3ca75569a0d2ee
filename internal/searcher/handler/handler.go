// Package handler exposes the dialect over HTTP: search, compile, document
// indexing and cache administration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/clause"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/query"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/tracing"
)

// maxDocumentBytes caps the body of an index request.
const maxDocumentBytes = 1 << 20

type QueryCompiler interface {
	Compile(tree *clause.Tree) (query.Node, error)
}

type SearchExecutor interface {
	Execute(ctx context.Context, node query.Node, limit int) (*executor.SearchResult, error)
}

type DocumentIndexer interface {
	IndexDocument(doc map[string]string) (uint64, error)
}

// DocumentSink receives a copy of every indexed document, e.g. the
// Postgres document store.
type DocumentSink interface {
	Put(ctx context.Context, docID uint64, fields map[string]string) error
}

// Deps are the collaborators of a Handler. Cache, Collector, Sink and
// Metrics may be nil.
type Deps struct {
	Parser    *parser.Parser
	Compiler  QueryCompiler
	Executor  SearchExecutor
	Indexer   DocumentIndexer
	Cache     *cache.QueryCache
	Collector *analytics.Collector
	Sink      DocumentSink
	Metrics   *metrics.Metrics
}

type Handler struct {
	deps         Deps
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(deps Deps, defaultLimit, maxResults int) *Handler {
	if deps.Parser == nil {
		deps.Parser = parser.New()
	}
	return &Handler{
		deps:         deps,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/compile", h.Compile)
	mux.HandleFunc("POST /api/v1/documents", h.IndexDocument)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("DELETE /api/v1/cache", h.CacheInvalidate)
	mux.HandleFunc("GET /health", h.Health)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search", middleware.GetRequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(log)
	}()

	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	node, err := h.compile(ctx, q)
	if err != nil {
		log.Info("query rejected", "query", q, "error", err)
		h.observeSearch("error", "none", 0, start)
		h.track(analytics.SearchEvent{
			Type:      analytics.EventCompileError,
			Query:     q,
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
		h.writeAppError(w, err)
		return
	}
	if node == nil {
		w.Header().Set("Server-Timing", span.ServerTiming())
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{Results: []merger.ScoredDoc{}})
		return
	}

	compiled := node.String()
	cacheStatus := "disabled"
	cacheHit := false
	var result *executor.SearchResult
	ectx, execSpan := tracing.StartChild(ctx, "execute")
	if h.deps.Cache != nil {
		result, cacheHit, err = h.deps.Cache.GetOrCompute(ectx, compiled, limit, func(cctx context.Context) (*executor.SearchResult, error) {
			return h.deps.Executor.Execute(cctx, node, limit)
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = h.deps.Executor.Execute(ectx, node, limit)
	}
	execSpan.SetAttr("cache", cacheStatus)
	execSpan.End()
	if err != nil {
		log.Error("search execution failed", "query", q, "compiled", compiled, "error", err)
		h.observeSearch("error", cacheStatus, 0, start)
		if errors.Is(err, context.DeadlineExceeded) {
			h.writeError(w, http.StatusGatewayTimeout, "search timed out")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.observeSearch(resultType, cacheStatus, len(result.Results), start)

	log.Info("search completed",
		"query", q,
		"compiled", compiled,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	eventType := analytics.EventCacheMiss
	if cacheHit {
		eventType = analytics.EventCacheHit
	}
	h.track(analytics.SearchEvent{
		Type:      eventType,
		Query:     q,
		Compiled:  compiled,
		Leaves:    len(query.Leaves(node)),
		TotalHits: result.TotalHits,
		Returned:  len(result.Results),
		LatencyMs: latencyMs,
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})

	w.Header().Set("Server-Timing", span.ServerTiming())
	h.writeJSON(w, http.StatusOK, result)
}

type leafView struct {
	Kind    string `json:"kind"`
	Field   string `json:"field"`
	Display string   `json:"display"`
	Terms   []string `json:"terms"`
	Hooked  bool     `json:"hooked,omitempty"`
}

type compileResponse struct {
	Query    string     `json:"query"`
	Compiled string     `json:"compiled"`
	Leaves   []leafView `json:"leaves"`
}

// Compile reports what a query string compiles to without running it.
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	node, err := h.compile(r.Context(), q)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	resp := compileResponse{Query: q, Leaves: []leafView{}}
	if node != nil {
		resp.Compiled = node.String()
		for _, leaf := range query.Leaves(node) {
			resp.Leaves = append(resp.Leaves, leafView{
				Kind:    leaf.Kind().String(),
				Field:   leaf.FieldName(),
				Display: leaf.String(),
				Terms:   query.Terms(leaf),
				Hooked:  leaf.ScoreHook() != nil,
			})
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// IndexDocument accepts a flat JSON object of field name to value.
func (h *Handler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	if h.deps.Indexer == nil {
		h.writeError(w, http.StatusServiceUnavailable, "indexing is disabled")
		return
	}

	var doc map[string]string
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err := dec.Decode(&doc); err != nil {
		h.writeError(w, http.StatusBadRequest, "body must be a JSON object of string fields")
		return
	}
	if len(doc) == 0 {
		h.writeError(w, http.StatusBadRequest, "document has no fields")
		return
	}

	docID, err := h.deps.Indexer.IndexDocument(doc)
	if err != nil {
		if docID == 0 {
			h.writeAppError(w, err)
			return
		}
		// the document is searchable; only the follow-up flush failed
		logger.FromContext(ctx).Error("post-index flush failed", "doc_id", docID, "error", err)
	}
	if h.deps.Sink != nil {
		if err := h.deps.Sink.Put(ctx, docID, doc); err != nil {
			logger.FromContext(ctx).Error("document store write failed", "doc_id", docID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "document indexed but not stored")
			return
		}
	}
	h.track(analytics.IndexEvent{
		Type:      analytics.EventIndexDoc,
		DocID:     docID,
		Fields:    len(doc),
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	})
	h.writeJSON(w, http.StatusCreated, map[string]uint64{"doc_id": docID})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.deps.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.deps.Cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) compile(ctx context.Context, q string) (query.Node, error) {
	_, ps := tracing.StartChild(ctx, "parse")
	tree, err := h.deps.Parser.Parse(q)
	ps.End()
	if err != nil {
		return nil, err
	}
	_, cs := tracing.StartChild(ctx, "compile")
	defer cs.End()
	return h.deps.Compiler.Compile(tree)
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if h.maxResults > 0 && n > h.maxResults {
		n = h.maxResults
	}
	return n, nil
}

func (h *Handler) observeSearch(resultType, cacheStatus string, returned int, start time.Time) {
	m := h.deps.Metrics
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	if resultType != "error" {
		m.SearchResultsCount.Observe(float64(returned))
	}
}

func (h *Handler) track(event any) {
	if h.deps.Collector != nil {
		h.deps.Collector.Track(event)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps dialect errors onto their HTTP status.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = "internal error"
	}
	h.writeError(w, status, msg)
}
