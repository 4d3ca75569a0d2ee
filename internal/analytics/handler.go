package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// SnapshotReader returns the most recent persisted stats, or nil when none
// exist. *aggregator.Store satisfies it.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context) (*AggregatedStats, error)
}

// Handler serves live stats from the aggregator and, when snapshots are
// persisted, the last saved snapshot.
type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotReader
	logger     *slog.Logger
}

// NewHandler accepts a nil snapshots reader; Latest then answers 404.
func NewHandler(aggregator *Aggregator, snapshots SnapshotReader) *Handler {
	return &Handler{
		aggregator: aggregator,
		snapshots:  snapshots,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/latest", h.Latest)
}

func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, h.aggregator.Stats())
}

func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.write(w, http.StatusNotFound, map[string]string{"error": "snapshot persistence is disabled"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	stats, err := h.snapshots.LatestSnapshot(ctx)
	if err != nil {
		h.logger.Error("loading latest snapshot failed", "error", err)
		h.write(w, http.StatusInternalServerError, map[string]string{"error": "could not load snapshot"})
		return
	}
	if stats == nil {
		h.write(w, http.StatusNotFound, map[string]string{"error": "no snapshot saved yet"})
		return
	}
	h.write(w, http.StatusOK, stats)
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
