package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
)

const (
	defaultSnapshotLimit = 10
	maxSnapshotLimit     = 100
)

// SnapshotLister returns saved snapshots, newest first.
type SnapshotLister interface {
	List(ctx context.Context, limit int) ([]AggregatedStats, error)
}

// Handler serves the aggregator's live stats and the saved history.
type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotLister
	logger     *slog.Logger
}

// NewHandler serves history only when snapshots is non-nil.
func NewHandler(aggregator *Aggregator, snapshots SnapshotLister) *Handler {
	return &Handler{
		aggregator: aggregator,
		snapshots:  snapshots,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Register mounts the analytics routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
	mux.HandleFunc("GET /api/v1/analytics/snapshots/latest", h.LatestSnapshot)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.aggregator.Stats())
}

// Snapshots lists up to ?limit= snapshots, capped at maxSnapshotLimit.
func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.fail(w, err)
		return
	}
	list, err := h.list(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, struct {
		Snapshots []AggregatedStats `json:"snapshots"`
		Count     int               `json:"count"`
	}{list, len(list)})
}

// LatestSnapshot returns the newest saved snapshot, or 404 before the
// first save.
func (h *Handler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	list, err := h.list(r.Context(), 1)
	if err != nil {
		h.fail(w, err)
		return
	}
	if len(list) == 0 {
		h.fail(w, apperrors.New(apperrors.ErrNotFound, http.StatusNotFound, "no snapshots saved yet"))
		return
	}
	h.respond(w, http.StatusOK, list[0])
}

func (h *Handler) list(ctx context.Context, limit int) ([]AggregatedStats, error) {
	if h.snapshots == nil {
		return nil, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "snapshots are disabled")
	}
	list, err := h.snapshots.List(ctx, limit)
	if err != nil {
		h.logger.Error("listing snapshots failed", "limit", limit, "error", err)
		return nil, apperrors.Wrap(apperrors.ErrInternal, err, http.StatusInternalServerError, "failed to list snapshots")
	}
	if list == nil {
		list = []AggregatedStats{}
	}
	return list, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultSnapshotLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	return min(n, maxSnapshotLimit), nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	body := map[string]string{"error": apperrors.Message(err)}
	if d := apperrors.Details(err); d != "" {
		body["details"] = d
	}
	h.respond(w, apperrors.HTTPStatusCode(err), body)
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("writing analytics response failed", "error", err)
	}
}
