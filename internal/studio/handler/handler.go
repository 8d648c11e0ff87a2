// Package handler implements the studio HTTP endpoints: resume upload and
// merge, element edits, keyword matching, preview, PDF export, and the
// renderer and cache status endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/document"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/llm"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/render"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/metrics"
)

type Extractor interface {
	Extract(ctx context.Context, u document.Upload) (string, error)
}

type Composer interface {
	MergeResume(ctx context.Context, req llm.MergeRequest) (*llm.Completion, error)
	EditElement(ctx context.Context, req llm.EditRequest) (*llm.Completion, error)
}

type PDFRenderer interface {
	RenderPDF(ctx context.Context, tree render.FileTree, mainFile string) ([]byte, error)
	EngineFor(mainFile string) string
	Status() render.Status
}

// Tracker receives analytics events. *analytics.Collector satisfies it,
// including a nil one.
type Tracker interface {
	Track(event any)
}

// CacheAdmin exposes the completion cache to operators.
type CacheAdmin interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) (int64, error)
}

// Config holds request defaults and limits.
type Config struct {
	DefaultModel           string
	FallbackAPIKey         string
	TopN                   int
	MaxUploadBytes         int64
	MaxJobDescriptionBytes int64
}

// Deps are the collaborators behind the endpoints. Tracker, Cache and
// Metrics may be nil.
type Deps struct {
	Extractor Extractor
	Composer  Composer
	Renderer  PDFRenderer
	Tracker   Tracker
	Cache     CacheAdmin
	Metrics   *metrics.Metrics
}

type Handler struct {
	cfg       Config
	extractor Extractor
	composer  Composer
	renderer  PDFRenderer
	tracker   Tracker
	cache     CacheAdmin
	metrics   *metrics.Metrics
	scorer    *matcher.Scorer
	logger    *slog.Logger
}

func New(cfg Config, deps Deps) (*Handler, error) {
	if cfg.TopN <= 0 {
		cfg.TopN = 20
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.MaxJobDescriptionBytes <= 0 {
		cfg.MaxJobDescriptionBytes = 1 << 20
	}
	scorer, err := matcher.NewScorer(cfg.TopN)
	if err != nil {
		return nil, err
	}
	return &Handler{
		cfg:       cfg,
		extractor: deps.Extractor,
		composer:  deps.Composer,
		renderer:  deps.Renderer,
		tracker:   deps.Tracker,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		scorer:    scorer,
		logger:    slog.Default().With("component", "studio-handler"),
	}, nil
}

// RendererStatus reports which PDF engines are installed.
func (h *Handler) RendererStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.renderer.Status())
}

// CacheStats returns completion cache hit and miss counts.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	hits, misses := h.cache.Stats()
	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"enabled":  true,
		"hits":     hits,
		"misses":   misses,
		"hit_rate": hitRate,
	})
}

// CacheInvalidate drops every cached completion.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "cache is not enabled", "")
		return
	}
	n, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed", "")
		return
	}
	logger.FromContext(r.Context()).Info("cache invalidated", "keys_deleted", n)
	h.writeJSON(w, http.StatusOK, map[string]any{"invalidated": n})
}

func (h *Handler) track(event any) {
	if h.tracker != nil {
		h.tracker.Track(event)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, details string) {
	h.writeJSON(w, status, studio.ErrorResponse{Error: message, Details: details})
}

// writeAppError maps err to its status and user-facing message.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, studio.ErrorResponse{
			Error:  "validation failed",
			Fields: verr.Fields,
		})
		return
	}
	status := apperrors.HTTPStatusCode(err)
	message := apperrors.Message(err)
	if status == http.StatusInternalServerError && apperrors.Details(err) == "" && message == err.Error() {
		message = "internal server error"
	}
	h.writeError(w, status, message, apperrors.Details(err))
}

// decodeJSON reads a JSON body of at most limit bytes into v. Unknown
// fields are accepted.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.New(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge, "File too large").
				WithDetails(fmt.Sprintf("request bodies are limited to %d bytes", tooLarge.Limit))
		}
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid JSON body").
			WithDetails(err.Error())
	}
	return nil
}

// bodyLimit bounds JSON bodies that carry a whole project.
func (h *Handler) bodyLimit() int64 {
	return h.cfg.MaxUploadBytes + formOverhead
}
