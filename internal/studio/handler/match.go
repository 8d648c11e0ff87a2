package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/tracing"
)

// MatchResume scores an uploaded resume against a job description sent as
// text or as a second file. Both files are extracted concurrently.
func (h *Handler) MatchResume(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if !h.parseMultipart(w, r) {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "No file provided", "")
		return
	}
	defer file.Close()

	topN := h.scorer.TopN()
	if v := strings.TrimSpace(r.FormValue("topN")); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			err = validator.ValidateTopN(n)
		}
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "topN must be between 1 and 200", "")
			return
		}
		topN = n
	}

	jobText := r.FormValue("jobDescription")
	jdFile, jdHeader, jdErr := r.FormFile("jobDescriptionFile")
	if jdErr == nil {
		defer jdFile.Close()
	}
	if strings.TrimSpace(jobText) == "" && jdErr != nil {
		h.writeError(w, http.StatusBadRequest, "Job description is required", "")
		return
	}
	if int64(len(jobText)) > h.cfg.MaxJobDescriptionBytes {
		h.writeError(w, http.StatusRequestEntityTooLarge, "Job description too large", "")
		return
	}

	resumeUpload, err := readLimited(file, header, h.cfg.MaxUploadBytes)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	var resumeText string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := h.extract(gctx, resumeUpload)
		resumeText = text
		return err
	})
	if strings.TrimSpace(jobText) == "" {
		jdUpload, err := readLimited(jdFile, jdHeader, h.cfg.MaxJobDescriptionBytes)
		if err != nil {
			h.writeAppError(w, err)
			return
		}
		g.Go(func() error {
			text, err := h.extract(gctx, jdUpload)
			jobText = text
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("match extraction failed", "filename", header.Filename, "error", err)
		h.writeAppError(w, err)
		return
	}

	report, err := h.score(ctx, resumeText, jobText, topN, start)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, studio.MatchResponse{MatchResults: report})
}

// Match scores two texts sent as JSON and returns the bare report.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req studio.MatchRequest
	if err := decodeJSON(w, r, 2*h.cfg.MaxJobDescriptionBytes+formOverhead, &req); err != nil {
		h.writeAppError(w, err)
		return
	}
	if err := validator.ValidateMatchRequest(&req); err != nil {
		h.writeAppError(w, err)
		return
	}
	topN := h.scorer.TopN()
	if req.TopN != nil {
		topN = *req.TopN
	}
	report, err := h.score(r.Context(), req.ResumeText, req.JobDescription, topN, start)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// score runs the matcher, records the score and emits a match event.
func (h *Handler) score(ctx context.Context, resumeText, jobText string, topN int, start time.Time) (matcher.MatchReport, error) {
	_, span := tracing.StartChildSpan(ctx, "match")
	defer span.End()

	var report matcher.MatchReport
	if topN == h.scorer.TopN() {
		report = h.scorer.Score(resumeText, jobText)
	} else {
		var err error
		report, err = matcher.ScoreMatch(resumeText, jobText, topN)
		if err != nil {
			span.SetError(err)
			return matcher.MatchReport{}, apperrors.Wrap(apperrors.ErrInvalidInput, err, http.StatusBadRequest, "invalid top_n")
		}
	}
	span.SetAttr("score", report.Score)
	span.SetAttr("top_n", topN)

	if h.metrics != nil {
		h.metrics.MatchScore.Observe(report.Score)
	}
	latency := time.Since(start).Milliseconds()
	h.track(analytics.MatchEvent{
		Type:            analytics.EventMatchScored,
		Score:           report.Score,
		ResumeKeywords:  len(report.ResumeKeywords),
		JobKeywords:     len(report.JobKeywords),
		MatchedKeywords: report.MatchedKeywords,
		MissingKeywords: report.MissingKeywords,
		LatencyMs:       latency,
		Timestamp:       time.Now().UTC(),
		RequestID:       logger.RequestID(ctx),
	})
	logger.FromContext(ctx).Info("match scored",
		"score", report.Score,
		"matched", len(report.MatchedKeywords),
		"missing", len(report.MissingKeywords),
		"latency_ms", latency,
	)
	return report, nil
}
