package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/render"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/logger"
)

// Render returns the main file and stylesheets for an in-browser preview.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	var req studio.RenderRequest
	if err := decodeJSON(w, r, h.bodyLimit(), &req); err != nil {
		h.writeAppError(w, err)
		return
	}
	preview, err := render.BuildPreview(req.Files, req.MainFile)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, preview)
}

// ExportPDF renders the project and streams the PDF as an attachment.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req studio.RenderRequest
	if err := decodeJSON(w, r, h.bodyLimit(), &req); err != nil {
		h.writeAppError(w, err)
		return
	}
	mainFile := req.MainFile
	if mainFile == "" {
		mainFile = render.DefaultMainFile
	}

	pdf, err := h.renderer.RenderPDF(ctx, req.Files, mainFile)
	h.track(analytics.ExportEvent{
		Type:      analytics.EventPDFExported,
		Engine:    h.renderer.EngineFor(mainFile),
		Bytes:     len(pdf),
		Success:   err == nil,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(ctx),
	})
	if err != nil {
		log.Error("pdf export failed", "main_file", mainFile, "error", err)
		h.writeAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="resume.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		log.Warn("failed to write pdf", "error", err)
	}
}
