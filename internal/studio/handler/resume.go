package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/document"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/llm"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/render"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio/middleware"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/tracing"
)

// formOverhead is allowed on top of the upload limit for the other
// multipart fields, mostly the serialized file tree.
const formOverhead = 4 << 20

// UploadResume extracts the text of an uploaded resume and asks the model
// to merge it into the project's index.html.
func (h *Handler) UploadResume(w http.ResponseWriter, r *http.Request) {
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

	apiKey := middleware.ResolveAPIKey(r, r.FormValue("apiKey"), h.cfg.FallbackAPIKey)
	if apiKey == "" {
		h.writeError(w, http.StatusBadRequest, "API key is required", "")
		return
	}
	model := strings.TrimSpace(r.FormValue("model"))
	if model == "" {
		model = h.cfg.DefaultModel
	}
	ctx = logger.With(ctx, "model", model, "key_fp", logger.Fingerprint(apiKey))
	log = logger.FromContext(ctx)

	filesJSON := r.FormValue("files")
	if strings.TrimSpace(filesJSON) == "" {
		h.writeError(w, http.StatusBadRequest, "Files data is required", "")
		return
	}
	var tree render.FileTree
	if err := json.Unmarshal([]byte(filesJSON), &tree); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid files data: %v", err), "")
		return
	}
	template, ok := tree.Find(render.DefaultMainFile)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Resume template file not found", "")
		return
	}
	if err := tree.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid files data: "+apperrors.Message(err), "")
		return
	}

	upload, err := readLimited(file, header, h.cfg.MaxUploadBytes)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	resumeText, err := h.extract(ctx, upload)
	if err != nil {
		log.Warn("resume extraction failed", "filename", header.Filename, "error", err)
		h.writeAppError(w, err)
		return
	}

	completion, err := h.composer.MergeResume(ctx, llm.MergeRequest{
		APIKey:       apiKey,
		Model:        model,
		TemplateHTML: template.Content,
		ResumeText:   resumeText,
	})
	h.trackCompletion(r, analytics.EventResumeCustomized, completion, err, start)
	if err != nil {
		log.Error("resume merge failed", "error", err)
		h.writeAppError(w, err)
		return
	}

	updated, _ := tree.WithContent(template.Path, completion.HTML)
	log.Info("resume customized",
		"model_used", completion.Model,
		"cached", completion.Cached,
		"resume_chars", len(resumeText),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, studio.UpdatedFilesResponse{
		Success:      true,
		UpdatedFiles: updated,
		Model:        completion.Model,
	})
}

// EditResume rewrites one element of a project file following a plain
// language instruction.
func (h *Handler) EditResume(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req studio.EditRequest
	if err := decodeJSON(w, r, h.bodyLimit(), &req); err != nil {
		h.writeAppError(w, err)
		return
	}
	apiKey := middleware.ResolveAPIKey(r, req.APIKey, h.cfg.FallbackAPIKey)
	if apiKey == "" {
		h.writeError(w, http.StatusBadRequest, "API key is required", "")
		return
	}
	if err := validator.ValidateEditRequest(&req); err != nil {
		h.writeAppError(w, err)
		return
	}
	if req.TargetPath == "" {
		req.TargetPath = render.DefaultMainFile
	}
	if req.Model == "" {
		req.Model = h.cfg.DefaultModel
	}
	target, ok := req.Files.Find(req.TargetPath)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("Target file %s not found", req.TargetPath), "")
		return
	}

	completion, err := h.composer.EditElement(ctx, llm.EditRequest{
		APIKey:       apiKey,
		Model:        req.Model,
		DocumentHTML: target.Content,
		Selector:     req.Selector,
		Instruction:  req.Instruction,
	})
	h.trackCompletion(r, analytics.EventResumeEdited, completion, err, start)
	if err != nil {
		log.Error("element edit failed", "model", req.Model, "selector", req.Selector, "error", err)
		h.writeAppError(w, err)
		return
	}

	updated, _ := req.Files.WithContent(target.Path, completion.HTML)
	log.Info("element edited",
		"model", completion.Model,
		"target", target.Path,
		"selector", req.Selector,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, studio.UpdatedFilesResponse{
		Success:      true,
		UpdatedFiles: updated,
		Model:        completion.Model,
	})
}

// parseMultipart bounds and parses a multipart body, writing the error
// response itself when it fails.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "File too large",
				fmt.Sprintf("uploads are limited to %d bytes", h.cfg.MaxUploadBytes))
			return false
		}
		h.writeError(w, http.StatusBadRequest, "No file provided", err.Error())
		return false
	}
	return true
}

func readLimited(file multipart.File, header *multipart.FileHeader, limit int64) (document.Upload, error) {
	if header.Size > limit {
		return document.Upload{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge,
			"File too large").WithDetails(fmt.Sprintf("%s exceeds %d bytes", header.Filename, limit))
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return document.Upload{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"Failed to read the uploaded file").WithDetails(err.Error())
	}
	if int64(len(data)) > limit {
		return document.Upload{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge,
			"File too large").WithDetails(fmt.Sprintf("%s exceeds %d bytes", header.Filename, limit))
	}
	return document.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// extract runs the extractor under its own span.
func (h *Handler) extract(ctx context.Context, u document.Upload) (string, error) {
	ctx, span := tracing.StartChildSpan(ctx, "extract")
	defer span.End()
	span.SetAttr("filename", u.Filename)
	span.SetAttr("bytes", len(u.Data))
	text, err := h.extractor.Extract(ctx, u)
	if err != nil {
		span.SetError(err)
		return "", err
	}
	span.SetAttr("chars", len(text))
	return text, nil
}

func (h *Handler) trackCompletion(r *http.Request, typ analytics.EventType, c *llm.Completion, err error, start time.Time) {
	event := analytics.CompletionEvent{
		Type:      typ,
		Success:   err == nil,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(r.Context()),
	}
	if c != nil {
		event.Model = c.Model
		event.Cached = c.Cached
	}
	if err != nil {
		event.Error = apperrors.Message(err)
	}
	h.track(event)
}
