// Package document extracts plain text from uploaded resumes and job
// descriptions. Each supported format is a Source; the Extractor resolves
// the format from the file name, the declared content type, or the bytes
// themselves, and reports empty results as a distinct error.
package document

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/metrics"
)

// Kind identifies a document format.
type Kind string

const (
	KindPDF       Kind = "pdf"
	KindHTML      Kind = "html"
	KindDOCX      Kind = "docx"
	KindPlainText Kind = "text"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var (
	// ErrUnsupported is returned when no Source handles the upload.
	ErrUnsupported = apperrors.New(apperrors.ErrUnsupportedFormat, http.StatusBadRequest,
		"Unsupported file format. Please upload a PDF, HTML, DOCX or text file.")
	// ErrEmpty is returned when a Source produced only whitespace.
	ErrEmpty = apperrors.New(apperrors.ErrNoTextExtracted, http.StatusBadRequest,
		"No text could be extracted from the file")
)

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Source extracts text from one document format.
type Source interface {
	Kind() Kind
	Text(ctx context.Context, data []byte) (string, error)
}

var extensionKinds = map[string]Kind{
	".pdf":  KindPDF,
	".html": KindHTML,
	".htm":  KindHTML,
	".docx": KindDOCX,
	".txt":  KindPlainText,
	".text": KindPlainText,
	".md":   KindPlainText,
	".doc":  KindPlainText,
}

// Detect resolves the Kind of an upload: file extension first, then the
// declared content type, then content sniffing.
func Detect(filename, contentType string, data []byte) (Kind, error) {
	if k, ok := extensionKinds[strings.ToLower(path.Ext(filename))]; ok {
		return k, nil
	}
	if k, ok := kindForMIME(contentType); ok {
		return k, nil
	}
	if len(data) > 0 {
		if k, ok := kindForMIME(mimetype.Detect(data).String()); ok {
			return k, nil
		}
	}
	return "", ErrUnsupported
}

func kindForMIME(contentType string) (Kind, bool) {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch {
	case mt == "application/pdf":
		return KindPDF, true
	case mt == "text/html", mt == "application/xhtml+xml":
		return KindHTML, true
	case mt == docxMIME:
		return KindDOCX, true
	case mt == "text/plain", mt == "text/markdown":
		return KindPlainText, true
	}
	return "", false
}

// Extractor dispatches uploads to the Source for their Kind.
type Extractor struct {
	sources map[Kind]Source
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewExtractor returns an Extractor with the built-in sources registered.
// m may be nil.
func NewExtractor(m *metrics.Metrics) *Extractor {
	e := &Extractor{
		sources: make(map[Kind]Source),
		metrics: m,
		logger:  slog.Default().With("component", "document-extractor"),
	}
	e.Register(PDFSource{})
	e.Register(HTMLSource{})
	e.Register(DOCXSource{})
	e.Register(PlainTextSource{})
	return e
}

// Register adds or replaces the Source for its Kind.
func (e *Extractor) Register(src Source) {
	e.sources[src.Kind()] = src
}

// Extract returns the plain text of the upload.
func (e *Extractor) Extract(ctx context.Context, u Upload) (string, error) {
	kind, err := Detect(u.Filename, u.ContentType, u.Data)
	if err != nil {
		e.observe("unknown", "unsupported")
		return "", err
	}
	src, ok := e.sources[kind]
	if !ok {
		e.observe(kind, "unsupported")
		return "", ErrUnsupported
	}

	text, err := src.Text(ctx, u.Data)
	if err != nil {
		e.observe(kind, "error")
		logger.FromContext(ctx).Warn("text extraction failed",
			"component", "document-extractor",
			"kind", kind,
			"filename", u.Filename,
			"error", err,
		)
		return "", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			fmt.Sprintf("Failed to extract text: %v", err))
	}
	if strings.TrimSpace(text) == "" {
		e.observe(kind, "empty")
		return "", ErrEmpty
	}
	e.observe(kind, "ok")
	e.logger.Debug("text extracted", "kind", kind, "chars", len(text))
	return text, nil
}

func (e *Extractor) observe(kind Kind, status string) {
	if e.metrics == nil {
		return
	}
	e.metrics.ExtractionsTotal.WithLabelValues(string(kind), status).Inc()
}
