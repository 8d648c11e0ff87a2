package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/tracing"
)

const pdfFailed = "PDF generation failed"

// Engine describes how to invoke one PDF command-line tool.
type Engine struct {
	Name string
	// Args builds the command line. css is empty for engines that do not
	// take a page stylesheet.
	Args func(input, output, css, workDir string) []string
	// Output reports where the engine leaves its PDF when it does not
	// accept an output path.
	Output func(input, workDir string) string
}

// Engines lists the supported tools by binary name.
var Engines = map[string]Engine{
	"weasyprint": {
		Name: "weasyprint",
		Args: func(input, output, css, _ string) []string {
			args := []string{}
			if css != "" {
				args = append(args, "-s", css)
			}
			return append(args, input, output)
		},
	},
	"wkhtmltopdf": {
		Name: "wkhtmltopdf",
		// Project HTML is untrusted, so file:// reads stop at the scratch
		// directory.
		Args: func(input, output, _, workDir string) []string {
			return []string{
				"--quiet",
				"--disable-local-file-access", "--allow", workDir,
				"--page-size", "Letter",
				"-T", "0", "-B", "0", "-L", "0", "-R", "0",
				input, output,
			}
		},
	},
	"tectonic": {
		Name: "tectonic",
		Args: func(input, _, _, workDir string) []string {
			return []string{"--outdir", workDir, input}
		},
		Output: func(input, workDir string) string {
			base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
			return filepath.Join(workDir, base+".pdf")
		},
	},
}

// Status reports which engines can run on this host.
type Status struct {
	Available bool            `json:"available"`
	Engines   map[string]bool `json:"engines"`
}

// Renderer produces PDFs by shelling out to an installed engine. Concurrent
// renders are bounded because each one starts a heavyweight process.
type Renderer struct {
	cfg     config.RendererConfig
	sem     *semaphore.Weighted
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRenderer returns a Renderer. m may be nil.
func NewRenderer(cfg config.RendererConfig, m *metrics.Metrics) *Renderer {
	if cfg.HTMLEngine == "" {
		cfg.HTMLEngine = "weasyprint"
	}
	if cfg.TeXEngine == "" {
		cfg.TeXEngine = "tectonic"
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Renderer{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		metrics: m,
		logger:  slog.Default().With("component", "pdf-renderer"),
	}
}

// Status checks the configured engines against PATH. Available reflects
// the HTML engine, which is the one the editor depends on.
func (r *Renderer) Status() Status {
	engines := make(map[string]bool, 2)
	for _, name := range []string{r.cfg.HTMLEngine, r.cfg.TeXEngine} {
		_, err := exec.LookPath(name)
		engines[name] = err == nil
	}
	return Status{Available: engines[r.cfg.HTMLEngine], Engines: engines}
}

// Ready is a health probe for the HTML engine.
func (r *Renderer) Ready(context.Context) error {
	if _, err := exec.LookPath(r.cfg.HTMLEngine); err != nil {
		return fmt.Errorf("%s not installed", r.cfg.HTMLEngine)
	}
	return nil
}

// EngineFor picks the engine for a main file by its extension.
func (r *Renderer) EngineFor(mainFile string) string {
	if strings.EqualFold(path.Ext(mainFile), ".tex") {
		return r.cfg.TeXEngine
	}
	return r.cfg.HTMLEngine
}

// RenderPDF writes the tree to a scratch directory and runs the engine for
// mainFile over it. The directory is always removed.
func (r *Renderer) RenderPDF(ctx context.Context, tree FileTree, mainFile string) ([]byte, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	if mainFile == "" {
		mainFile = DefaultMainFile
	}
	main, err := cleanPath(mainFile)
	if err != nil {
		return nil, missingMain(mainFile)
	}
	if _, ok := tree.Renderable().Find(main); !ok {
		return nil, missingMain(mainFile)
	}

	name := r.EngineFor(main)
	engine, ok := Engines[name]
	if !ok {
		return nil, apperrors.New(apperrors.ErrRendererUnavailable, http.StatusServiceUnavailable, pdfFailed).
			WithDetails(fmt.Sprintf("unknown engine %q", name))
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		r.record(name, "unavailable", 0)
		return nil, apperrors.New(apperrors.ErrRendererUnavailable, http.StatusServiceUnavailable, pdfFailed).
			WithDetails(fmt.Sprintf("%s is not available", name))
	}

	ctx, span := tracing.StartChildSpan(ctx, "render.pdf")
	defer span.End()
	span.SetAttr("engine", name)
	span.SetAttr("main_file", main)

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, apperrors.New(apperrors.ErrTimeout, http.StatusGatewayTimeout, pdfFailed).
			WithDetails("timed out waiting for a free renderer")
	}
	defer r.sem.Release(1)

	workDir, err := os.MkdirTemp("", "resume-render-*")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err, http.StatusInternalServerError, pdfFailed)
	}
	defer os.RemoveAll(workDir)

	if err := tree.writeTo(workDir); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err, http.StatusInternalServerError, pdfFailed)
	}

	input := filepath.Join(workDir, filepath.FromSlash(main))
	output := filepath.Join(workDir, ".out", "resume.pdf")
	if engine.Output != nil {
		output = engine.Output(input, workDir)
	} else if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err, http.StatusInternalServerError, pdfFailed)
	}
	css := ""
	if !strings.EqualFold(path.Ext(main), ".tex") && r.cfg.PageCSS != "" {
		css = filepath.Join(workDir, ".out", "page.css")
		err := os.MkdirAll(filepath.Dir(css), 0o755)
		if err == nil {
			err = os.WriteFile(css, []byte(r.cfg.PageCSS), 0o644)
		}
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, err, http.StatusInternalServerError, pdfFailed)
		}
	}
	args := engine.Args(input, output, css, workDir)

	start := time.Now()
	pdf, err := resilience.RetryValue(ctx, "render:"+name, resilience.RetryConfig{
		MaxAttempts:  r.cfg.Attempts,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     time.Second,
	}, func() ([]byte, error) {
		return resilience.Timeout(ctx, r.cfg.Timeout, "render:"+name, func(ctx context.Context) ([]byte, error) {
			return r.run(ctx, bin, args, workDir, output)
		})
	})
	elapsed := time.Since(start)
	if err != nil {
		r.record(name, "error", elapsed)
		span.SetError(err)
		r.logger.Error("pdf render failed", "engine", name, "main_file", main, "error", err)
		return nil, apperrors.New(apperrors.ErrRenderFailed, http.StatusInternalServerError, pdfFailed).
			WithDetails(renderDetails(err))
	}
	r.record(name, "success", elapsed)
	span.SetAttr("bytes", len(pdf))
	r.logger.Info("pdf rendered", "engine", name, "bytes", len(pdf), "duration_ms", elapsed.Milliseconds())
	return pdf, nil
}

func (r *Renderer) run(ctx context.Context, bin string, args []string, dir, output string) ([]byte, error) {
	os.Remove(output)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.New(msg)
	}
	pdf, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("engine produced no output: %w", err)
	}
	if len(pdf) == 0 {
		return nil, errors.New("engine produced an empty file")
	}
	return pdf, nil
}

func (r *Renderer) record(engine, status string, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.PDFRendersTotal.WithLabelValues(engine, status).Inc()
	if status != "unavailable" {
		r.metrics.PDFRenderDuration.WithLabelValues(engine).Observe(elapsed.Seconds())
	}
}

// renderDetails strips the retry wrapper so callers see the engine's own
// message.
func renderDetails(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "rendering timed out"
	}
	if inner := errors.Unwrap(err); inner != nil {
		return inner.Error()
	}
	return err.Error()
}
