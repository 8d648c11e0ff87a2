package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/render"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio/handler"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/health"
	pkgmw "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/middleware"
)

type stubRenderer struct{}

func (stubRenderer) RenderPDF(context.Context, render.FileTree, string) ([]byte, error) {
	return []byte("%PDF"), nil
}

func (stubRenderer) EngineFor(string) string { return "weasyprint" }

func (stubRenderer) Status() render.Status { return render.Status{Available: true} }

const renderBody = `{"files":[{"path":"index.html","content":"<p>hi</p>"}]}`

func newTestRouter(t *testing.T, limit int) http.Handler {
	t.Helper()
	h, err := handler.New(handler.Config{}, handler.Deps{Renderer: stubRenderer{}})
	require.NoError(t, err)
	limiter := ratelimit.New(time.Minute)
	t.Cleanup(limiter.Stop)
	return New(h, Options{
		Health:         health.NewChecker("studio"),
		Limiter:        limiter,
		RateLimit:      limit,
		AllowOrigins:   []string{"http://localhost:3000"},
		RequestTimeout: 5 * time.Second,
	})
}

func do(router http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLegacyAliases(t *testing.T) {
	router := newTestRouter(t, 100)
	for _, path := range []string{"/api/v1/render", "/render"} {
		rec := do(router, http.MethodPost, path, renderBody, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"html":"<p>hi</p>","css_files":{}}`, rec.Body.String())
	}
	for _, path := range []string{"/api/v1/renderer/status", "/weasyprint-status"} {
		rec := do(router, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMethodMismatch(t *testing.T) {
	rec := do(newTestRouter(t, 100), http.MethodGet, "/upload-resume", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newTestRouter(t, 100)
	rec := do(router, http.MethodGet, "/health/live", "", map[string]string{pkgmw.RequestIDHeader: "req-42"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(pkgmw.RequestIDHeader))

	rec = do(router, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(pkgmw.RequestIDHeader))
}

func TestRateLimitOnlyProtectedRoutes(t *testing.T) {
	router := newTestRouter(t, 1)
	key := map[string]string{"X-API-Key": "sk-one"}

	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/api/v1/export-pdf", renderBody, key).Code)
	rec := do(router, http.MethodPost, "/export-pdf", renderBody, key)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/render", renderBody, key).Code)
	}
	other := map[string]string{"X-API-Key": "sk-two"}
	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/export-pdf", renderBody, other).Code)
}

func TestPreflight(t *testing.T) {
	rec := do(newTestRouter(t, 1), http.MethodOptions, "/upload-resume", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestProtected(t *testing.T) {
	assert.True(t, Protected("/upload-resume"))
	assert.True(t, Protected("/api/v1/resume/edit"))
	assert.False(t, Protected("/api/v1/match"))
	assert.False(t, Protected("/health/ready"))
}
