package document

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/metrics"
)

// buildPDF writes a single-page PDF whose content stream shows text.
func buildPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// buildDOCX writes a minimal word document with one paragraph per entry.
func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body bytes.Buffer
	for _, p := range paragraphs {
		fmt.Fprintf(&body, "<w:p><w:r><w:t>%s</w:t></w:r></w:p>", p)
	}
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() + `</w:body></w:document>`,
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		data        []byte
		want        Kind
	}{
		{"pdf extension", "CV.PDF", "", nil, KindPDF},
		{"html extension", "resume.html", "application/octet-stream", nil, KindHTML},
		{"htm extension", "resume.htm", "", nil, KindHTML},
		{"docx extension", "cv.docx", "", nil, KindDOCX},
		{"legacy doc treated as text", "cv.doc", "", nil, KindPlainText},
		{"markdown", "jd.md", "", nil, KindPlainText},
		{"declared type", "blob", "text/html; charset=utf-8", nil, KindHTML},
		{"declared docx", "upload", docxMIME, nil, KindDOCX},
		{"sniffed pdf", "upload", "application/octet-stream", buildPDF("x"), KindPDF},
		{"sniffed html", "upload", "", []byte("<!DOCTYPE html><html><body>hi</body></html>"), KindHTML},
		{"sniffed text", "upload", "", []byte("just some words"), KindPlainText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.filename, tt.contentType, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectUnsupported(t *testing.T) {
	_, err := Detect("photo.png", "image/png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
	assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
}

func TestExtractHTMLVisibleText(t *testing.T) {
	page := `<!DOCTYPE html><html><head><title>Jane Doe</title><style>body{color:red}</style></head>
<body><h1>Jane Doe</h1><script>var secret = "hidden";</script>
<ul><li>Go &amp; Kubernetes</li><li>Terraform</li></ul><p>Built <b>distributed</b> systems</p></body></html>`

	e := NewExtractor(nil)
	text, err := e.Extract(context.Background(), Upload{Filename: "resume.html", Data: []byte(page)})
	require.NoError(t, err)

	assert.Contains(t, text, "Jane Doe")
	assert.Contains(t, text, "Go & Kubernetes")
	assert.Contains(t, text, "Built distributed systems")
	assert.NotContains(t, text, "secret")
	assert.NotContains(t, text, "color:red")
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Jane Go dev", StripTags("<div>Jane</div>\n\n<p>Go   dev</p>"))
}

func TestExtractPDF(t *testing.T) {
	e := NewExtractor(nil)
	text, err := e.Extract(context.Background(), Upload{Filename: "cv.pdf", Data: buildPDF("Senior Golang Engineer")})
	require.NoError(t, err)
	assert.Contains(t, text, "Golang")
}

func TestExtractMalformedPDF(t *testing.T) {
	e := NewExtractor(nil)
	_, err := e.Extract(context.Background(), Upload{Filename: "cv.pdf", Data: []byte("%PDF-1.4 truncated")})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestExtractDOCX(t *testing.T) {
	e := NewExtractor(nil)
	data := buildDOCX(t, "Jane Doe", "Platform Engineer")
	text, err := e.Extract(context.Background(), Upload{Filename: "cv.docx", Data: data})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nPlatform Engineer", text)
}

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor(nil)
	data := append([]byte("\xef\xbb\xbfPython"), 0xff, ' ', 'D', 'j', 'a', 'n', 'g', 'o')
	text, err := e.Extract(context.Background(), Upload{Filename: "cv.txt", Data: data})
	require.NoError(t, err)
	assert.Equal(t, "Python Django", text)
}

func TestExtractEmptyIsDistinct(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := NewExtractor(m)

	for _, u := range []Upload{
		{Filename: "blank.txt", Data: []byte("   \n\t")},
		{Filename: "blank.html", Data: []byte("<html><head><title>t</title></head><body><script>x()</script></body></html>")},
	} {
		_, err := e.Extract(context.Background(), u)
		assert.ErrorIs(t, err, apperrors.ErrNoTextExtracted, u.Filename)
		assert.Equal(t, "No text could be extracted from the file", apperrors.Message(err))
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("text", "empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("html", "empty")))
}

type upperSource struct{}

func (upperSource) Kind() Kind { return KindPlainText }
func (upperSource) Text(_ context.Context, data []byte) (string, error) {
	return string(bytes.ToUpper(data)), nil
}

func TestRegisterReplacesSource(t *testing.T) {
	e := NewExtractor(nil)
	e.Register(upperSource{})
	text, err := e.Extract(context.Background(), Upload{Filename: "a.txt", Data: []byte("go")})
	require.NoError(t, err)
	assert.Equal(t, "GO", text)
}
