// Package render turns an in-memory resume project into either a browser
// preview or a PDF produced by an external typesetting engine.
package render

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
)

const (
	// DefaultMainFile is rendered when the caller does not name one.
	DefaultMainFile = "index.html"
	// FileTypeJobDescription marks files kept alongside the resume for
	// matching only; they are never rendered or written to disk.
	FileTypeJobDescription = "job-description"
)

// File is one file of a resume project. Fields the editor attaches beyond
// path, content and fileType are carried through untouched in Extra.
type File struct {
	Path     string                     `json:"path"`
	Content  string                     `json:"content"`
	FileType string                     `json:"fileType,omitempty"`
	Extra    map[string]json.RawMessage `json:"-"`
}

func (f *File) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = File{}
	for key, dst := range map[string]*string{"path": &f.Path, "content": &f.Content, "fileType": &f.FileType} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		delete(raw, key)
		if string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("file %s: %w", key, err)
		}
	}
	if len(raw) > 0 {
		f.Extra = raw
	}
	return nil
}

func (f File) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Extra)+3)
	for k, v := range f.Extra {
		out[k] = v
	}
	out["path"] = f.Path
	out["content"] = f.Content
	if f.FileType != "" {
		out["fileType"] = f.FileType
	}
	return json.Marshal(out)
}

// FileTree is an ordered resume project.
type FileTree []File

// Validate rejects empty trees and any path that is empty, absolute, or
// escapes the project root.
func (t FileTree) Validate() error {
	if len(t) == 0 {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "No files provided")
	}
	for i, f := range t {
		if _, err := cleanPath(f.Path); err != nil {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"files[%d]: %v", i, err)
		}
	}
	return nil
}

func cleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("path is required")
	}
	slashed := strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return "", fmt.Errorf("path %q must be relative", p)
	}
	clean := path.Clean(slashed)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q escapes the project", p)
	}
	if clean == "." {
		return "", fmt.Errorf("path %q names no file", p)
	}
	return clean, nil
}

// Find returns the file whose path matches p after cleaning.
func (t FileTree) Find(p string) (File, bool) {
	want, err := cleanPath(p)
	if err != nil {
		return File{}, false
	}
	for _, f := range t {
		if got, err := cleanPath(f.Path); err == nil && got == want {
			return f, true
		}
	}
	return File{}, false
}

// Stylesheets maps each .css path to its content.
func (t FileTree) Stylesheets() map[string]string {
	css := make(map[string]string)
	for _, f := range t {
		if strings.EqualFold(path.Ext(f.Path), ".css") {
			css[f.Path] = f.Content
		}
	}
	return css
}

// WithContent returns a copy of the tree with the content of the file at p
// replaced. Order and every other file are kept. The second result is false
// when no file matched.
func (t FileTree) WithContent(p, content string) (FileTree, bool) {
	want, err := cleanPath(p)
	if err != nil {
		return t, false
	}
	out := make(FileTree, len(t))
	copy(out, t)
	for i, f := range out {
		if got, err := cleanPath(f.Path); err == nil && got == want {
			out[i].Content = content
			return out, true
		}
	}
	return t, false
}

// Renderable drops files that only feed matching.
func (t FileTree) Renderable() FileTree {
	out := make(FileTree, 0, len(t))
	for _, f := range t {
		if f.FileType == FileTypeJobDescription {
			continue
		}
		out = append(out, f)
	}
	return out
}

// writeTo materializes the renderable files under dir.
func (t FileTree) writeTo(dir string) error {
	for _, f := range t.Renderable() {
		clean, err := cleanPath(f.Path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dir, filepath.FromSlash(clean))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", clean, err)
		}
		if err := os.WriteFile(dst, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", clean, err)
		}
	}
	return nil
}

// Preview is what a browser needs to show the project.
type Preview struct {
	HTML     string            `json:"html"`
	CSSFiles map[string]string `json:"css_files"`
}

// BuildPreview returns the main file and every stylesheet.
func BuildPreview(tree FileTree, mainFile string) (*Preview, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	if mainFile == "" {
		mainFile = DefaultMainFile
	}
	renderable := tree.Renderable()
	main, ok := renderable.Find(mainFile)
	if !ok {
		return nil, missingMain(mainFile)
	}
	return &Preview{HTML: main.Content, CSSFiles: renderable.Stylesheets()}, nil
}

func missingMain(name string) error {
	return apperrors.Newf(apperrors.ErrNotFound, http.StatusBadRequest, "Main file %s not found", name)
}
