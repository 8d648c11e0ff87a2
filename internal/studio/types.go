// Package studio defines the request and response bodies of the resume
// studio HTTP API.
package studio

import (
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/render"
)

// EditRequest is the JSON body of the element edit endpoint.
type EditRequest struct {
	APIKey      string          `json:"apiKey"`
	Model       string          `json:"model"`
	TargetPath  string          `json:"targetPath"`
	Selector    string          `json:"selector"`
	Instruction string          `json:"instruction"`
	Files       render.FileTree `json:"files"`
}

// RenderRequest is the JSON body of the preview and PDF export endpoints.
type RenderRequest struct {
	Files    render.FileTree `json:"files"`
	MainFile string          `json:"mainFile"`
}

// MatchRequest is the JSON body of the text match endpoint. A nil TopN
// uses the configured default.
type MatchRequest struct {
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`
	TopN           *int   `json:"top_n"`
}

// UpdatedFilesResponse carries the project after an LLM change.
type UpdatedFilesResponse struct {
	Success      bool            `json:"success"`
	UpdatedFiles render.FileTree `json:"updatedFiles"`
	Model        string          `json:"model,omitempty"`
}

// MatchResponse wraps a report for the multipart match endpoint.
type MatchResponse struct {
	MatchResults matcher.MatchReport `json:"match_results"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
