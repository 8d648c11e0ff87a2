// Package validator checks studio API requests before any extraction, model
// or rendering work starts, and reports per-field failures.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/internal/studio"
)

const (
	maxSelectorLength    = 1024
	maxInstructionLength = 8192
	maxMatchTextLength   = 1 << 20
	maxTopN              = 200
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateEditRequest checks the selector, the instruction and the file
// tree of an element edit. The API key is resolved separately since it may
// arrive in a header.
func ValidateEditRequest(req *studio.EditRequest) error {
	errs := make(map[string]string)

	selector := strings.TrimSpace(req.Selector)
	if selector == "" {
		errs["selector"] = "selector is required"
	} else if len(selector) > maxSelectorLength {
		errs["selector"] = fmt.Sprintf("selector must be at most %d characters", maxSelectorLength)
	}
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		errs["instruction"] = "instruction is required"
	} else if len(instruction) > maxInstructionLength {
		errs["instruction"] = fmt.Sprintf("instruction must be at most %d characters", maxInstructionLength)
	}
	if err := req.Files.Validate(); err != nil {
		errs["files"] = err.Error()
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateMatchRequest checks text sizes and an explicit top_n. Empty texts
// are allowed and score zero.
func ValidateMatchRequest(req *studio.MatchRequest) error {
	errs := make(map[string]string)

	if len(req.ResumeText) > maxMatchTextLength {
		errs["resume_text"] = fmt.Sprintf("resume_text must be at most %d bytes", maxMatchTextLength)
	}
	if len(req.JobDescription) > maxMatchTextLength {
		errs["job_description"] = fmt.Sprintf("job_description must be at most %d bytes", maxMatchTextLength)
	}
	if req.TopN != nil {
		if err := ValidateTopN(*req.TopN); err != nil {
			errs["top_n"] = err.Error()
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateTopN bounds a caller-supplied keyword-list size.
func ValidateTopN(n int) error {
	if n <= 0 || n > maxTopN {
		return fmt.Errorf("top_n must be between 1 and %d", maxTopN)
	}
	return nil
}
