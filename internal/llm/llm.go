// Package llm turns resume text and edit instructions into finished HTML by
// calling a chat-completion provider. It owns the prompts, the model
// fallback chain, and the normalization of provider failures into the
// studio's error kinds.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
)

// Request is a single chat completion against one model.
type Request struct {
	APIKey string
	Model  string
	System string
	Prompt string
}

// Completer sends one Request to a provider and returns the reply text.
// Implementations classify failures by wrapping apperrors.ErrInvalidAPIKey,
// apperrors.ErrRateLimited, ErrModelUnavailable, or apperrors.ErrUpstream.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// ErrModelUnavailable means the model does not exist or the key cannot use
// it; retrying the same model is pointless but the next one may work.
var ErrModelUnavailable = errors.New("model unavailable")

// classifyStatus maps an HTTP status from a provider to an error kind.
func classifyStatus(status int, err error) error {
	switch {
	case status == 401 || status == 403:
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidAPIKey, err)
	case status == 429:
		return fmt.Errorf("%w: %v", apperrors.ErrRateLimited, err)
	case status == 404:
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	default:
		return classifyMessage(err)
	}
}

// classifyMessage falls back to the error text when no status is available.
func classifyMessage(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"), strings.Contains(msg, "api_key"),
		strings.Contains(msg, "unauthorized"), strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidAPIKey, err)
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"),
		strings.Contains(msg, "resource_exhausted"), strings.Contains(msg, "too many requests"):
		return fmt.Errorf("%w: %v", apperrors.ErrRateLimited, err)
	case strings.Contains(msg, "model") && (strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")):
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}
}
