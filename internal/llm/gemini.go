package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
)

// Gemini talks to the Gemini API through the genai SDK.
type Gemini struct {
	baseURL string
}

// NewGemini returns a Gemini completer. An empty baseURL uses the SDK
// default.
func NewGemini(baseURL string) *Gemini {
	return &Gemini{baseURL: baseURL}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.ClientConfig{
		APIKey:  req.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", classifyMessage(err)
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %v", apperrors.ErrTimeout, ctxErr)
		}
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", classifyStatus(apiErr.Code, err)
		}
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) {
			return "", classifyStatus(apiErrPtr.Code, err)
		}
		return "", classifyMessage(err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response from %s", apperrors.ErrUpstream, req.Model)
	}
	return text, nil
}
