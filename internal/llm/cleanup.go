package llm

import (
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
)

var errNotHTML = apperrors.New(apperrors.ErrInvalidResponse, http.StatusBadGateway,
	"Invalid response from AI").WithDetails("The AI did not return valid HTML content")

// CleanHTML strips a surrounding markdown code fence from a model reply and
// checks that what remains is markup.
func CleanHTML(reply string) (string, error) {
	out := strings.TrimSpace(reply)
	lower := strings.ToLower(out)
	switch {
	case strings.HasPrefix(lower, "```html"):
		out = out[len("```html"):]
	case strings.HasPrefix(out, "```"):
		out = out[len("```"):]
	}
	out = strings.TrimSpace(out)
	out = strings.TrimSuffix(out, "```")
	out = strings.TrimSpace(out)
	if !strings.HasPrefix(out, "<") {
		return "", errNotHTML
	}
	return out, nil
}
