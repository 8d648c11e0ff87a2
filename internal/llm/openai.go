package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	apperrors "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/errors"
)

// OpenAI talks to the OpenAI chat completions API or any compatible
// endpoint. A client is built per request because the API key belongs to
// the caller.
type OpenAI struct {
	baseURL string
}

// NewOpenAI returns an OpenAI completer. An empty baseURL uses the SDK
// default.
func NewOpenAI(baseURL string) *OpenAI {
	return &OpenAI{baseURL: baseURL}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(req.APIKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		opts = append(opts, option.WithBaseURL(o.baseURL))
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		}),
		Model: openai.F(openai.ChatModel(req.Model)),
	}
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %v", apperrors.ErrTimeout, ctxErr)
		}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", classifyStatus(apiErr.StatusCode, err)
		}
		return "", classifyMessage(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices from %s", apperrors.ErrUpstream, req.Model)
	}
	return resp.Choices[0].Message.Content, nil
}
