package assistant

import (
	"context"
	"net/http"
	"strings"

	"pairchat/backend/internal/apperr"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// Completer is the external text-completion collaborator. Implementations
// return errors classified as apperr.ErrTimeout or apperr.ErrUnavailable.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string, maxTokens int) (string, error)
}

// OpenAICompleter talks to any OpenAI-compatible chat completion endpoint
// (Groq by default).
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

func NewOpenAICompleter(apiKey, baseURL, model string) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, systemPrompt, userText string, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", classifyCompletionError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.Wrap(apperr.ErrUnavailable, "completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.Wrap(apperr.ErrUnavailable, "completion returned empty content")
	}
	return text, nil
}

func classifyCompletionError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(apperr.ErrTimeout, "completion")
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return errors.Wrapf(apperr.ErrTimeout, "completion: %s", apiErr.Message)
		case http.StatusTooManyRequests:
			return errors.Wrapf(apperr.ErrUnavailable, "completion rate limited: %s", apiErr.Message)
		}
		return errors.Wrapf(apperr.ErrUnavailable, "completion api %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusGatewayTimeout {
		return errors.Wrap(apperr.ErrTimeout, "completion")
	}
	return errors.Wrapf(apperr.ErrUnavailable, "completion: %v", err)
}
