package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIResponder sends chat completions to OpenAI. A non-empty context
// string travels as the system message ahead of the user message.
type OpenAIResponder struct {
	client   *openai.Client
	model    string
	observer ObserverFunc
}

func NewOpenAI(client *openai.Client, model string, observer ObserverFunc) *OpenAIResponder {
	return &OpenAIResponder{
		client:   client,
		model:    strings.TrimSpace(model),
		observer: observer,
	}
}

func (r *OpenAIResponder) Name() string { return "openai" }

func (r *OpenAIResponder) Respond(ctx context.Context, message, contextText string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if contextText != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: contextText,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	started := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0.7,
		Messages:    messages,
	})
	r.observe("chat_completions", statusForUpstreamError(err), time.Since(started))
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (r *OpenAIResponder) observe(operation string, status int, duration time.Duration) {
	if r.observer != nil {
		r.observer(r.Name(), operation, status, duration)
	}
}

func statusForUpstreamError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	return 0
}
