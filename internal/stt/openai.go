package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAITranscriber sends audio to the OpenAI transcription endpoint with the
// configured model.
type OpenAITranscriber struct {
	client   *openai.Client
	model    string
	observer ObserverFunc
}

func NewOpenAI(client *openai.Client, model string, observer ObserverFunc) *OpenAITranscriber {
	return &OpenAITranscriber{
		client:   client,
		model:    strings.TrimSpace(model),
		observer: observer,
	}
}

func (t *OpenAITranscriber) Name() string { return "openai" }

func (t *OpenAITranscriber) Transcribe(ctx context.Context, in Audio) (string, error) {
	started := time.Now()
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: uploadFilename(in.ContentType),
		Reader:   in.Reader,
	})
	t.observe("audio_transcriptions", statusForUpstreamError(err), time.Since(started))
	if err != nil {
		return "", fmt.Errorf("OpenAI transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (t *OpenAITranscriber) observe(operation string, status int, duration time.Duration) {
	if t.observer != nil {
		t.observer(t.Name(), operation, status, duration)
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
