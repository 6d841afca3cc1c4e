package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// EngineError reports a failed request to the local recognizer daemon.
type EngineError struct {
	StatusCode int
	Body       string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("speech engine request failed with status %d", e.StatusCode)
}

// LocalEngine transcribes audio through a whisper.cpp style recognizer daemon
// on localhost speaking the OpenAI transcription wire format. Start one with:
// ./server -m models/ggml-base.en.bin --port 8178
// The daemon only decodes WAV input, so other formats are rejected here before
// any request is made.
type LocalEngine struct {
	baseURL    string
	httpClient *http.Client
	observer   ObserverFunc
}

func NewLocalEngine(baseURL string, httpClient *http.Client, observer ObserverFunc) *LocalEngine {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8178"
	}
	return &LocalEngine{baseURL: baseURL, httpClient: httpClient, observer: observer}
}

func (e *LocalEngine) Name() string { return "local-whisper" }

func (e *LocalEngine) Transcribe(ctx context.Context, in Audio) (string, error) {
	data, err := io.ReadAll(in.Reader)
	if err != nil {
		return "", fmt.Errorf("Could not read audio file: %v", err)
	}
	if !isWAV(data) {
		return "", errors.New("Could not read audio file: expected WAV (RIFF) data")
	}

	started := time.Now()
	statusCode := 0
	defer func() { e.observe("audio_transcriptions", statusCode, time.Since(started)) }()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", uploadFilename(in.ContentType))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	url := e.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body.Bytes()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Speech recognition failed: %v", err)
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("Speech recognition failed: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Speech recognition failed: %w",
			&EngineError{StatusCode: resp.StatusCode, Body: truncateBody(string(respBody))})
	}

	return parseTranscript(respBody)
}

func (e *LocalEngine) observe(operation string, status int, duration time.Duration) {
	if e.observer != nil {
		e.observer(e.Name(), operation, status, duration)
	}
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

func parseTranscript(data []byte) (string, error) {
	var parsed struct {
		Text string `json:"text"`
	}

	text := ""
	if err := json.Unmarshal(data, &parsed); err == nil {
		text = parsed.Text
	} else {
		text = joinLines(string(data))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("Speech recognition produced an empty transcript.")
	}
	return text, nil
}

func joinLines(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	return strings.Join(parts, " ")
}

func truncateBody(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4096 {
		return s
	}
	return s[:4096] + "..."
}
