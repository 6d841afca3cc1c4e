package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type observation struct {
	provider  string
	operation string
	status    int
}

func recordObserver(observed *[]observation) ObserverFunc {
	return func(provider, operation string, status int, _ time.Duration) {
		*observed = append(*observed, observation{provider: provider, operation: operation, status: status})
	}
}

func newTestClient(ts *httptest.Server) *openai.Client {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = ts.URL + "/v1"
	cfg.HTTPClient = ts.Client()
	return openai.NewClientWithConfig(cfg)
}

func TestOpenAITranscribeSendsModelAndFilename(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		if r.FormValue("model") != "whisper-1" {
			t.Fatalf("unexpected model: %q", r.FormValue("model"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer func() { _ = file.Close() }()
		if header.Filename != "audio.wav" {
			t.Fatalf("unexpected filename: %q", header.Filename)
		}
		body, _ := io.ReadAll(file)
		if string(body) != "audio-bytes" {
			t.Fatalf("unexpected file body: %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":" hello world "}`)
	}))
	defer ts.Close()

	var observed []observation
	tr := NewOpenAI(newTestClient(ts), "whisper-1", recordObserver(&observed))

	text, err := tr.Transcribe(context.Background(), Audio{Reader: strings.NewReader("audio-bytes"), ContentType: "audio/wav"})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "hello world" {
		t.Fatalf("unexpected text: %q", text)
	}
	if len(observed) != 1 || observed[0] != (observation{provider: "openai", operation: "audio_transcriptions", status: http.StatusOK}) {
		t.Fatalf("unexpected observations: %+v", observed)
	}
}

func TestOpenAITranscribeNamesFileFromContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		_, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		if header.Filename != "audio.mp3" {
			t.Fatalf("unexpected filename: %q", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"ok"}`)
	}))
	defer ts.Close()

	tr := NewOpenAI(newTestClient(ts), "whisper-1", nil)
	if _, err := tr.Transcribe(context.Background(), Audio{Reader: strings.NewReader("x"), ContentType: "audio/mpeg"}); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
}

func TestOpenAITranscribeWrapsAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	defer ts.Close()

	var observed []observation
	tr := NewOpenAI(newTestClient(ts), "whisper-1", recordObserver(&observed))

	_, err := tr.Transcribe(context.Background(), Audio{Reader: strings.NewReader("x"), ContentType: "audio/wav"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "OpenAI transcription failed: ") {
		t.Fatalf("unexpected error: %v", err)
	}
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *openai.APIError, got %T", err)
	}
	if apiErr.HTTPStatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: %d", apiErr.HTTPStatusCode)
	}
	if len(observed) != 1 || observed[0].status != http.StatusUnauthorized {
		t.Fatalf("unexpected observations: %+v", observed)
	}
}
