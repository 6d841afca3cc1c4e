package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
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

func completionBody(content string) string {
	quoted, _ := json.Marshal(content)
	return `{"id":"cmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":` + string(quoted) + `}}]}`
}

func TestRespondSendsContextAsSystemMessage(t *testing.T) {
	var captured openai.ChatCompletionRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("Hi there!"))
	}))
	defer ts.Close()

	var observed []observation
	responder := NewOpenAI(newTestClient(ts), "gpt-4o-mini", recordObserver(&observed))

	reply, err := responder.Respond(context.Background(), "hello", "You are a helpful assistant.")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != "Hi there!" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	if captured.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model: %q", captured.Model)
	}
	if captured.Temperature != 0.7 {
		t.Fatalf("unexpected temperature: %v", captured.Temperature)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("unexpected message count: %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != openai.ChatMessageRoleSystem || captured.Messages[0].Content != "You are a helpful assistant." {
		t.Fatalf("unexpected system message: %+v", captured.Messages[0])
	}
	if captured.Messages[1].Role != openai.ChatMessageRoleUser || captured.Messages[1].Content != "hello" {
		t.Fatalf("unexpected user message: %+v", captured.Messages[1])
	}
	if len(observed) != 1 || observed[0] != (observation{provider: "openai", operation: "chat_completions", status: http.StatusOK}) {
		t.Fatalf("unexpected observations: %+v", observed)
	}
}

func TestRespondOmitsSystemMessageWithoutContext(t *testing.T) {
	var captured openai.ChatCompletionRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("ok"))
	}))
	defer ts.Close()

	responder := NewOpenAI(newTestClient(ts), "gpt-4o-mini", nil)
	if _, err := responder.Respond(context.Background(), "hello", ""); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if len(captured.Messages) != 1 {
		t.Fatalf("unexpected message count: %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != openai.ChatMessageRoleUser {
		t.Fatalf("unexpected role: %q", captured.Messages[0].Role)
	}
}

func TestRespondReturnsEmptyReplyWithoutChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"cmpl-1","object":"chat.completion","choices":[]}`)
	}))
	defer ts.Close()

	responder := NewOpenAI(newTestClient(ts), "gpt-4o-mini", nil)
	reply, err := responder.Respond(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != "" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestRespondSurfacesAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
	}))
	defer ts.Close()

	var observed []observation
	responder := NewOpenAI(newTestClient(ts), "gpt-4o-mini", recordObserver(&observed))

	_, err := responder.Respond(context.Background(), "hello", "")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *openai.APIError, got %T", err)
	}
	if apiErr.HTTPStatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status code: %d", apiErr.HTTPStatusCode)
	}
	if len(observed) != 1 || observed[0].status != http.StatusTooManyRequests {
		t.Fatalf("unexpected observations: %+v", observed)
	}
}

func TestUnconfiguredReturnsFixedReply(t *testing.T) {
	responder := Unconfigured{}
	if responder.Name() != "unconfigured" {
		t.Fatalf("unexpected name: %q", responder.Name())
	}
	reply, err := responder.Respond(context.Background(), "hi", "anything")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != UnconfiguredReply {
		t.Fatalf("unexpected reply: %q", reply)
	}
}
