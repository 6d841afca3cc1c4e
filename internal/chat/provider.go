package chat

import (
	"context"
	"time"
)

// Responder produces a reply to a user message. One implementation is
// selected at startup depending on whether an OpenAI API key is configured.
type Responder interface {
	Respond(ctx context.Context, message, contextText string) (string, error)
	Name() string
}

// ObserverFunc receives the outcome of one provider call.
type ObserverFunc func(provider, operation string, status int, duration time.Duration)
