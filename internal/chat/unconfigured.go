package chat

import "context"

// UnconfiguredReply is returned for every message when no OpenAI API key is
// set. Clients depend on this exact wording.
const UnconfiguredReply = "OpenAI is not configured. Please set OPENAI_API_KEY to enable chat replies."

// Unconfigured answers every message with a fixed notice instead of calling a
// remote provider.
type Unconfigured struct{}

func (Unconfigured) Name() string { return "unconfigured" }

func (Unconfigured) Respond(context.Context, string, string) (string, error) {
	return UnconfiguredReply, nil
}
