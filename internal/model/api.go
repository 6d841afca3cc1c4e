package model

type HealthResponse struct {
	Message string `json:"message"`
}

// ChatRequest is the JSON body of the chat endpoint. Message is a pointer so
// a missing key can be told apart from an empty string.
type ChatRequest struct {
	Message *string `json:"message"`
	Context string  `json:"context"`
}

type TranscribeResponse struct {
	OK         bool   `json:"ok"`
	Transcript string `json:"transcript"`
	Debug      bool   `json:"debug,omitempty"`
}

type ChatResponse struct {
	OK    bool   `json:"ok"`
	Reply string `json:"reply"`
}

type VoiceChatResponse struct {
	OK         bool   `json:"ok"`
	Transcript string `json:"transcript"`
	Reply      string `json:"reply"`
}

type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type FieldErrorResponse struct {
	OK    bool                `json:"ok"`
	Error map[string][]string `json:"error"`
}
