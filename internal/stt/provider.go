package stt

import (
	"context"
	"io"
	"strings"
	"time"
)

// Audio is one upload handed to a transcription provider. ContentType is the
// client-declared MIME type and drives the filename hint sent with the audio.
type Audio struct {
	Reader      io.Reader
	ContentType string
}

// Transcriber converts spoken audio into text. One implementation is selected
// at startup depending on whether an OpenAI API key is configured.
type Transcriber interface {
	Transcribe(ctx context.Context, in Audio) (string, error)
	Name() string
}

// ObserverFunc receives the outcome of one provider call.
type ObserverFunc func(provider, operation string, status int, duration time.Duration)

func uploadFilename(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "audio/wav", "audio/x-wav":
		return "audio.wav"
	case "audio/mpeg", "audio/mp3":
		return "audio.mp3"
	default:
		return "audio.bin"
	}
}
