package voicechat

import (
	"context"
	"errors"
	"strings"
	"time"

	"voxchat/internal/stt"
)

// ErrEmptyTranscript is returned when transcription succeeds but yields no
// usable text, so there is nothing to hand to the chat provider.
var ErrEmptyTranscript = errors.New("Transcript is empty.")

type Transcriber interface {
	Transcribe(ctx context.Context, in stt.Audio) (string, error)
}

type Responder interface {
	Respond(ctx context.Context, message, contextText string) (string, error)
}

// Service runs the transcribe-then-chat flow behind the voice-chat endpoint.
type Service struct {
	transcriber Transcriber
	responder   Responder
}

type Timings struct {
	Transcription time.Duration
	Chat          time.Duration
	Total         time.Duration
}

type Result struct {
	Transcript string
	Reply      string
	Timings    Timings
}

func New(transcriber Transcriber, responder Responder) *Service {
	return &Service{transcriber: transcriber, responder: responder}
}

// Process transcribes the upload and feeds the transcript to the chat
// provider as the user message. A transcription failure is terminal: the chat
// provider is not called.
func (s *Service) Process(ctx context.Context, in stt.Audio) (Result, error) {
	started := time.Now()

	transcript, err := s.transcriber.Transcribe(ctx, in)
	transcriptionDuration := time.Since(started)
	if err != nil {
		return Result{}, err
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return Result{}, ErrEmptyTranscript
	}

	chatStarted := time.Now()
	reply, err := s.responder.Respond(ctx, transcript, "")
	chatDuration := time.Since(chatStarted)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Transcript: transcript,
		Reply:      reply,
		Timings: Timings{
			Transcription: transcriptionDuration,
			Chat:          chatDuration,
			Total:         time.Since(started),
		},
	}, nil
}
