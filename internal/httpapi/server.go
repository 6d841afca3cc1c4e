package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"voxchat/internal/audio"
	"voxchat/internal/config"
	"voxchat/internal/model"
	"voxchat/internal/stt"
	"voxchat/internal/voicechat"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

type Transcriber interface {
	Transcribe(ctx context.Context, in stt.Audio) (string, error)
}

type Responder interface {
	Respond(ctx context.Context, message, contextText string) (string, error)
}

type VoiceChatService interface {
	Process(ctx context.Context, in stt.Audio) (voicechat.Result, error)
}

type MetricsObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
}

type Dependencies struct {
	Transcriber    Transcriber
	Responder      Responder
	VoiceChat      VoiceChatService
	Metrics        MetricsObserver
	MetricsHandler http.Handler
}

type server struct {
	cfg          config.Config
	logger       *slog.Logger
	validator    *audio.Validator
	transcriber  Transcriber
	responder    Responder
	voiceChat    VoiceChatService
	metrics      MetricsObserver
	metricsRoute http.Handler
}

type ctxKey string

const (
	requestIDHeader  = "X-Request-Id"
	requestIDContext = ctxKey("request_id")

	maxJSONBodyBytes = 1 << 20
	maxMessageChars  = 4000
	maxContextChars  = 8000

	// Room for the multipart boundary and part headers on top of the audio itself.
	multipartOverheadBytes = 1 << 20
)

func NewServer(cfg config.Config, logger *slog.Logger, deps Dependencies) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Transcriber == nil || deps.Responder == nil || deps.VoiceChat == nil {
		panic("httpapi: all dependencies are required")
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		validator:    audio.NewValidator(cfg.MaxAudioFileMB, cfg.AllowedMIMETypes),
		transcriber:  deps.Transcriber,
		responder:    deps.Responder,
		voiceChat:    deps.VoiceChat,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsHandler,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.corsMiddleware)

	r.Get("/api/health/", s.handleHealth)
	if s.metricsRoute != nil {
		r.Handle("/metrics", s.metricsRoute)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/transcribe/", s.handleTranscribe)
		r.Post("/chat/", s.handleChat)
		r.Post("/voice-chat/", s.handleVoiceChat)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{Message: "Server is up!"})
}

func (s *server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	file, header, form, err := s.readMultipartAudio(w, r)
	if err != nil {
		s.handleMultipartReadError(w, r, err)
		return
	}
	defer cleanupMultipartForm(form)
	defer func() { _ = file.Close() }()

	contentType := normalizeContentType(header.Header.Get("Content-Type"))
	if problems := s.validator.Validate(audio.Upload{ContentType: contentType, Size: header.Size}); len(problems) > 0 {
		s.writeFieldErrors(w, r, map[string][]string{"audio": problems})
		return
	}

	transcript, err := s.transcriber.Transcribe(r.Context(), stt.Audio{Reader: file, ContentType: contentType})
	if err != nil {
		s.writeProviderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.TranscribeResponse{
		OK:         true,
		Transcript: transcript,
		Debug:      s.cfg.DebugTranscripts,
	})
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() { _ = r.Body.Close() }()

	var req model.ChatRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return
	}
	if err := ensureBodyFullyConsumed(decoder); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return
	}

	message, contextText, problems := validateChatRequest(req)
	if len(problems) > 0 {
		s.writeFieldErrors(w, r, problems)
		return
	}

	reply, err := s.responder.Respond(r.Context(), message, contextText)
	if err != nil {
		s.writeProviderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ChatResponse{OK: true, Reply: reply})
}

func (s *server) handleVoiceChat(w http.ResponseWriter, r *http.Request) {
	file, header, form, err := s.readMultipartAudio(w, r)
	if err != nil {
		s.handleMultipartReadError(w, r, err)
		return
	}
	defer cleanupMultipartForm(form)
	defer func() { _ = file.Close() }()

	contentType := normalizeContentType(header.Header.Get("Content-Type"))
	if problems := s.validator.Validate(audio.Upload{ContentType: contentType, Size: header.Size}); len(problems) > 0 {
		s.writeFieldErrors(w, r, map[string][]string{"audio": problems})
		return
	}

	result, err := s.voiceChat.Process(r.Context(), stt.Audio{Reader: file, ContentType: contentType})
	if err != nil {
		s.writeProviderError(w, r, err)
		return
	}

	s.logger.Debug("voice chat processed",
		"request_id", requestIDFromContext(r.Context()),
		"transcription_ms", result.Timings.Transcription.Milliseconds(),
		"chat_ms", result.Timings.Chat.Milliseconds(),
		"total_ms", result.Timings.Total.Milliseconds(),
	)

	writeJSON(w, http.StatusOK, model.VoiceChatResponse{
		OK:         true,
		Transcript: result.Transcript,
		Reply:      result.Reply,
	})
}

func validateChatRequest(req model.ChatRequest) (message, contextText string, problems map[string][]string) {
	problems = map[string][]string{}

	if req.Message == nil {
		problems["message"] = append(problems["message"], "This field is required.")
	} else {
		message = strings.TrimSpace(*req.Message)
		switch {
		case message == "":
			problems["message"] = append(problems["message"], "This field may not be blank.")
		case utf8.RuneCountInString(message) > maxMessageChars:
			problems["message"] = append(problems["message"], fmt.Sprintf("Ensure this field has no more than %d characters.", maxMessageChars))
		}
	}

	contextText = strings.TrimSpace(req.Context)
	if utf8.RuneCountInString(contextText) > maxContextChars {
		problems["context"] = append(problems["context"], fmt.Sprintf("Ensure this field has no more than %d characters.", maxContextChars))
	}

	if len(problems) == 0 {
		return message, contextText, nil
	}
	return message, contextText, problems
}

func (s *server) readMultipartAudio(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, *multipart.Form, error) {
	maxBody := s.cfg.MaxAudioFileBytes() + multipartOverheadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(minInt64(maxBody, 8<<20)); err != nil {
		return nil, nil, nil, err
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, nil, r.MultipartForm, err
	}
	return file, header, r.MultipartForm, nil
}

func (s *server) handleMultipartReadError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		s.writeFieldErrors(w, r, map[string][]string{
			"audio": {fmt.Sprintf("File too large. Max %d MB allowed.", s.cfg.MaxAudioFileMB)},
		})
		return
	}
	if errors.Is(err, http.ErrMissingFile) {
		s.writeFieldErrors(w, r, map[string][]string{"audio": {"No file was submitted."}})
		return
	}
	s.writeFieldErrors(w, r, map[string][]string{
		"audio": {"The submitted data was not a file. Check the encoding type on the form."},
	})
}

func (s *server) handleJSONDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeFieldErrors(w, r, map[string][]string{"non_field_errors": {"Request body too large."}})
		return
	}
	s.writeFieldErrors(w, r, map[string][]string{"non_field_errors": {"Invalid JSON body."}})
}

func (s *server) writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
	args := []any{
		"request_id", requestIDFromContext(r.Context()),
		"error", err.Error(),
	}
	var apiErr *openai.APIError
	var engineErr *stt.EngineError
	switch {
	case errors.As(err, &apiErr):
		args = append(args, "provider_status", apiErr.HTTPStatusCode)
	case errors.As(err, &engineErr):
		args = append(args, "provider_status", engineErr.StatusCode, "provider_body", engineErr.Body)
	case errors.Is(err, context.DeadlineExceeded):
		args = append(args, "timeout", true)
	}
	s.logger.Error("request failed", args...)

	s.writeError(w, r, http.StatusInternalServerError, err.Error())
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if rid := requestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, status, model.ErrorResponse{OK: false, Error: message})
}

func (s *server) writeFieldErrors(w http.ResponseWriter, r *http.Request, problems map[string][]string) {
	if rid := requestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, http.StatusBadRequest, model.FieldErrorResponse{OK: false, Error: problems})
}

func (s *server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContext, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, status, duration)
		}

		s.logger.Info("http_request",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "request_id", requestIDFromContext(r.Context()), "panic", rec)
				s.writeError(w, r, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func ensureBodyFullyConsumed(decoder *json.Decoder) error {
	var extra any
	if err := decoder.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("multiple JSON values")
		}
		return err
	}
	return nil
}

func normalizeContentType(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func cleanupMultipartForm(form *multipart.Form) {
	if form != nil {
		_ = form.RemoveAll()
	}
}

func requestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContext).(string)
	return value
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
