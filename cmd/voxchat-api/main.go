package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voxchat/internal/chat"
	"voxchat/internal/config"
	"voxchat/internal/httpapi"
	"voxchat/internal/observability"
	"voxchat/internal/stt"
	"voxchat/internal/voicechat"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Debug)
	metrics := observability.NewMetrics()
	metrics.SetFallbackMode(cfg.OpenAIAPIKey == "")

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	providerHTTPClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: transport}

	var transcriber stt.Transcriber
	var responder chat.Responder
	if cfg.OpenAIAPIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
		clientConfig.HTTPClient = providerHTTPClient
		client := openai.NewClientWithConfig(clientConfig)
		transcriber = stt.NewOpenAI(client, cfg.TranscriptionModel, metrics.ObserveProvider)
		responder = chat.NewOpenAI(client, cfg.ChatModel, metrics.ObserveProvider)
	} else {
		logger.Warn("OPENAI_API_KEY not set, using local speech recognition and canned chat replies")
		transcriber = stt.NewLocalEngine(cfg.LocalSTTBaseURL, providerHTTPClient, metrics.ObserveProvider)
		responder = chat.Unconfigured{}
	}
	logger.Info("providers selected", "transcription", transcriber.Name(), "chat", responder.Name())

	voiceChat := voicechat.New(transcriber, responder)

	handler := httpapi.NewServer(cfg, logger, httpapi.Dependencies{
		Transcriber:    transcriber,
		Responder:      responder,
		VoiceChat:      voiceChat,
		Metrics:        metrics,
		MetricsHandler: metrics.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       35 * time.Second,
		WriteTimeout:      40 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
