package config

import (
	"errors"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr         string
	OpenAIAPIKey       string
	ChatModel          string
	TranscriptionModel string
	LocalSTTBaseURL    string
	MaxAudioFileMB     int
	AllowedMIMETypes   []string
	RequestTimeout     time.Duration
	DebugTranscripts   bool
	Debug              bool
}

type envConfig struct {
	ListenAddr            string   `env:"LISTEN_ADDR" envDefault:":8080"`
	OpenAIAPIKey          string   `env:"OPENAI_API_KEY"`
	ChatModel             string   `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	TranscriptionModel    string   `env:"OPENAI_TRANSCRIPTION_MODEL" envDefault:"whisper-1"`
	LocalSTTBaseURL       string   `env:"STT_LOCAL_BASE_URL" envDefault:"http://localhost:8178"`
	MaxAudioFileMB        int      `env:"MAX_AUDIO_FILE_MB" envDefault:"10"`
	AllowedMIMETypes      []string `env:"ALLOWED_AUDIO_MIME_TYPES" envDefault:"audio/wav,audio/x-wav,audio/mpeg,audio/mp3"`
	RequestTimeoutSeconds int      `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"60"`
	DebugTranscripts      bool     `env:"DEBUG_TRANSCRIPTS" envDefault:"false"`
	Debug                 bool     `env:"DEBUG" envDefault:"true"`
}

func Load() (Config, error) {
	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:         strings.TrimSpace(raw.ListenAddr),
		OpenAIAPIKey:       strings.TrimSpace(raw.OpenAIAPIKey),
		ChatModel:          strings.TrimSpace(raw.ChatModel),
		TranscriptionModel: strings.TrimSpace(raw.TranscriptionModel),
		LocalSTTBaseURL:    strings.TrimRight(strings.TrimSpace(raw.LocalSTTBaseURL), "/"),
		MaxAudioFileMB:     raw.MaxAudioFileMB,
		AllowedMIMETypes:   normalizeMIMETypes(raw.AllowedMIMETypes),
		RequestTimeout:     time.Duration(raw.RequestTimeoutSeconds) * time.Second,
		DebugTranscripts:   raw.DebugTranscripts,
		Debug:              raw.Debug,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	if c.ChatModel == "" {
		return errors.New("OPENAI_MODEL must not be empty")
	}
	if c.TranscriptionModel == "" {
		return errors.New("OPENAI_TRANSCRIPTION_MODEL must not be empty")
	}
	if c.LocalSTTBaseURL == "" {
		return errors.New("STT_LOCAL_BASE_URL must not be empty")
	}
	if c.MaxAudioFileMB <= 0 {
		return errors.New("MAX_AUDIO_FILE_MB must be > 0")
	}
	if len(c.AllowedMIMETypes) == 0 {
		return errors.New("ALLOWED_AUDIO_MIME_TYPES must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be > 0")
	}
	return nil
}

func (c Config) MaxAudioFileBytes() int64 {
	return int64(c.MaxAudioFileMB) << 20
}

func normalizeMIMETypes(raw []string) []string {
	types := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		types = append(types, t)
	}
	return types
}
