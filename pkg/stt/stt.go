// Package stt transcribes recorded questions.
//
// The primary Transcriber posts the clip to the LlamaDoc /voice-input
// endpoint. When the backend lacks its transcription dependencies it
// answers 501, which surfaces as apperr.KindUnavailable so callers can
// fall back to a live recognizer. OpenAI Whisper is available as an
// alternative when an API key is configured.
package stt

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
)

// Transcriber turns a recorded clip into text.
type Transcriber interface {
	// Transcribe returns the recognized text. An empty transcript is
	// reported as apperr.ErrNoSpeech, never as "".
	Transcribe(ctx context.Context, clip audioio.Clip) (string, error)
}

// ErrNoAPIKey is returned when a provider needs a key that is missing.
var ErrNoAPIKey = errors.New("stt: API key required")

// Config holds transcriber configuration.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Option configures a transcriber.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel sets the recognition model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithLanguage sets the expected spoken language, e.g. "en".
func WithLanguage(lang string) Option {
	return func(c *Config) {
		c.Language = lang
	}
}

// WithTimeout bounds one transcription.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
		Logger:  slog.Default(),
	}
}

// Apply applies options.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
