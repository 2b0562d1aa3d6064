package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI speed limits.
const (
	openAIMinSpeed = 0.25
	openAIMaxSpeed = 4.0
)

// OpenAI synthesizes locally through the OpenAI speech API and writes the
// audio to the cache directory. It is used when the backend has no TTS.
type OpenAI struct {
	client *openai.Client
	config *Config
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI TTS provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Model = string(openai.TTSModel1)
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("tts: create cache dir: %w", err)
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(oc),
		config: cfg,
		logger: cfg.Logger.With("component", "tts.openai"),
	}, nil
}

// Synthesize implements Provider. The result is a file:// URL of a WAV file.
func (o *OpenAI) Synthesize(ctx context.Context, text string, voice Voice) (*Result, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.config.Model),
		Input:          text,
		Voice:          openAIVoice(o.config.Voices, voice.Type),
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          voice.Speed(openAIMinSpeed, openAIMaxSpeed),
	})
	if err != nil {
		return nil, WrapError("openai", err)
	}
	defer resp.Close()

	path := filepath.Join(o.config.CacheDir, uuid.NewString()+".wav")
	if err := writeFile(path, resp); err != nil {
		return nil, WrapError("openai", err)
	}

	latency := time.Since(start).Milliseconds()
	o.logger.Debug("synthesized",
		"chars", len(text),
		"voice", voice.Type,
		"latency_ms", latency,
		"path", path,
	)

	return &Result{
		AudioURL:  (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(),
		Provider:  "openai",
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Health implements Provider by listing models, which checks the key.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return WrapError("openai", err)
	}
	return nil
}

// Close implements Provider.
func (o *OpenAI) Close() error {
	return nil
}

var _ Provider = (*OpenAI)(nil)
