package tts

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/llamadoc-voice/pkg/llamadoc"
)

// SpeechBackend is the part of the LlamaDoc client used for synthesis.
type SpeechBackend interface {
	SynthesizeSpeech(ctx context.Context, req llamadoc.SpeechRequest) (string, error)
}

// Backend synthesizes through the LlamaDoc /tts endpoint. The backend
// stores the audio and returns a relative URL for it.
type Backend struct {
	client SpeechBackend
	logger *slog.Logger
}

// NewBackend creates a provider over the LlamaDoc backend.
func NewBackend(client SpeechBackend, opts ...Option) *Backend {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &Backend{
		client: client,
		logger: cfg.Logger.With("component", "tts.backend"),
	}
}

// Synthesize implements Provider.
func (b *Backend) Synthesize(ctx context.Context, text string, voice Voice) (*Result, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	start := time.Now()
	ref, err := b.client.SynthesizeSpeech(ctx, llamadoc.SpeechRequest{
		Text:      text,
		VoiceType: voice.Type,
		Rate:      voice.Rate,
		Volume:    voice.Volume,
	})
	if err != nil {
		return nil, WrapError("backend", err)
	}
	latency := time.Since(start).Milliseconds()
	b.logger.Debug("synthesized", "chars", len(text), "latency_ms", latency)
	return &Result{
		AudioURL:  ref,
		Provider:  "backend",
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health implements Provider. The backend has no health endpoint; it is
// assumed reachable until a request fails.
func (b *Backend) Health(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Provider.
func (b *Backend) Close() error {
	return nil
}

var _ Provider = (*Backend)(nil)
