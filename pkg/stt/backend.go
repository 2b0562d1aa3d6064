package stt

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
)

// VoiceInput is the part of the LlamaDoc client used for transcription.
type VoiceInput interface {
	TranscribeAudio(ctx context.Context, clip audioio.Clip) (string, error)
}

// Backend transcribes through the LlamaDoc backend.
type Backend struct {
	client VoiceInput
	logger *slog.Logger
}

// NewBackend creates a transcriber over the LlamaDoc backend.
func NewBackend(client VoiceInput, opts ...Option) *Backend {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &Backend{
		client: client,
		logger: cfg.Logger.With("component", "stt.backend"),
	}
}

// Transcribe implements Transcriber. Errors are passed through already
// classified by the client.
func (b *Backend) Transcribe(ctx context.Context, clip audioio.Clip) (string, error) {
	start := time.Now()
	text, err := b.client.TranscribeAudio(ctx, clip)
	if err != nil {
		b.logger.Debug("transcription failed", "error", err)
		return "", err
	}
	b.logger.Debug("transcribed",
		"bytes", len(clip.Data),
		"chars", len(text),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

var _ Transcriber = (*Backend)(nil)
