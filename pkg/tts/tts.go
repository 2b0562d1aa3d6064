// Package tts provides a unified interface for text-to-speech providers.
//
// Providers turn answer text into an audio reference that the playback
// controller can fetch: a backend-relative URL for the LlamaDoc /tts
// endpoint, or a file:// URL for audio synthesized locally through OpenAI.
// All providers implement Provider, and a Chain tries several in order.
//
// Example usage:
//
//	backend := tts.NewBackend(client)
//	openai, _ := tts.NewOpenAI(tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	chain, _ := tts.NewChain(backend, openai)
//
//	res, _ := chain.Synthesize(ctx, "Hello world", tts.Voice{Type: "female", Rate: 180, Volume: 1})
//	// res.AudioURL is ready for playback
package tts

import (
	"context"
	"strings"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize renders text with the given voice and returns a reference
	// to the finished audio.
	Synthesize(ctx context.Context, text string, voice Voice) (*Result, error)

	// Health checks provider connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Voice carries the user's voice settings into synthesis.
type Voice struct {
	// Type is "default", "female" or "male".
	Type string

	// Rate is the speaking rate in words per minute.
	Rate int

	// Volume is in [0, 1]. Providers that cannot apply it leave it to
	// playback.
	Volume float64
}

// NormalRate is the speaking rate treated as 1x speed.
const NormalRate = 180

// Speed converts Rate to a multiplier of normal speed, clamped to [lo, hi].
func (v Voice) Speed(lo, hi float64) float64 {
	if v.Rate <= 0 {
		return 1
	}
	s := float64(v.Rate) / NormalRate
	return min(max(s, lo), hi)
}

// Result is a finished synthesis.
type Result struct {
	// AudioURL references the audio: backend-relative path, absolute URL
	// or file:// URL.
	AudioURL string

	// Provider names the provider that produced the audio.
	Provider string

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time the provider took.
	LatencyMs int64
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}
