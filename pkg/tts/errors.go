package tts

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAPIKey means the OpenAI provider was built without a key.
	ErrNoAPIKey = errors.New("tts: API key required")

	// ErrEmptyText means the answer had nothing speakable left after
	// markup was stripped.
	ErrEmptyText = errors.New("tts: text is empty")

	// ErrProviderUnavailable means a chain has no providers configured.
	ErrProviderUnavailable = errors.New("tts: no providers available")
)

// ProviderError tags a synthesis failure with the provider name so a chain
// failure can say which voice backend broke.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError returns nil for a nil err.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
