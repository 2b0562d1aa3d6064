package stt

import (
	"context"
	"sync"

	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
)

// Mock implements Transcriber for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, returns Text.
	TranscribeFunc func(ctx context.Context, clip audioio.Clip) (string, error)

	// Text is returned when TranscribeFunc is nil.
	Text string

	mu    sync.Mutex
	clips []audioio.Clip
}

// NewMock returns a mock that always transcribes to text.
func NewMock(text string) *Mock {
	return &Mock{Text: text}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, clip audioio.Clip) (string, error) {
			return "", err
		},
	}
}

// Transcribe implements Transcriber.
func (m *Mock) Transcribe(ctx context.Context, clip audioio.Clip) (string, error) {
	m.mu.Lock()
	m.clips = append(m.clips, clip)
	m.mu.Unlock()
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, clip)
	}
	return m.Text, nil
}

// Clips returns every clip passed to Transcribe.
func (m *Mock) Clips() []audioio.Clip {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audioio.Clip, len(m.clips))
	copy(out, m.clips)
	return out
}

// CallCount returns the number of Transcribe calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clips)
}

var _ Transcriber = (*Mock)(nil)
