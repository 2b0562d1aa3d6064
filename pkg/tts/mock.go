package tts

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mock is an in-memory Provider. By default it hands out numbered upload
// paths (/uploads/audio/mock-1.wav, mock-2.wav, ...) the way the backend
// /tts endpoint does, without producing any audio.
type Mock struct {
	// SynthesizeFunc replaces the default synthesis when set.
	SynthesizeFunc func(ctx context.Context, text string, voice Voice) (*Result, error)

	// HealthErr is returned from Health.
	HealthErr error

	mu    sync.Mutex
	calls []MockCall
	seq   int
}

// MockCall is one recorded invocation.
type MockCall struct {
	Method string
	Text   string
	Voice  Voice
	Time   time.Time
}

// NewMock returns a healthy mock that always succeeds.
func NewMock() *Mock {
	return &Mock{}
}

// WithError returns a mock whose synthesis and health checks fail with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string, Voice) (*Result, error) { return nil, err },
		HealthErr:      err,
	}
}

// WithLatency delays every synthesis on m by delay, honoring ctx.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	next := m.SynthesizeFunc
	m.SynthesizeFunc = func(ctx context.Context, text string, voice Voice) (*Result, error) {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
		if next != nil {
			return next(ctx, text, voice)
		}
		return m.numbered(text), nil
	}
	return m
}

func (m *Mock) Synthesize(ctx context.Context, text string, voice Voice) (*Result, error) {
	m.record("Synthesize", text, voice)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, voice)
	}
	return m.numbered(text), nil
}

func (m *Mock) numbered(text string) *Result {
	m.mu.Lock()
	m.seq++
	n := m.seq
	m.mu.Unlock()
	return &Result{
		AudioURL:  fmt.Sprintf("/uploads/audio/mock-%d.wav", n),
		Provider:  "mock",
		CharCount: len(text),
	}
}

func (m *Mock) Health(context.Context) error {
	m.record("Health", "", Voice{})
	return m.HealthErr
}

func (m *Mock) Close() error {
	m.record("Close", "", Voice{})
	return nil
}

func (m *Mock) record(method, text string, voice Voice) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Voice: voice, Time: time.Now()})
	m.mu.Unlock()
}

// CallCount returns how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LastCall returns the most recent call, or nil.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	c := m.calls[len(m.calls)-1]
	return &c
}

var _ Provider = (*Mock)(nil)
