package capture

import (
	"context"
	"sync"

	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
)

// Mock implements Mechanism for testing. By default each capture yields
// Result (or Err) immediately; with Hold set it waits for Complete, Stop
// or Abort.
type Mock struct {
	MechName    string
	Unavailable bool
	Keep        bool
	Hold        bool

	// BeginErr fails Begin, as a device error would.
	BeginErr error

	Result Result
	Err    error

	mu       sync.Mutex
	captures []*MockCapture
}

// NewMock returns a mock that yields res.
func NewMock(name string, res Result) *Mock {
	return &Mock{MechName: name, Result: res}
}

// Name implements Mechanism.
func (m *Mock) Name() string {
	if m.MechName == "" {
		return "mock"
	}
	return m.MechName
}

// Available implements Mechanism.
func (m *Mock) Available() bool { return !m.Unavailable }

// KeepsOnStop implements Mechanism.
func (m *Mock) KeepsOnStop() bool { return m.Keep }

// Begin implements Mechanism.
func (m *Mock) Begin(ctx context.Context) (Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &MockCapture{
		res:     m.Result,
		err:     m.Err,
		release: make(chan struct{}),
	}
	m.captures = append(m.captures, c)
	if m.BeginErr != nil {
		c.aborted = true
		return nil, m.BeginErr
	}
	if !m.Hold {
		c.Complete()
	}
	return c, nil
}

// Begins returns how many times Begin was called, i.e. how many times
// the device was requested.
func (m *Mock) Begins() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.captures)
}

// Captures returns every capture started.
func (m *Mock) Captures() []*MockCapture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockCapture(nil), m.captures...)
}

// Live returns the number of captures still holding the device.
func (m *Mock) Live() int {
	n := 0
	for _, c := range m.Captures() {
		if c.Live() {
			n++
		}
	}
	return n
}

// MockCapture is a capture controlled by the test.
type MockCapture struct {
	res     Result
	err     error
	release chan struct{}

	once    sync.Once
	mu      sync.Mutex
	stopped bool
	aborted bool
}

// Complete lets Wait return the configured result.
func (c *MockCapture) Complete() {
	c.once.Do(func() { close(c.release) })
}

// Wait implements Capture.
func (c *MockCapture) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.release:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aborted {
		return Result{}, context.Canceled
	}
	return c.res, c.err
}

// Stop implements Capture.
func (c *MockCapture) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.Complete()
}

// Abort implements Capture.
func (c *MockCapture) Abort() {
	c.mu.Lock()
	c.aborted = true
	c.mu.Unlock()
	c.Complete()
}

// Live reports whether the capture still holds the device.
func (c *MockCapture) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aborted {
		return false
	}
	select {
	case <-c.release:
		return false
	default:
		return true
	}
}

// Aborted reports whether Abort was called.
func (c *MockCapture) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// ClipMock is a Mock that can also recognize recorded clips.
type ClipMock struct {
	*Mock

	ClipText string
	ClipErr  error

	clipMu sync.Mutex
	clips  []audioio.Clip
}

// RecognizeClip implements ClipRecognizer.
func (m *ClipMock) RecognizeClip(ctx context.Context, clip audioio.Clip) (Transcript, error) {
	m.clipMu.Lock()
	m.clips = append(m.clips, clip)
	m.clipMu.Unlock()
	if m.ClipErr != nil {
		return Transcript{}, m.ClipErr
	}
	return Transcript{Text: m.ClipText, Confidence: 1}, nil
}

// Clips returns every clip passed to RecognizeClip.
func (m *ClipMock) Clips() []audioio.Clip {
	m.clipMu.Lock()
	defer m.clipMu.Unlock()
	return append([]audioio.Clip(nil), m.clips...)
}

var (
	_ Mechanism      = (*Mock)(nil)
	_ ClipRecognizer = (*ClipMock)(nil)
)
