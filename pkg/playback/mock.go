package playback

import (
	"context"
	"sync"
)

// MockPlayer implements Player for testing. Handles stay open until
// stopped or finished with Finish.
type MockPlayer struct {
	// OpenFunc overrides Open when set.
	OpenFunc func(ctx context.Context, ref string, volume float64) (Handle, error)

	mu      sync.Mutex
	handles []*MockHandle
}

// NewMockPlayer creates a mock player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

// Open implements Player.
func (m *MockPlayer) Open(ctx context.Context, ref string, volume float64) (Handle, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, ref, volume)
	}
	h := &MockHandle{Ref: ref, Volume: volume, done: make(chan struct{})}
	m.mu.Lock()
	m.handles = append(m.handles, h)
	m.mu.Unlock()
	return h, nil
}

// Handles returns every handle opened so far.
func (m *MockPlayer) Handles() []*MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockHandle(nil), m.handles...)
}

// Live returns the number of handles that have not ended.
func (m *MockPlayer) Live() int {
	n := 0
	for _, h := range m.Handles() {
		select {
		case <-h.done:
		default:
			n++
		}
	}
	return n
}

// MockHandle is a playback handle controlled by the test.
type MockHandle struct {
	Ref    string
	Volume float64

	mu      sync.Mutex
	done    chan struct{}
	err     error
	stopped bool
}

// Stop implements Handle.
func (h *MockHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Finish ends playback as if the audio completed, or failed with err.
func (h *MockHandle) Finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return
	default:
	}
	h.err = err
	close(h.done)
}

// Stopped reports whether Stop was called.
func (h *MockHandle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Done implements Handle.
func (h *MockHandle) Done() <-chan struct{} {
	return h.done
}

// Err implements Handle.
func (h *MockHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

var _ Player = (*MockPlayer)(nil)
