// Package playback owns answer and history audio playback.
//
// A Controller keeps at most one playback handle alive: starting a new
// playback stops and releases the previous one first. Playback is refused
// while the assistant is muted, and failures are reported on the
// notification channel instead of being returned to UI code.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/notify"
)

// Sentinel errors.
var (
	// ErrMuted is returned by Play while muted.
	ErrMuted = errors.New("playback: muted")

	// ErrNoAudio is returned for an empty audio reference.
	ErrNoAudio = errors.New("playback: no audio reference")
)

// Player opens playback handles. Open returns once audio has started.
type Player interface {
	Open(ctx context.Context, ref string, volume float64) (Handle, error)
}

// Handle is one live playback.
type Handle interface {
	// Stop halts playback. Safe to call more than once.
	Stop()

	// Done is closed when playback ends for any reason.
	Done() <-chan struct{}

	// Err reports why playback ended early, or nil after Stop or a
	// complete play.
	Err() error
}

// Notifier receives playback failure messages.
type Notifier interface {
	Notify(message string, sev notify.Severity)
}

// Controller enforces a single live playback.
type Controller struct {
	player   Player
	muted    func() bool
	volume   func() float64
	notifier Notifier
	logger   *slog.Logger

	// OnPlaybackStart and OnPlaybackEnd fire around every playback.
	OnPlaybackStart func(ref string)
	OnPlaybackEnd   func(ref string)

	startMu sync.Mutex // serializes Play
	mu      sync.Mutex
	active  *playing
	wg      sync.WaitGroup
}

type playing struct {
	ref     string
	handle  Handle
	stopped bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithMuted sets the mute check. It is evaluated on every Play.
func WithMuted(fn func() bool) Option {
	return func(c *Controller) {
		c.muted = fn
	}
}

// WithVolume sets the volume source, evaluated on every Play.
func WithVolume(fn func() float64) Option {
	return func(c *Controller) {
		c.volume = fn
	}
}

// WithNotifier sets where playback failures are reported.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New creates a controller over player.
func New(player Player, opts ...Option) *Controller {
	c := &Controller{
		player: player,
		muted:  func() bool { return false },
		volume: func() float64 { return 1 },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "playback")
	return c
}

// Play stops any current playback and starts ref. It returns once audio
// has started; completion is tracked in the background. Failures are also
// reported on the notifier.
func (c *Controller) Play(ctx context.Context, ref string) error {
	if ref == "" {
		return ErrNoAudio
	}
	if c.muted() {
		return ErrMuted
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.StopAll()

	h, err := c.player.Open(ctx, ref, c.volume())
	if err != nil {
		c.fail(ref, err)
		return err
	}
	// Mute may have been toggled while the audio was fetched.
	if c.muted() {
		h.Stop()
		return ErrMuted
	}

	p := &playing{ref: ref, handle: h}
	c.mu.Lock()
	c.active = p
	c.mu.Unlock()

	c.logger.Debug("playback started", "ref", ref)
	if c.OnPlaybackStart != nil {
		c.OnPlaybackStart(ref)
	}

	c.wg.Add(1)
	go c.watch(p)
	return nil
}

func (c *Controller) watch(p *playing) {
	defer c.wg.Done()
	<-p.handle.Done()

	c.mu.Lock()
	stopped := p.stopped
	if c.active == p {
		c.active = nil
	}
	c.mu.Unlock()

	if err := p.handle.Err(); err != nil && !stopped {
		c.fail(p.ref, err)
	} else {
		c.logger.Debug("playback ended", "ref", p.ref, "stopped", stopped)
	}
	if c.OnPlaybackEnd != nil {
		c.OnPlaybackEnd(p.ref)
	}
}

func (c *Controller) fail(ref string, err error) {
	c.logger.Warn("playback failed", "ref", ref, "error", err)
	if c.notifier == nil {
		return
	}
	if apperr.KindOf(err) == apperr.KindUnknown {
		err = apperr.Wrap(apperr.KindDecode, "playback", err)
	}
	c.notifier.Notify(apperr.Message(err), notify.Error)
}

// StopAll stops and releases the current playback, if any.
func (c *Controller) StopAll() {
	c.mu.Lock()
	p := c.active
	c.active = nil
	if p != nil {
		p.stopped = true
	}
	c.mu.Unlock()

	if p != nil {
		p.handle.Stop()
		<-p.handle.Done()
		c.logger.Debug("playback stopped", "ref", p.ref)
	}
}

// Active reports whether a playback handle is alive.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Current returns the reference being played, or "".
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.ref
}

// Wait blocks until the current playback finishes or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	p := c.active
	c.mu.Unlock()
	if p == nil {
		return nil
	}
	select {
	case <-p.handle.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops playback and waits for background watchers.
func (c *Controller) Close() error {
	c.StopAll()
	c.wg.Wait()
	return nil
}
