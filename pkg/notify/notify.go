// Package notify shows short-lived status messages on a display surface.
//
// A Channel keeps at most one message visible. Each message is hidden
// automatically after a delay that depends on its severity; a newer message
// replaces the current one and restarts the dismissal timer.
package notify

import (
	"log/slog"
	"sync"
	"time"

	applog "github.com/teslashibe/llamadoc-voice/internal/log"
)

// Severity ranks a message. It selects the auto-dismiss delay.
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Error   Severity = "error"
)

// Default dismissal delays per severity.
const (
	DefaultInfoDuration    = 3000 * time.Millisecond
	DefaultSuccessDuration = 2000 * time.Millisecond
	DefaultErrorDuration   = 5000 * time.Millisecond
)

// Surface renders the current notification. Show replaces whatever is
// displayed; Hide clears it.
type Surface interface {
	Show(message string, sev Severity)
	Hide()
}

// Channel delivers notifications to a Surface.
type Channel struct {
	surface Surface
	logger  *slog.Logger

	durations map[Severity]time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	current string
	closed  bool
}

// Option configures a Channel.
type Option func(*Channel)

// WithDurations overrides the dismissal delays. Zero values keep the default.
func WithDurations(info, success, errDur time.Duration) Option {
	return func(c *Channel) {
		if info > 0 {
			c.durations[Info] = info
		}
		if success > 0 {
			c.durations[Success] = success
		}
		if errDur > 0 {
			c.durations[Error] = errDur
		}
	}
}

// WithLogger sets the logger used when no surface is attached.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// New creates a Channel. A nil surface makes every Notify a logged no-op.
func New(surface Surface, opts ...Option) *Channel {
	c := &Channel{
		surface: surface,
		durations: map[Severity]time.Duration{
			Info:    DefaultInfoDuration,
			Success: DefaultSuccessDuration,
			Error:   DefaultErrorDuration,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = applog.Or(c.logger, "notify")
	return c
}

// Duration returns the dismissal delay for sev. Unknown severities use the
// info delay.
func (c *Channel) Duration(sev Severity) time.Duration {
	if d, ok := c.durations[sev]; ok {
		return d
	}
	return c.durations[Info]
}

// Notify shows message immediately, replacing any visible message, and
// schedules it to be hidden. A pending dismissal from an earlier message is
// cancelled.
func (c *Channel) Notify(message string, sev Severity) {
	if sev == "" {
		sev = Info
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.surface == nil {
		c.log(message, sev)
		return
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.current = message
	c.surface.Show(message, sev)

	c.timer = time.AfterFunc(c.Duration(sev), func() {
		c.dismiss(gen)
	})
}

// dismiss hides the message shown under gen, unless a newer one replaced it.
// A Stop that loses the race with AfterFunc still lands here, so the
// generation check is what keeps a stale timer from hiding the new message.
func (c *Channel) dismiss(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.closed {
		return
	}
	c.current = ""
	c.timer = nil
	c.surface.Hide()
}

func (c *Channel) log(message string, sev Severity) {
	switch sev {
	case Error:
		c.logger.Warn(message, "severity", sev)
	default:
		c.logger.Info(message, "severity", sev)
	}
}

// Info shows an info message.
func (c *Channel) Info(message string) { c.Notify(message, Info) }

// Success shows a success message.
func (c *Channel) Success(message string) { c.Notify(message, Success) }

// Error shows an error message.
func (c *Channel) Error(message string) { c.Notify(message, Error) }

// Current returns the visible message, or "" when nothing is shown.
func (c *Channel) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close cancels the pending dismissal. Later calls to Notify are ignored.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.closed = true
}
