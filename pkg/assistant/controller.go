package assistant

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/capture"
	"github.com/teslashibe/llamadoc-voice/pkg/llamadoc"
	"github.com/teslashibe/llamadoc-voice/pkg/notify"
	"github.com/teslashibe/llamadoc-voice/pkg/settings"
	"github.com/teslashibe/llamadoc-voice/pkg/tts"
)

// Controller orchestrates voice turns.
type Controller struct {
	d       Deps
	cfg     *Config
	session *Session
	capture *capture.Session
	metrics *Metrics
	logger  *slog.Logger

	wg sync.WaitGroup
}

// New creates a controller. Backend, Settings, Player and Notifier are
// required; the remaining collaborators are optional.
func New(d Deps, opts ...Option) (*Controller, error) {
	switch {
	case d.Backend == nil:
		return nil, fmt.Errorf("%w: backend", ErrMissingDependency)
	case d.Settings == nil:
		return nil, fmt.Errorf("%w: settings", ErrMissingDependency)
	case d.Player == nil:
		return nil, fmt.Errorf("%w: player", ErrMissingDependency)
	case d.Notifier == nil:
		return nil, fmt.Errorf("%w: notifier", ErrMissingDependency)
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if d.Session == nil {
		d.Session = NewSession()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	logger := d.Logger.With("component", "assistant")

	c := &Controller{
		d:       d,
		cfg:     cfg,
		session: d.Session,
		capture: capture.NewSession(capture.WithLogger(d.Logger)),
		metrics: NewMetrics(100),
		logger:  logger,
	}
	c.capture.OnStateChange(func(st capture.State) {
		on := st.Active()
		if c.session.Recording() == on {
			return
		}
		c.session.setRecording(on)
		if c.d.Status != nil {
			c.d.Status.SetRecording(on)
		}
	})
	if d.Status != nil {
		d.Settings.OnChange(d.Status.SetSettings)
	}
	return c, nil
}

// Session returns the session flags.
func (c *Controller) Session() *Session {
	return c.session
}

// CaptureState returns the capture state machine's state.
func (c *Controller) CaptureState() capture.State {
	return c.capture.State()
}

// Metrics summarizes the latency of recent turns.
func (c *Controller) Metrics() MetricsSummary {
	return c.metrics.Summary()
}

// Voice returns the current voice settings in synthesis form.
func (c *Controller) Voice() tts.Voice {
	vs := c.d.Settings.Current()
	return tts.Voice{Type: vs.VoiceType, Rate: vs.Rate, Volume: vs.Volume}
}

// Wait blocks until every background turn has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close aborts capture, stops playback and waits for turns.
func (c *Controller) Close() error {
	c.capture.Abort()
	c.d.Player.StopAll()
	c.wg.Wait()
	return nil
}

func (c *Controller) notify(msg string, sev notify.Severity) {
	c.d.Notifier.Notify(msg, sev)
}

func (c *Controller) fail(op string, err error) {
	c.logger.Warn(op+" failed", "error", err)
	c.notify(apperr.Message(err), notify.Error)
}

// goTurn runs fn in the background, detached from the caller's
// cancellation.
func (c *Controller) goTurn(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(ctx)
	}()
}

// ToggleMute flips mute. Muting stops any playing audio.
func (c *Controller) ToggleMute() bool {
	muted := c.session.ToggleMute()
	if muted {
		c.d.Player.StopAll()
	}
	if c.d.Status != nil {
		c.d.Status.SetMuted(muted)
	}
	if muted {
		c.notify(msgMuted, notify.Info)
	} else {
		c.notify(msgUnmuted, notify.Info)
	}
	c.logger.Info("mute toggled", "muted", muted)
	return muted
}

// UpdateSettings applies fn to the voice settings and persists them. The
// new settings are used even when saving fails.
func (c *Controller) UpdateSettings(ctx context.Context, fn func(*settings.VoiceSettings)) settings.VoiceSettings {
	vs, err := c.d.Settings.Update(ctx, fn)
	if err != nil {
		c.logger.Warn("persist settings failed", "error", err)
		c.notify(msgSettingsFailed, notify.Error)
	}
	return vs
}

// Upload sends a document, makes it active and loads its history.
func (c *Controller) Upload(ctx context.Context, filename string, r io.Reader) (*llamadoc.Upload, error) {
	c.notify("Uploading "+filename+"...", notify.Info)
	up, err := c.d.Backend.UploadDocument(ctx, filename, r)
	if err != nil {
		c.fail("upload", err)
		return nil, err
	}
	c.capture.Abort()
	c.d.Player.StopAll()
	c.session.SetDocument(up.UploadID)
	msg := up.Message
	if msg == "" {
		msg = "PDF uploaded successfully!"
	}
	c.notify(msg, notify.Success)
	c.logger.Info("document uploaded", "upload_id", up.UploadID, "filename", filename)

	if c.d.Panel != nil {
		c.d.Panel.Load(ctx, up.UploadID)
	}
	return up, nil
}

// Download writes the latest answer for the active document in format f
// and returns the suggested filename.
func (c *Controller) Download(ctx context.Context, f llamadoc.Format, w io.Writer) (string, error) {
	uploadID := c.session.Document()
	if uploadID == "" {
		c.notify(msgNoAnswer, notify.Error)
		return "", apperr.ErrNoDocument
	}
	name, err := c.d.Backend.DownloadAnswer(ctx, uploadID, f, w)
	if err != nil {
		c.logger.Warn("download failed", "format", f, "error", err)
		c.notify(msgDownloadFailed, notify.Error)
		return "", err
	}
	c.notify(fmt.Sprintf("Downloading answer as %s...", strings.ToUpper(string(f))), notify.Success)
	return name, nil
}
