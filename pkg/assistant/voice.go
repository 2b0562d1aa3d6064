package assistant

import (
	"context"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
	"github.com/teslashibe/llamadoc-voice/pkg/capture"
	"github.com/teslashibe/llamadoc-voice/pkg/notify"
)

// ToggleCapture starts a capture in the default mode, or stops the
// running one.
func (c *Controller) ToggleCapture(ctx context.Context) error {
	if c.capture.Active() {
		c.StopCapture()
		return nil
	}
	return c.StartCapture(ctx, c.cfg.Mode)
}

// StopCapture ends the running capture. A recording is still transcribed;
// live recognition is discarded.
func (c *Controller) StopCapture() {
	if c.capture.Stop() {
		c.logger.Debug("capture stop requested")
	}
}

// StartCapture starts listening for a question. It fails without touching
// the microphone when no document is active or no mechanism is available.
// The rest of the turn runs in the background.
func (c *Controller) StartCapture(ctx context.Context, mode Mode) error {
	if c.session.Document() == "" {
		c.notify(apperr.Message(apperr.ErrNoDocument), notify.Error)
		return apperr.ErrNoDocument
	}
	mech := c.mechanism(mode)
	if mech == nil {
		err := apperr.New(apperr.KindUnavailable, msgNoCapture)
		c.notify(msgNoCapture, notify.Error)
		return err
	}
	return c.listen(ctx, mech, true)
}

// mechanism picks the capture mechanism for mode.
func (c *Controller) mechanism(mode Mode) capture.Mechanism {
	recognizer := available(c.d.Recognizer)
	recorder := available(c.d.Recorder)
	if recorder != nil && c.d.Transcriber == nil {
		recorder = nil
	}
	switch mode {
	case ModeRecord:
		return recorder
	case ModeRecognize:
		return recognizer
	default:
		if recognizer != nil {
			return recognizer
		}
		return recorder
	}
}

func available(m capture.Mechanism) capture.Mechanism {
	if m == nil || !m.Available() {
		return nil
	}
	return m
}

// listen starts a capture session on mech. allowFallback permits one
// switch to the other mechanism on permission or availability failures.
func (c *Controller) listen(ctx context.Context, mech capture.Mechanism, allowFallback bool) error {
	out, err := c.capture.Start(ctx, mech)
	if err != nil {
		c.fail("capture", err)
		return err
	}
	if mech.KeepsOnStop() {
		c.notify(msgRecording, notify.Info)
	} else {
		c.notify(msgListening, notify.Info)
	}
	c.goTurn(ctx, func(ctx context.Context) {
		c.handleOutcome(ctx, <-out, mech, allowFallback)
	})
	return nil
}

func (c *Controller) handleOutcome(ctx context.Context, o capture.Outcome, mech capture.Mechanism, allowFallback bool) {
	switch o.Status {
	case capture.StateCancelled:
		c.logger.Debug("capture cancelled", "mechanism", o.Mechanism)

	case capture.StateFailed:
		if allowFallback && (apperr.IsKind(o.Err, apperr.KindPermission) || apperr.IsKind(o.Err, apperr.KindUnavailable)) {
			if alt := c.alternative(mech); alt != nil {
				c.logger.Info("capture failed, switching mechanism", "from", mech.Name(), "to", alt.Name(), "error", o.Err)
				if c.listen(ctx, alt, false) == nil {
					return
				}
			}
		}
		c.fail("capture", o.Err)

	case capture.StateSucceeded:
		if o.Result.IsTranscript() {
			text := o.Result.Transcript.Text
			c.notify(gotIt(text), notify.Success)
			c.runTurn(ctx, text, nil, nil)
			return
		}
		if o.Result.Audio != nil {
			c.transcribe(ctx, *o.Result.Audio, allowFallback)
		}
	}
}

// alternative returns the other available mechanism.
func (c *Controller) alternative(failed capture.Mechanism) capture.Mechanism {
	for _, m := range []capture.Mechanism{c.mechanism(ModeRecognize), c.mechanism(ModeRecord)} {
		if m != nil && m != failed {
			return m
		}
	}
	return nil
}

// transcribe runs the server transcription round-trip for a recording.
// When the server cannot transcribe, the recognizer takes over: on the
// same clip if it can, otherwise with one fresh live attempt.
func (c *Controller) transcribe(ctx context.Context, clip audioio.Clip, allowFallback bool) {
	c.notify(msgTranscribing, notify.Info)
	tm := newTurnTimer(c.cfg.Now)
	text, err := c.d.Transcriber.Transcribe(ctx, clip)
	tm.done(StageTranscribe)
	if err == nil {
		c.notify(gotIt(text), notify.Success)
		c.runTurn(ctx, text, &clip, tm)
		return
	}
	if !apperr.IsKind(err, apperr.KindUnavailable) || !allowFallback {
		c.fail("transcribe", err)
		return
	}

	c.logger.Info("server transcription unavailable, falling back", "error", err)
	if cr, ok := c.d.Recognizer.(capture.ClipRecognizer); ok {
		c.notify(msgFallback, notify.Error)
		t, err := cr.RecognizeClip(ctx, clip)
		tm.done(StageTranscribe)
		if err != nil {
			c.fail("recognize clip", err)
			return
		}
		c.notify(gotIt(t.Text), notify.Success)
		c.runTurn(ctx, t.Text, &clip, tm)
		return
	}
	if rec := c.mechanism(ModeRecognize); rec != nil {
		c.listen(ctx, rec, false)
		return
	}
	c.fail("transcribe", err)
}

func gotIt(text string) string {
	return `Got it: "` + text + `"`
}
