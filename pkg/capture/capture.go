// Package capture runs microphone sessions that turn speech into a
// question.
//
// A Session is an explicit state machine:
//
//	Idle → Starting → Listening → (Succeeded | Failed | Cancelled) → Idle
//
// Each Start returns a channel that delivers exactly one Outcome. At most
// one session is alive: starting a new one aborts the previous session,
// whose outcome is Cancelled.
//
// Sessions are driven by a Mechanism. The Recorder buffers raw audio for a
// server transcription round-trip; live recognizers (see the gcloud
// subpackage) yield a transcript directly.
package capture

import (
	"context"

	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
)

// State is a session state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateListening
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Active reports whether the state holds a device.
func (s State) Active() bool {
	return s == StateStarting || s == StateListening
}

// Transcript is text produced by live recognition.
type Transcript struct {
	Text       string
	Confidence float64
}

// Result is what a session produced: either a transcript or raw audio.
// Exactly one field is set.
type Result struct {
	Transcript *Transcript
	Audio      *audioio.Clip
}

// TranscriptResult wraps a transcript.
func TranscriptResult(text string, confidence float64) Result {
	return Result{Transcript: &Transcript{Text: text, Confidence: confidence}}
}

// AudioResult wraps a recorded clip.
func AudioResult(clip audioio.Clip) Result {
	return Result{Audio: &clip}
}

// IsTranscript reports whether the result carries text.
func (r Result) IsTranscript() bool {
	return r.Transcript != nil
}

// Outcome is the single value delivered for a session.
type Outcome struct {
	// Status is StateSucceeded, StateFailed or StateCancelled.
	Status State

	// Result is set when Status is StateSucceeded.
	Result Result

	// Err is set when Status is StateFailed.
	Err error

	// Mechanism names the mechanism that ran the session.
	Mechanism string
}

// Mechanism acquires the microphone and produces a Result.
type Mechanism interface {
	// Name identifies the mechanism in logs and outcomes.
	Name() string

	// Available reports whether the mechanism can run in this environment.
	// Unavailable mechanisms are never started.
	Available() bool

	// KeepsOnStop reports whether stopping a capture early still yields
	// its buffered result (recording) or discards it (recognition).
	KeepsOnStop() bool

	// Begin acquires the device and starts capturing.
	Begin(ctx context.Context) (Capture, error)
}

// Capture is one running mechanism instance.
type Capture interface {
	// Wait blocks until the capture produces its result or fails.
	Wait(ctx context.Context) (Result, error)

	// Stop asks the capture to finish now.
	Stop()

	// Abort releases the device and discards any result.
	Abort()
}

// ClipRecognizer is implemented by recognizers that can transcribe an
// already-recorded clip, so a fallback does not ask the user to repeat
// the question.
type ClipRecognizer interface {
	RecognizeClip(ctx context.Context, clip audioio.Clip) (Transcript, error)
}
