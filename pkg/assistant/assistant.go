// Package assistant runs the voice question/answer loop for one LlamaDoc
// document.
//
// A turn is: capture a question (or take a typed one), transcribe it if it
// was recorded, query the backend, render the answer, synthesize and play
// it unless muted, save the turn to history and refresh the history panel.
// Every failure is turned into a notification at the operation boundary.
package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/teslashibe/llamadoc-voice/pkg/capture"
	"github.com/teslashibe/llamadoc-voice/pkg/history"
	"github.com/teslashibe/llamadoc-voice/pkg/llamadoc"
	"github.com/teslashibe/llamadoc-voice/pkg/notify"
	"github.com/teslashibe/llamadoc-voice/pkg/settings"
	"github.com/teslashibe/llamadoc-voice/pkg/stt"
	"github.com/teslashibe/llamadoc-voice/pkg/tts"
)

// Mode selects the capture mechanism.
type Mode string

const (
	// ModeAuto prefers live recognition and falls back to recording.
	ModeAuto Mode = "auto"
	// ModeRecognize uses live recognition only.
	ModeRecognize Mode = "recognize"
	// ModeRecord records audio for server transcription.
	ModeRecord Mode = "record"
)

// ParseMode parses a mode name; "" is ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeRecognize, ModeRecord:
		return Mode(s), nil
	}
	return "", errors.New("assistant: unknown capture mode " + s)
}

// User-facing messages.
const (
	msgListening        = "Listening... Speak your question!"
	msgRecording        = "Recording... Click to stop"
	msgTranscribing     = "Transcribing audio..."
	msgFallback         = "Server transcription unavailable. Trying speech recognition..."
	msgThinking         = "Getting AI response..."
	msgAnswerReady      = "Answer ready!"
	msgGenerating       = "Generating voice response..."
	msgVoiceUnavailable = "Voice response unavailable."
	msgSaveFailed       = "Answer shown, but saving it to history failed."
	msgMuted            = "Audio muted"
	msgUnmuted          = "Audio unmuted"
	msgEmptyQuestion    = "Please enter a question."
	msgNoCapture        = "Voice input is not available. Please type your question."
	msgSettingsFailed   = "Could not save voice settings."
	msgNoAnswer         = "No answer to download!"
	msgDownloadFailed   = "Download failed"
)

// Backend is the part of the LlamaDoc client the assistant uses.
type Backend interface {
	UploadDocument(ctx context.Context, filename string, r io.Reader) (*llamadoc.Upload, error)
	SubmitQuestion(ctx context.Context, uploadID, question string) (*llamadoc.QueryResult, error)
	SaveHistoryEntry(ctx context.Context, rec llamadoc.HistoryRecord) (string, error)
	DownloadAnswer(ctx context.Context, uploadID string, f llamadoc.Format, w io.Writer) (string, error)
}

// Notifier shows transient status messages.
type Notifier interface {
	Notify(message string, sev notify.Severity)
}

// Player plays answer audio.
type Player interface {
	Play(ctx context.Context, ref string) error
	StopAll()
}

// AnswerView is the main answer area.
type AnswerView interface {
	history.AnswerRenderer

	// ShowPending shows question while its answer is fetched.
	ShowPending(question string)

	// ShowAnswerError replaces the answer with a failure message.
	ShowAnswerError(message string)
}

// StatusView mirrors the session flags.
type StatusView interface {
	SetRecording(on bool)
	SetMuted(muted bool)
	SetSettings(s settings.VoiceSettings)
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Backend     Backend
	Transcriber stt.Transcriber
	Synthesizer tts.Provider
	Settings    *settings.Manager
	Player      Player
	Notifier    Notifier
	Answers     AnswerView
	Status      StatusView
	Panel       *history.Panel

	// Recognizer is the live recognition mechanism, if any.
	Recognizer capture.Mechanism

	// Recorder is the audio recording mechanism, if any.
	Recorder capture.Mechanism

	Session *Session
	Logger  *slog.Logger
}

// Config holds controller options.
type Config struct {
	Mode Mode

	// TurnTimeout bounds one turn after the question is known.
	TurnTimeout time.Duration

	Now func() time.Time
}

// Option configures a Controller.
type Option func(*Config)

// WithMode sets the default capture mode.
func WithMode(m Mode) Option {
	return func(c *Config) {
		c.Mode = m
	}
}

// WithTurnTimeout bounds one turn.
func WithTurnTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.TurnTimeout = d
	}
}

// WithClock sets the clock for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:        ModeAuto,
		TurnTimeout: 3 * time.Minute,
		Now:         time.Now,
	}
}

// Sentinel errors.
var (
	// ErrMissingDependency is returned by New when a required
	// collaborator is nil.
	ErrMissingDependency = errors.New("assistant: missing dependency")

	// ErrStaleTurn is returned when a turn was superseded before its
	// answer was rendered.
	ErrStaleTurn = errors.New("assistant: turn superseded")

	// ErrEmptyQuestion is returned for a blank typed question.
	ErrEmptyQuestion = errors.New("assistant: question is empty")
)
