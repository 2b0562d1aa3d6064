package web

import (
	"log/slog"
	"sync"

	"github.com/teslashibe/llamadoc-voice/pkg/assistant"
	"github.com/teslashibe/llamadoc-voice/pkg/history"
	"github.com/teslashibe/llamadoc-voice/pkg/llamadoc"
	"github.com/teslashibe/llamadoc-voice/pkg/notify"
	"github.com/teslashibe/llamadoc-voice/pkg/settings"
)

// Event types pushed on /ws/events.
const (
	EventNotification     = "notification"
	EventNotificationHide = "notification.hide"
	EventAnswerLoading    = "answer.loading"
	EventAnswer           = "answer"
	EventAnswerError      = "answer.error"
	EventHistoryLoading   = "history.loading"
	EventHistoryEmpty     = "history.empty"
	EventHistoryError     = "history.error"
	EventHistory          = "history"
	EventRecording        = "recording"
	EventMute             = "mute"
	EventSettings         = "settings"
)

// StickyEvents are replayed to clients that connect late.
var StickyEvents = []string{EventRecording, EventMute, EventSettings}

// Publisher broadcasts typed events.
type Publisher interface {
	Publish(eventType string, data any) error
}

// AnswerState is what the answer area currently shows.
type AnswerState struct {
	Status   string            `json:"status"` // idle, loading, ready, error
	Question string            `json:"question,omitempty"`
	Turn     *history.Turn     `json:"turn,omitempty"`
	Sources  []llamadoc.Source `json:"sources,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// UI renders the assistant's surfaces as dashboard events. It implements
// notify.Surface, assistant.AnswerView, assistant.StatusView and
// history.View.
type UI struct {
	pub    Publisher
	logger *slog.Logger

	mu     sync.Mutex
	answer AnswerState
}

// NewUI creates a UI publishing on pub.
func NewUI(pub Publisher, logger *slog.Logger) *UI {
	if logger == nil {
		logger = slog.Default()
	}
	return &UI{
		pub:    pub,
		logger: logger.With("component", "web.ui"),
		answer: AnswerState{Status: "idle"},
	}
}

var (
	_ notify.Surface       = (*UI)(nil)
	_ assistant.AnswerView = (*UI)(nil)
	_ assistant.StatusView = (*UI)(nil)
	_ history.View         = (*UI)(nil)
)

func (u *UI) publish(eventType string, data any) {
	if err := u.pub.Publish(eventType, data); err != nil {
		u.logger.Warn("publish failed", "type", eventType, "error", err)
	}
}

// Answer returns the answer area state.
func (u *UI) Answer() AnswerState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.answer
}

func (u *UI) setAnswer(a AnswerState) {
	u.mu.Lock()
	u.answer = a
	u.mu.Unlock()
}

// Show implements notify.Surface.
func (u *UI) Show(message string, sev notify.Severity) {
	u.publish(EventNotification, map[string]string{"message": message, "severity": string(sev)})
}

// Hide implements notify.Surface.
func (u *UI) Hide() {
	u.publish(EventNotificationHide, nil)
}

// ShowPending implements assistant.AnswerView.
func (u *UI) ShowPending(question string) {
	u.setAnswer(AnswerState{Status: "loading", Question: question})
	u.publish(EventAnswerLoading, map[string]string{"question": question})
}

// ShowAnswer implements history.AnswerRenderer.
func (u *UI) ShowAnswer(turn history.Turn, sources []llamadoc.Source) {
	a := AnswerState{Status: "ready", Question: turn.Question, Turn: &turn, Sources: sources}
	u.setAnswer(a)
	u.publish(EventAnswer, a)
}

// ShowAnswerError implements assistant.AnswerView.
func (u *UI) ShowAnswerError(message string) {
	u.mu.Lock()
	u.answer = AnswerState{Status: "error", Question: u.answer.Question, Error: message}
	u.mu.Unlock()
	u.publish(EventAnswerError, map[string]string{"error": message})
}

// SetRecording implements assistant.StatusView.
func (u *UI) SetRecording(on bool) {
	u.publish(EventRecording, map[string]bool{"recording": on})
}

// SetMuted implements assistant.StatusView.
func (u *UI) SetMuted(muted bool) {
	u.publish(EventMute, map[string]bool{"muted": muted})
}

// SetSettings implements assistant.StatusView.
func (u *UI) SetSettings(s settings.VoiceSettings) {
	u.publish(EventSettings, s)
}

// ShowHistoryLoading implements history.View.
func (u *UI) ShowHistoryLoading() {
	u.publish(EventHistoryLoading, map[string]string{"message": history.LoadingMessage})
}

// ShowHistoryEmpty implements history.View.
func (u *UI) ShowHistoryEmpty(message string) {
	u.publish(EventHistoryEmpty, map[string]string{"message": message})
}

// ShowHistoryError implements history.View.
func (u *UI) ShowHistoryError(message string) {
	u.publish(EventHistoryError, map[string]string{"message": message})
}

// ShowHistory implements history.View.
func (u *UI) ShowHistory(items []history.Item) {
	u.publish(EventHistory, items)
}
