// Package history renders a document's persisted question/answer turns and
// the per-entry actions: replaying stored audio, speaking an answer that
// has no stored audio, and re-opening a turn in the answer view.
package history

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/teslashibe/llamadoc-voice/pkg/llamadoc"
)

// Panel messages.
const (
	LoadingMessage = "Loading history..."
	EmptyMessage   = "No chat history yet. Start asking questions!"
	ErrorMessage   = "Failed to load history"
)

// Preview lengths, in characters.
const (
	QuestionPreviewLen = 60
	SummaryPreviewLen  = 100
)

// Turn is one question and its answer.
type Turn struct {
	ID               string    `json:"id"`
	UploadID         string    `json:"upload_id"`
	Question         string    `json:"question"`
	Answer           string    `json:"answer"`
	AnswerHTML       string    `json:"answer_html,omitempty"`
	Summary          string    `json:"summary"`
	QuestionAudioRef string    `json:"question_audio,omitempty"`
	AnswerAudioRef   string    `json:"answer_audio,omitempty"`
	VoiceType        string    `json:"voice_type"`
	Rate             int       `json:"rate"`
	Muted            bool      `json:"muted"`
	CreatedAt        time.Time `json:"created_at"`
}

// FromEntry converts a backend history entry.
func FromEntry(e llamadoc.HistoryEntry) Turn {
	return Turn{
		ID:               string(e.ID),
		UploadID:         e.UploadID,
		Question:         e.Question,
		Answer:           e.Answer,
		Summary:          e.Summary,
		QuestionAudioRef: e.QuestionAudioPath,
		AnswerAudioRef:   e.AnswerAudioPath,
		VoiceType:        e.VoiceType,
		Rate:             e.AudioSpeed,
		Muted:            e.IsMuted,
		CreatedAt:        e.CreatedAt.Time,
	}
}

// Item is a turn prepared for display.
type Item struct {
	Turn

	QuestionPreview  string `json:"question_preview"`
	SummaryPreview   string `json:"summary_preview"`
	When             string `json:"when"`
	HasQuestionAudio bool   `json:"has_question_audio"`
	HasAnswerAudio   bool   `json:"has_answer_audio"`
}

// NewItem prepares t for display relative to now.
func NewItem(t Turn, now time.Time) Item {
	summary := t.Summary
	if summary == "" {
		summary = t.Answer
	}
	return Item{
		Turn:             t,
		QuestionPreview:  Truncate(t.Question, QuestionPreviewLen),
		SummaryPreview:   Truncate(summary, SummaryPreviewLen),
		When:             FormatTimestamp(t.CreatedAt, now),
		HasQuestionAudio: t.QuestionAudioRef != "",
		HasAnswerAudio:   t.AnswerAudioRef != "",
	}
}

// Truncate shortens s to n characters, adding "..." when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// FormatTimestamp renders t relative to now: "Just now", "5 mins ago",
// "2 hours ago", "3 days ago", then a plain date after a week.
func FormatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return "Unknown time"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "min")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d < 7*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	default:
		return t.Local().Format("Jan 2, 2006 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
