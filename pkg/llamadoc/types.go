package llamadoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
)

// Format is a download format for answers.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat validates a download format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTXT, FormatPDF, FormatDOCX:
		return f, nil
	}
	return "", fmt.Errorf("llamadoc: unsupported format %q (use txt, pdf, or docx)", s)
}

// ID is a backend identifier. The backend sends integers for history rows
// and strings for uploads; both decode into ID.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("llamadoc: id must be string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Upload is the result of indexing a document.
type Upload struct {
	UploadID string `json:"upload_id"`
	Message  string `json:"message"`
}

// Answer is the backend's answer to a question. The wire form is either a
// bare string or an object; both decode into the same shape.
type Answer struct {
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
	Summary string `json:"summary"`
}

// UnmarshalJSON decodes a string or {text, html, summary, paragraphs}.
func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Answer{Text: s, Summary: Summarize(s)}
		return nil
	}
	var raw struct {
		Text    any    `json:"text"`
		HTML    string `json:"html"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	text := ""
	switch v := raw.Text.(type) {
	case string:
		text = v
	case nil:
	default:
		text = fmt.Sprint(v)
	}
	*a = Answer{Text: text, HTML: raw.HTML, Summary: raw.Summary}
	if a.Summary == "" {
		a.Summary = Summarize(text)
	}
	return nil
}

// Summarize returns the first non-empty paragraph of text.
func Summarize(text string) string {
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			return p
		}
	}
	return strings.TrimSpace(text)
}

// Source is a retrieved passage supporting an answer.
type Source struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Page returns the page number from the metadata, or -1.
func (s Source) Page() int {
	switch v := s.Metadata["page"].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return -1
}

// QueryResult is the response to a question.
type QueryResult struct {
	Answer  Answer   `json:"answer"`
	Sources []Source `json:"sources"`
}

// SpeechRequest asks the backend to synthesize text.
type SpeechRequest struct {
	Text      string  `json:"text"`
	VoiceType string  `json:"voice_type"`
	Rate      int     `json:"rate"`
	Volume    float64 `json:"volume"`
}

// HistoryRecord is one completed turn to persist.
type HistoryRecord struct {
	UploadID       string
	Question       string
	Answer         string
	Summary        string
	VoiceType      string
	Rate           int
	Muted          bool
	QuestionAudio  *audioio.Clip
	AnswerAudioURL string
}

// HistoryEntry is a persisted turn as returned by the backend.
type HistoryEntry struct {
	ID                ID        `json:"id"`
	UploadID          string    `json:"upload_id"`
	Question          string    `json:"question"`
	Answer            string    `json:"answer"`
	Summary           string    `json:"summary"`
	QuestionAudioPath string    `json:"question_audio_path"`
	AnswerAudioPath   string    `json:"answer_audio_path"`
	CreatedAt         Timestamp `json:"created_at"`
	VoiceType         string    `json:"voice_type"`
	AudioSpeed        int       `json:"audio_speed"`
	IsMuted           bool      `json:"is_muted"`
}

// Timestamp decodes ISO-8601 times with or without a zone. Times without
// a zone are taken as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, *s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("llamadoc: unrecognized timestamp %q", *s)
}

// MarshalJSON writes RFC 3339, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
