package stt_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
	"github.com/teslashibe/llamadoc-voice/pkg/stt"
)

var clip = audioio.Clip{Data: []byte("OggS-audio"), MimeType: audioio.MimeOgg}

type fakeVoiceInput struct {
	text string
	err  error
}

func (f fakeVoiceInput) TranscribeAudio(ctx context.Context, c audioio.Clip) (string, error) {
	return f.text, f.err
}

func TestBackend_PassesThrough(t *testing.T) {
	b := stt.NewBackend(fakeVoiceInput{text: "what is the capital"})
	got, err := b.Transcribe(context.Background(), clip)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got != "what is the capital" {
		t.Errorf("got %q", got)
	}

	unavailable := apperr.Wrap(apperr.KindUnavailable, "voice-input", errors.New("501"))
	b = stt.NewBackend(fakeVoiceInput{err: unavailable})
	if _, err := b.Transcribe(context.Background(), clip); !apperr.IsKind(err, apperr.KindUnavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}
}

func TestNewOpenAI_NoAPIKey(t *testing.T) {
	if _, err := stt.NewOpenAI(); !errors.Is(err, stt.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func whisperServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			data, _ := io.ReadAll(f)
			if string(data) != string(clip.Data) {
				t.Errorf("file content = %q", data)
			}
			if hdr.Filename != "question.ogg" {
				t.Errorf("filename = %q", hdr.Filename)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Transcribe(t *testing.T) {
	srv := whisperServer(t, http.StatusOK, `{"text":" What is the capital of France? "}`)
	o, err := stt.NewOpenAI(stt.WithAPIKey("sk-test"), stt.WithBaseURL(srv.URL+"/v1"))
	if err != nil {
		t.Fatalf("NewOpenAI failed: %v", err)
	}
	got, err := o.Transcribe(context.Background(), clip)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got != "What is the capital of France?" {
		t.Errorf("got %q", got)
	}
}

func TestOpenAI_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperr.Kind
	}{
		{"empty transcript", http.StatusOK, `{"text":"  "}`, apperr.KindNoInput},
		{"bad audio", http.StatusBadRequest, `{"error":{"message":"invalid file","type":"invalid_request_error"}}`, apperr.KindNoInput},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, apperr.KindUnavailable},
		{"server", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, apperr.KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := whisperServer(t, tt.status, tt.body)
			o, _ := stt.NewOpenAI(stt.WithAPIKey("sk-test"), stt.WithBaseURL(srv.URL+"/v1"))
			_, err := o.Transcribe(context.Background(), clip)
			if got := apperr.KindOf(err); got != tt.kind {
				t.Errorf("kind = %v, want %v (err %v)", got, tt.kind, err)
			}
		})
	}
}

func TestOpenAI_EmptyClip(t *testing.T) {
	o, _ := stt.NewOpenAI(stt.WithAPIKey("sk-test"))
	if _, err := o.Transcribe(context.Background(), audioio.Clip{}); !errors.Is(err, apperr.ErrNoSpeech) {
		t.Errorf("expected ErrNoSpeech, got %v", err)
	}
}

func TestMock(t *testing.T) {
	m := stt.NewMock("hello")
	got, _ := m.Transcribe(context.Background(), clip)
	if got != "hello" || m.CallCount() != 1 {
		t.Errorf("got %q after %d calls", got, m.CallCount())
	}
}
