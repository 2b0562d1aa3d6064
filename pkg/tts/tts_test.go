package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/llamadoc-voice/pkg/llamadoc"
	"github.com/teslashibe/llamadoc-voice/pkg/tts"
)

func TestMock_Synthesize(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	v := tts.Voice{Type: "female", Rate: 200, Volume: 0.5}
	first, err := mock.Synthesize(ctx, "Hello world", v)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	second, _ := mock.Synthesize(ctx, "Again", v)

	if first.AudioURL == second.AudioURL {
		t.Errorf("expected distinct audio URLs, both %q", first.AudioURL)
	}
	if first.CharCount != 11 {
		t.Errorf("expected 11 chars, got %d", first.CharCount)
	}
	if mock.CallCount("Synthesize") != 2 {
		t.Errorf("expected 2 calls, got %d", mock.CallCount("Synthesize"))
	}
	if got := mock.LastCall().Voice; got != v {
		t.Errorf("voice not recorded: %+v", got)
	}
}

func TestMock_WithError(t *testing.T) {
	expectedErr := errors.New("test error")
	mock := tts.WithError(expectedErr)

	_, err := mock.Synthesize(context.Background(), "test", tts.Voice{})
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}
}

func TestMock_WithLatency(t *testing.T) {
	mock := tts.WithLatency(tts.NewMock(), 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := mock.Synthesize(ctx, "slow", tts.Voice{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestChain_FallbackOnError(t *testing.T) {
	failing := tts.WithError(errors.New("provider 1 failed"))
	working := tts.NewMock()

	chain, err := tts.NewChain(failing, working)
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}

	res, err := chain.Synthesize(context.Background(), "Hello", tts.Voice{Type: "male"})
	if err != nil {
		t.Fatalf("chain should fall back: %v", err)
	}
	if res.Provider != "mock" {
		t.Errorf("expected mock provider, got %q", res.Provider)
	}
	if working.LastCall().Voice.Type != "male" {
		t.Error("voice not passed to fallback provider")
	}
}

func TestChain_AllFail(t *testing.T) {
	chain, _ := tts.NewChain(
		tts.WithError(errors.New("error 1")),
		tts.WithError(errors.New("error 2")),
	)

	_, err := chain.Synthesize(context.Background(), "Hello", tts.Voice{})
	var chainErr *tts.ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("expected ChainError, got %T", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("expected 2 errors, got %d", len(chainErr.Errors))
	}
}

func TestChain_PrefersLastWorkingProvider(t *testing.T) {
	failing := tts.WithError(errors.New("backend /tts down"))
	working := tts.NewMock()
	chain, _ := tts.NewChain(failing, working)

	for i := 0; i < 3; i++ {
		if _, err := chain.Synthesize(context.Background(), "Hello", tts.Voice{}); err != nil {
			t.Fatalf("synthesis %d failed: %v", i, err)
		}
	}
	if n := failing.CallCount("Synthesize"); n != 1 {
		t.Errorf("failing provider should be tried once, got %d", n)
	}
	if n := working.CallCount("Synthesize"); n != 3 {
		t.Errorf("expected 3 calls to working provider, got %d", n)
	}
}

func TestChain_RejectsEmptyText(t *testing.T) {
	mock := tts.NewMock()
	chain, _ := tts.NewChain(mock)
	if _, err := chain.Synthesize(context.Background(), "  ", tts.Voice{}); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
	if mock.CallCount("Synthesize") != 0 {
		t.Error("provider should not be called for empty text")
	}
}

func TestChain_Empty(t *testing.T) {
	if _, err := tts.NewChain(); !errors.Is(err, tts.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestProviderError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := tts.WrapError("openai", underlying)

	if !errors.Is(err, underlying) {
		t.Error("should unwrap to underlying error")
	}
	if !strings.Contains(err.Error(), "openai") {
		t.Errorf("error should name provider: %v", err)
	}
	if tts.WrapError("x", nil) != nil {
		t.Error("nil error should stay nil")
	}
}

func TestVoice_Speed(t *testing.T) {
	tests := []struct {
		rate int
		want float64
	}{
		{0, 1},
		{180, 1},
		{360, 2},
		{45, 0.25},
		{2000, 4},
	}
	for _, tt := range tests {
		got := tts.Voice{Rate: tt.rate}.Speed(0.25, 4)
		if got != tt.want {
			t.Errorf("Speed(rate=%d) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

type fakeSpeech struct {
	req llamadoc.SpeechRequest
	err error
}

func (f *fakeSpeech) SynthesizeSpeech(ctx context.Context, req llamadoc.SpeechRequest) (string, error) {
	f.req = req
	if f.err != nil {
		return "", f.err
	}
	return "/uploads/audio/a.wav", nil
}

func TestBackend_Synthesize(t *testing.T) {
	fake := &fakeSpeech{}
	b := tts.NewBackend(fake)

	res, err := b.Synthesize(context.Background(), "Paris", tts.Voice{Type: "female", Rate: 220, Volume: 0.4})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if res.AudioURL != "/uploads/audio/a.wav" {
		t.Errorf("unexpected url %q", res.AudioURL)
	}
	want := llamadoc.SpeechRequest{Text: "Paris", VoiceType: "female", Rate: 220, Volume: 0.4}
	if fake.req != want {
		t.Errorf("request = %+v, want %+v", fake.req, want)
	}

	if _, err := b.Synthesize(context.Background(), "   ", tts.Voice{}); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestNewOpenAI_NoAPIKey(t *testing.T) {
	if _, err := tts.NewOpenAI(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestOpenAI_Synthesize(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFFfake"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p, err := tts.NewOpenAI(
		tts.WithAPIKey("sk-test"),
		tts.WithBaseURL(srv.URL+"/v1"),
		tts.WithCacheDir(dir),
	)
	if err != nil {
		t.Fatalf("NewOpenAI failed: %v", err)
	}

	res, err := p.Synthesize(context.Background(), "Hello", tts.Voice{Type: "male", Rate: 360})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if got["voice"] != "onyx" {
		t.Errorf("voice = %v, want onyx", got["voice"])
	}
	if got["speed"] != 2.0 {
		t.Errorf("speed = %v, want 2", got["speed"])
	}
	if got["response_format"] != "wav" {
		t.Errorf("format = %v, want wav", got["response_format"])
	}

	u, err := url.Parse(res.AudioURL)
	if err != nil || u.Scheme != "file" {
		t.Fatalf("expected file URL, got %q", res.AudioURL)
	}
	data, err := os.ReadFile(u.Path)
	if err != nil {
		t.Fatalf("read synthesized file: %v", err)
	}
	if string(data) != "RIFFfake" {
		t.Errorf("unexpected file content %q", data)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Paris", "Paris"},
		{"inline tags", "The capital is <strong>Paris</strong>.", "The capital is Paris."},
		{"paragraphs", "<p>One.</p><p>Two.</p>", "One. Two."},
		{"list", "<ul><li>a</li><li>b</li></ul>", "a b"},
		{"script skipped", "<p>x</p><script>alert(1)</script>", "x"},
		{"entities", "Tom &amp; Jerry", "Tom & Jerry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tts.PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSpeakable(t *testing.T) {
	if got := tts.Speakable("**Paris**", "<p><strong>Paris</strong></p>"); got != "Paris" {
		t.Errorf("html preferred: got %q", got)
	}
	if got := tts.Speakable("## Title\n**bold** text", ""); got != "Title bold text" {
		t.Errorf("markdown fallback: got %q", got)
	}
}
