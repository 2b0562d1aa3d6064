package gcloud

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code codes.Code
		kind apperr.Kind
	}{
		{codes.PermissionDenied, apperr.KindUnavailable},
		{codes.Unauthenticated, apperr.KindUnavailable},
		{codes.ResourceExhausted, apperr.KindUnavailable},
		{codes.InvalidArgument, apperr.KindDecode},
		{codes.DeadlineExceeded, apperr.KindNoInput},
		{codes.Unavailable, apperr.KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := classify(status.Error(tt.code, "x"))
			if got := apperr.KindOf(err); got != tt.kind {
				t.Errorf("kind = %v, want %v", got, tt.kind)
			}
		})
	}
	if err := classify(context.Canceled); !errors.Is(err, context.Canceled) {
		t.Errorf("cancellation should pass through, got %v", err)
	}
}

func TestClipRequest(t *testing.T) {
	r := &Recognizer{cfg: DefaultConfig()}

	stereo := []int16{100, 300, -100, -300}
	wav := audioio.Clip{Data: audioio.EncodeWAV(stereo, 8000, 2), MimeType: audioio.MimeWAV}
	req, err := r.clipRequest(wav)
	if err != nil {
		t.Fatalf("clipRequest failed: %v", err)
	}
	if req.Config.Encoding != speechpb.RecognitionConfig_LINEAR16 || req.Config.SampleRateHertz != 8000 {
		t.Errorf("unexpected config %+v", req.Config)
	}
	content := req.Audio.GetContent()
	if got := audioio.BytesToSamples(content); len(got) != 2 {
		t.Errorf("expected mono downmix, got %d samples", len(got))
	}

	ogg := audioio.Clip{Data: []byte("OggS"), MimeType: audioio.MimeOgg}
	req, err = r.clipRequest(ogg)
	if err != nil {
		t.Fatalf("clipRequest failed: %v", err)
	}
	if req.Config.Encoding != speechpb.RecognitionConfig_OGG_OPUS || req.Config.SampleRateHertz != 16000 {
		t.Errorf("unexpected config %+v", req.Config)
	}
	if req.Config.LanguageCode != "en-US" {
		t.Errorf("language = %q", req.Config.LanguageCode)
	}

	if _, err := r.clipRequest(audioio.Clip{}); !errors.Is(err, apperr.ErrNoSpeech) {
		t.Errorf("empty clip: got %v", err)
	}
	if _, err := r.clipRequest(audioio.Clip{Data: []byte("junk"), MimeType: audioio.MimeWAV}); !apperr.IsKind(err, apperr.KindDecode) {
		t.Errorf("bad wav: got %v", err)
	}
}

func TestBestTranscript(t *testing.T) {
	got := bestTranscript([]*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "what is ", Confidence: 0.8}}},
		{},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " the capital", Confidence: 0.9}}},
	})
	if got.Text != "what is the capital" {
		t.Errorf("text = %q", got.Text)
	}
	if got.Confidence < 0.89 {
		t.Errorf("confidence = %v", got.Confidence)
	}
}

func TestClientOptions(t *testing.T) {
	if n := len(DefaultConfig().ClientOptions()); n != 0 {
		t.Errorf("default should use ADC, got %d options", n)
	}
	cfg := DefaultConfig()
	cfg.AccessToken = "ya29.token"
	if n := len(cfg.ClientOptions()); n != 1 {
		t.Errorf("expected one option, got %d", n)
	}
}

func TestAvailable(t *testing.T) {
	var r *Recognizer
	if r.Available() {
		t.Error("nil recognizer is not available")
	}
	if (&Recognizer{cfg: DefaultConfig()}).Available() {
		t.Error("recognizer without client is not available")
	}
}
