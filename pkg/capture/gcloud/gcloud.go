// Package gcloud is a live speech recognition mechanism backed by Google
// Cloud Speech-to-Text.
//
// Microphone audio is streamed as LINEAR16 in single-utterance mode, so
// the service ends the session when the speaker pauses. The recognizer can
// also transcribe an already-recorded clip, which lets a failed server
// transcription fall back without asking the user to repeat the question.
package gcloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
	"github.com/teslashibe/llamadoc-voice/pkg/capture"
)

const opRecognize = "recognize"

// Config holds recognizer configuration.
type Config struct {
	// Language is a BCP-47 code such as "en-US".
	Language string

	// CredentialsFile is a service account JSON file. Empty uses
	// Application Default Credentials.
	CredentialsFile string

	// AccessToken authenticates with a pre-issued OAuth2 token instead.
	AccessToken string

	// MaxDuration caps one live session.
	MaxDuration time.Duration

	// OggSampleRate is the rate recorded Ogg/Opus clips were encoded at.
	OggSampleRate int

	Logger *slog.Logger
}

// Option configures a Recognizer.
type Option func(*Config)

// WithLanguage sets the recognition language.
func WithLanguage(lang string) Option {
	return func(c *Config) {
		c.Language = lang
	}
}

// WithCredentialsFile authenticates with a service account file.
func WithCredentialsFile(path string) Option {
	return func(c *Config) {
		c.CredentialsFile = path
	}
}

// WithAccessToken authenticates with a static OAuth2 access token.
func WithAccessToken(token string) Option {
	return func(c *Config) {
		c.AccessToken = token
	}
}

// WithMaxDuration caps a live session.
func WithMaxDuration(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDuration = d
	}
}

// WithOggSampleRate sets the rate of recorded Ogg/Opus clips.
func WithOggSampleRate(rate int) Option {
	return func(c *Config) {
		c.OggSampleRate = rate
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Language:      "en-US",
		MaxDuration:   capture.DefaultMaxDuration,
		OggSampleRate: 16000,
		Logger:        slog.Default(),
	}
}

// ClientOptions returns the Google API options for cfg's credentials.
func (c *Config) ClientOptions() []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case c.AccessToken != "":
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.AccessToken})))
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	return opts
}

// Recognizer implements capture.Mechanism and capture.ClipRecognizer.
type Recognizer struct {
	client    *speech.Client
	newSource capture.SourceFactory
	cfg       *Config
	logger    *slog.Logger
}

// New dials the Speech-to-Text service. newSource opens the microphone
// for live sessions; it may be nil when only clips are recognized.
func New(ctx context.Context, newSource capture.SourceFactory, opts ...Option) (*Recognizer, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := speech.NewClient(ctx, cfg.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("gcloud: create speech client: %w", err)
	}
	return &Recognizer{
		client:    client,
		newSource: newSource,
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "capture.gcloud"),
	}, nil
}

// Close releases the gRPC connection.
func (r *Recognizer) Close() error {
	return r.client.Close()
}

// Name implements capture.Mechanism.
func (r *Recognizer) Name() string { return "gcloud" }

// Available implements capture.Mechanism.
func (r *Recognizer) Available() bool {
	return r != nil && r.client != nil && r.newSource != nil
}

// KeepsOnStop implements capture.Mechanism. A stopped recognition is
// discarded.
func (r *Recognizer) KeepsOnStop() bool { return false }

// Begin implements capture.Mechanism.
func (r *Recognizer) Begin(ctx context.Context) (capture.Capture, error) {
	src, err := r.newSource()
	if err != nil {
		return nil, capture.DeviceError(err)
	}
	if err := src.Start(ctx); err != nil {
		src.Close()
		return nil, capture.DeviceError(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := r.client.StreamingRecognize(ctx)
	if err != nil {
		cancel()
		src.Close()
		return nil, classify(err)
	}

	audioCfg := src.Config()
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:          speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:   int32(audioCfg.SampleRate),
					AudioChannelCount: int32(audioCfg.Channels),
					LanguageCode:      r.cfg.Language,
				},
				SingleUtterance: true,
			},
		},
	}); err != nil {
		cancel()
		src.Close()
		return nil, classify(err)
	}

	lc := &liveCapture{
		src:    src,
		stream: stream,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: r.logger,
	}
	go lc.send(r.cfg.MaxDuration)
	go lc.receive()
	return lc, nil
}

type liveCapture struct {
	src    audioio.Source
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger

	mu      sync.Mutex
	res     capture.Result
	err     error
	aborted bool
}

// send streams microphone audio until the source ends or the cap is hit.
func (lc *liveCapture) send(maxDuration time.Duration) {
	timer := time.AfterFunc(maxDuration, func() { lc.src.Stop() })
	defer timer.Stop()

	for chunk := range lc.src.Stream() {
		err := lc.stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: chunk.Bytes(),
			},
		})
		if err != nil {
			lc.logger.Debug("send audio failed", "error", err)
			lc.src.Stop()
			break
		}
	}
	if err := lc.stream.CloseSend(); err != nil {
		lc.logger.Debug("close send failed", "error", err)
	}
}

// receive collects final results until the service closes the stream.
func (lc *liveCapture) receive() {
	defer close(lc.done)
	defer lc.src.Close()
	defer lc.cancel()

	var best capture.Transcript
	var parts []string
	for {
		resp, err := lc.stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			lc.finish(capture.Result{}, classify(err))
			return
		}
		if resp.SpeechEventType == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
			lc.src.Stop()
		}
		for _, result := range resp.Results {
			if !result.IsFinal || len(result.Alternatives) == 0 {
				continue
			}
			alt := result.Alternatives[0]
			parts = append(parts, strings.TrimSpace(alt.Transcript))
			best.Confidence = max(best.Confidence, float64(alt.Confidence))
		}
	}

	best.Text = strings.TrimSpace(strings.Join(parts, " "))
	if best.Text == "" {
		lc.finish(capture.Result{}, apperr.ErrNoSpeech)
		return
	}
	lc.finish(capture.TranscriptResult(best.Text, best.Confidence), nil)
}

func (lc *liveCapture) finish(res capture.Result, err error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.res, lc.err = res, err
}

// Wait implements capture.Capture.
func (lc *liveCapture) Wait(ctx context.Context) (capture.Result, error) {
	select {
	case <-lc.done:
	case <-ctx.Done():
		return capture.Result{}, ctx.Err()
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.aborted {
		return capture.Result{}, context.Canceled
	}
	return lc.res, lc.err
}

// Stop implements capture.Capture by ending the audio; results already
// in flight are still returned.
func (lc *liveCapture) Stop() {
	lc.src.Stop()
}

// Abort implements capture.Capture.
func (lc *liveCapture) Abort() {
	lc.mu.Lock()
	lc.aborted = true
	lc.mu.Unlock()
	lc.cancel()
	lc.src.Stop()
	<-lc.done
}

// RecognizeClip implements capture.ClipRecognizer.
func (r *Recognizer) RecognizeClip(ctx context.Context, clip audioio.Clip) (capture.Transcript, error) {
	req, err := r.clipRequest(clip)
	if err != nil {
		return capture.Transcript{}, err
	}
	resp, err := r.client.Recognize(ctx, req)
	if err != nil {
		return capture.Transcript{}, classify(err)
	}
	t := bestTranscript(resp.Results)
	if t.Text == "" {
		return capture.Transcript{}, apperr.ErrNoSpeech
	}
	r.logger.Debug("clip recognized", "chars", len(t.Text), "confidence", t.Confidence)
	return t, nil
}

// clipRequest builds a recognition request for a recorded clip. WAV is
// sent as mono LINEAR16.
func (r *Recognizer) clipRequest(clip audioio.Clip) (*speechpb.RecognizeRequest, error) {
	if clip.Empty() {
		return nil, apperr.ErrNoSpeech
	}
	cfg := &speechpb.RecognitionConfig{LanguageCode: r.cfg.Language}
	data := clip.Data

	switch clip.Extension() {
	case ".ogg":
		cfg.Encoding = speechpb.RecognitionConfig_OGG_OPUS
		cfg.SampleRateHertz = int32(r.cfg.OggSampleRate)
	case ".wav":
		pcm, err := audioio.DecodeWAV(clip.Data)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindDecode, opRecognize, err)
		}
		cfg.Encoding = speechpb.RecognitionConfig_LINEAR16
		cfg.SampleRateHertz = int32(pcm.SampleRate)
		data = audioio.SamplesToBytes(audioio.DownmixToMono(pcm.Samples, pcm.Channels))
	default:
		return nil, apperr.Wrap(apperr.KindDecode, opRecognize, fmt.Errorf("unsupported clip type %q", clip.MimeType))
	}

	return &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	}, nil
}

func bestTranscript(results []*speechpb.SpeechRecognitionResult) capture.Transcript {
	var t capture.Transcript
	var parts []string
	for _, res := range results {
		if len(res.Alternatives) == 0 {
			continue
		}
		alt := res.Alternatives[0]
		parts = append(parts, strings.TrimSpace(alt.Transcript))
		t.Confidence = max(t.Confidence, float64(alt.Confidence))
	}
	t.Text = strings.TrimSpace(strings.Join(parts, " "))
	return t
}

// classify maps gRPC failures onto the error taxonomy. Credential and
// quota problems make the recognizer unavailable so callers fall back.
func classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unimplemented,
		codes.FailedPrecondition, codes.ResourceExhausted:
		return apperr.Wrap(apperr.KindUnavailable, opRecognize, err)
	case codes.InvalidArgument:
		return apperr.Wrap(apperr.KindDecode, opRecognize, err)
	case codes.DeadlineExceeded, codes.OutOfRange:
		return apperr.Wrap(apperr.KindNoInput, opRecognize, err)
	default:
		return apperr.Wrap(apperr.KindNetwork, opRecognize, err)
	}
}

var (
	_ capture.Mechanism      = (*Recognizer)(nil)
	_ capture.ClipRecognizer = (*Recognizer)(nil)
)
