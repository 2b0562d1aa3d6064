package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
)

// Recorder defaults.
const (
	DefaultMaxDuration = 30 * time.Second

	// DefaultSilenceThreshold is the mean square energy below which a
	// whole recording counts as silence.
	DefaultSilenceThreshold = 1e-6
)

// SourceFactory opens a fresh microphone source per session.
type SourceFactory func() (audioio.Source, error)

// Recorder captures raw microphone audio for server transcription.
type Recorder struct {
	newSource   SourceFactory
	maxDuration time.Duration
	format      audioio.Format
	silence     float64
	logger      *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithMaxDuration caps a recording.
func WithMaxDuration(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.maxDuration = d
	}
}

// WithFormat selects the clip encoding.
func WithFormat(f audioio.Format) RecorderOption {
	return func(r *Recorder) {
		r.format = f
	}
}

// WithSilenceThreshold sets the energy below which a recording is treated
// as no input. Zero disables the check.
func WithSilenceThreshold(th float64) RecorderOption {
	return func(r *Recorder) {
		r.silence = th
	}
}

// WithRecorderLogger sets the logger.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder creates a recording mechanism.
func NewRecorder(newSource SourceFactory, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		newSource:   newSource,
		maxDuration: DefaultMaxDuration,
		format:      audioio.FormatOgg,
		silence:     DefaultSilenceThreshold,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "capture.recorder")
	return r
}

// Name implements Mechanism.
func (r *Recorder) Name() string { return "recorder" }

// Available implements Mechanism.
func (r *Recorder) Available() bool { return r.newSource != nil }

// KeepsOnStop implements Mechanism. Stopping a recording finalizes it.
func (r *Recorder) KeepsOnStop() bool { return true }

// Begin implements Mechanism.
func (r *Recorder) Begin(ctx context.Context) (Capture, error) {
	src, err := r.newSource()
	if err != nil {
		return nil, DeviceError(err)
	}
	if err := src.Start(ctx); err != nil {
		src.Close()
		return nil, DeviceError(err)
	}
	rec := &recording{
		r:    r,
		src:  src,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go rec.collect(ctx)
	r.logger.Debug("recording", "backend", src.Name(), "max", r.maxDuration)
	return rec, nil
}

// DeviceError maps microphone errors onto the error taxonomy.
func DeviceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, audioio.ErrPermissionDenied):
		return apperr.WrapMessage(apperr.KindPermission, opCapture, apperr.ErrMicrophoneDenied.Message, err)
	case errors.Is(err, audioio.ErrDeviceNotFound):
		return apperr.WrapMessage(apperr.KindUnavailable, opCapture, apperr.ErrNoMicrophone.Message, err)
	case apperr.KindOf(err) != apperr.KindUnknown:
		return err
	default:
		return apperr.Wrap(apperr.KindUnavailable, opCapture, err)
	}
}

type recording struct {
	r    *Recorder
	src  audioio.Source
	stop chan struct{}
	done chan struct{}

	once    sync.Once
	mu      sync.Mutex
	aborted bool
	res     Result
	err     error
}

func (rec *recording) collect(ctx context.Context) {
	defer close(rec.done)
	defer rec.src.Close()

	cfg := rec.src.Config()
	timer := time.NewTimer(rec.r.maxDuration)
	defer timer.Stop()

	var samples []int16
	stream := rec.src.Stream()
	ended := false
	for !ended {
		select {
		case chunk, ok := <-stream:
			if !ok {
				ended = true
				break
			}
			samples = append(samples, chunk.Samples...)
		case <-rec.stop:
			ended = true
		case <-timer.C:
			rec.r.logger.Debug("max duration reached")
			ended = true
		case <-ctx.Done():
			rec.finish(Result{}, ctx.Err())
			return
		}
	}

	rec.src.Stop()
	for chunk := range stream {
		samples = append(samples, chunk.Samples...)
	}

	if rec.isAborted() {
		rec.finish(Result{}, context.Canceled)
		return
	}
	if es, ok := rec.src.(interface{ Err() error }); ok && es.Err() != nil && len(samples) == 0 {
		rec.finish(Result{}, DeviceError(es.Err()))
		return
	}
	if len(samples) == 0 || (rec.r.silence > 0 && audioio.CalculateRMS(samples) < rec.r.silence) {
		rec.finish(Result{}, apperr.ErrNoSpeech)
		return
	}

	clip, err := audioio.EncodeClip(samples, cfg.SampleRate, cfg.Channels, rec.r.format)
	if err != nil {
		rec.finish(Result{}, apperr.Wrap(apperr.KindDecode, opCapture, err))
		return
	}
	rec.r.logger.Debug("recording finalized", "duration", clip.Duration, "bytes", len(clip.Data), "mime", clip.MimeType)
	rec.finish(AudioResult(clip), nil)
}

func (rec *recording) finish(res Result, err error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.res, rec.err = res, err
}

func (rec *recording) isAborted() bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.aborted
}

// Wait implements Capture.
func (rec *recording) Wait(ctx context.Context) (Result, error) {
	select {
	case <-rec.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.res, rec.err
}

// Stop implements Capture.
func (rec *recording) Stop() {
	rec.once.Do(func() { close(rec.stop) })
}

// Abort implements Capture.
func (rec *recording) Abort() {
	rec.mu.Lock()
	rec.aborted = true
	rec.mu.Unlock()
	rec.Stop()
	<-rec.done
}

var _ Mechanism = (*Recorder)(nil)
