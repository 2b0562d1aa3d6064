package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/teslashibe/llamadoc-voice/internal/httpc"
	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
)

const opPlayback = "playback"

// maxAudioBytes bounds a fetched audio file.
const maxAudioBytes = 64 << 20

// SinkFactory creates a fresh output device per playback.
type SinkFactory func() (audioio.Sink, error)

// SinkPlayer fetches WAV or Ogg/Opus audio and streams it to an
// audioio.Sink.
type SinkPlayer struct {
	newSink SinkFactory
	resolve func(string) string
	client  *http.Client
	logger  *slog.Logger
}

// SinkOption configures a SinkPlayer.
type SinkOption func(*SinkPlayer)

// WithResolver turns backend-relative references into absolute URLs.
func WithResolver(fn func(ref string) string) SinkOption {
	return func(p *SinkPlayer) {
		p.resolve = fn
	}
}

// WithHTTPClient sets the client used to fetch remote audio.
func WithHTTPClient(c *http.Client) SinkOption {
	return func(p *SinkPlayer) {
		p.client = c
	}
}

// WithSinkLogger sets the logger.
func WithSinkLogger(logger *slog.Logger) SinkOption {
	return func(p *SinkPlayer) {
		p.logger = logger
	}
}

// NewSinkPlayer creates a player that opens a sink from newSink for each
// playback.
func NewSinkPlayer(newSink SinkFactory, opts ...SinkOption) *SinkPlayer {
	p := &SinkPlayer{
		newSink: newSink,
		resolve: func(ref string) string { return ref },
		client:  httpc.Client,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "playback.sink")
	return p
}

// Open implements Player.
func (p *SinkPlayer) Open(ctx context.Context, ref string, volume float64) (Handle, error) {
	data, err := p.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	pcm, err := audioio.DecodeAudio(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDecode, opPlayback, err)
	}

	sink, err := p.newSink()
	if err != nil {
		return nil, apperr.WrapMessage(apperr.KindUnavailable, opPlayback, "No audio output available.", err)
	}
	cfg := sink.Config()

	samples := audioio.DownmixToMono(pcm.Samples, pcm.Channels)
	samples = audioio.Resample(samples, pcm.SampleRate, cfg.SampleRate)
	samples = audioio.ScaleVolume(samples, volume)
	if cfg.Channels > 1 {
		samples = upmix(samples, cfg.Channels)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := sink.Start(runCtx); err != nil {
		cancel()
		sink.Close()
		return nil, apperr.Wrap(apperr.KindDecode, opPlayback, err)
	}

	h := &sinkHandle{
		sink:   sink,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.run(runCtx, samples, cfg)
	p.logger.Debug("streaming", "ref", ref, "samples", len(samples), "rate", cfg.SampleRate)
	return h, nil
}

// fetch loads the bytes behind ref: http(s) URL, file:// URL, local path
// or backend-relative path.
func (p *SinkPlayer) fetch(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindDecode, opPlayback, err)
		}
		return readLocal(u.Path)
	}
	if _, err := os.Stat(ref); err == nil {
		return readLocal(ref)
	}

	abs := p.resolve(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, abs, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, opPlayback, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, opPlayback, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Wrap(apperr.KindNetwork, opPlayback, fmt.Errorf("fetch %s: HTTP %d", abs, resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, opPlayback, err)
	}
	return data, nil
}

func readLocal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDecode, opPlayback, err)
	}
	return data, nil
}

func upmix(mono []int16, channels int) []int16 {
	out := make([]int16, 0, len(mono)*channels)
	for _, s := range mono {
		for range channels {
			out = append(out, s)
		}
	}
	return out
}

type sinkHandle struct {
	sink   audioio.Sink
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	err     error
	stopped bool
}

func (h *sinkHandle) run(ctx context.Context, samples []int16, cfg audioio.Config) {
	defer close(h.done)
	defer h.sink.Close()

	step := cfg.BufferSize() * cfg.Channels
	if step <= 0 {
		step = len(samples)
	}
	for off := 0; off < len(samples); off += step {
		end := min(off+step, len(samples))
		chunk := audioio.AudioChunk{
			Samples:    samples[off:end],
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		}
		if err := h.sink.Write(ctx, chunk); err != nil {
			h.setErr(err)
			return
		}
	}
	if err := h.sink.Flush(ctx); err != nil {
		h.setErr(err)
	}
}

func (h *sinkHandle) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped || errors.Is(err, context.Canceled) {
		return
	}
	h.err = apperr.Wrap(apperr.KindDecode, opPlayback, err)
}

func (h *sinkHandle) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	h.sink.Clear()
	h.cancel()
}

func (h *sinkHandle) Done() <-chan struct{} {
	return h.done
}

func (h *sinkHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

var _ Player = (*SinkPlayer)(nil)
