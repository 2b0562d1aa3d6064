package audioio

import (
	"fmt"
	"log/slog"
	"os/exec"
)

var lookPath = exec.LookPath

// toolsFor lists the capture and playback tools a backend shells out to.
var toolsFor = map[Backend][2]string{
	BackendALSA: {"arecord", "aplay"},
	BackendSox:  {"rec", "play"},
}

// ResolveBackend turns BackendAuto into the first backend whose tools are
// installed, preferring ALSA. Auto never falls back to the mock: a machine
// without audio tools has no microphone as far as capture is concerned.
func ResolveBackend(b Backend) (Backend, error) {
	switch b {
	case BackendMock, BackendALSA, BackendSox:
		return b, nil
	case BackendAuto, "":
		for _, candidate := range []Backend{BackendALSA, BackendSox} {
			if _, err := lookPath(toolsFor[candidate][0]); err == nil {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("%w: neither arecord nor rec is installed", ErrBackendUnavailable)
	default:
		return "", fmt.Errorf("audioio: unknown backend %q", b)
	}
}

// AvailableBackends lists the mock plus every backend whose capture and
// playback tools are both installed.
func AvailableBackends() []Backend {
	out := []Backend{BackendMock}
	for _, b := range []Backend{BackendALSA, BackendSox} {
		_, recErr := lookPath(toolsFor[b][0])
		_, playErr := lookPath(toolsFor[b][1])
		if recErr == nil && playErr == nil {
			out = append(out, b)
		}
	}
	return out
}

func prepare(cfg Config, logger *slog.Logger) (Backend, *slog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return "", nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	b, err := ResolveBackend(cfg.Backend)
	return b, logger, err
}

// NewSource opens a microphone on the configured backend.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	b, logger, err := prepare(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("opening microphone", "backend", b, "sample_rate", cfg.SampleRate, "device", cfg.Device)
	if b == BackendMock {
		return NewMockSource(cfg, logger), nil
	}
	return newCommandSource(cfg, logger, string(b), recordCommand(b, cfg)), nil
}

// NewSink opens a speaker on the configured backend.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	b, logger, err := prepare(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("opening speaker", "backend", b, "sample_rate", cfg.SampleRate, "device", cfg.Device)
	if b == BackendMock {
		return NewMockSink(cfg, logger), nil
	}
	return newCommandSink(cfg, logger, string(b), playCommand(b, cfg)), nil
}
