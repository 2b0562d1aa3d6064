package audioio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// startGrace is how long Start waits for a device tool to fail before
// declaring the device open.
const startGrace = 250 * time.Millisecond

// command is a device tool invocation.
type command struct {
	name string
	args []string
	env  []string
}

func recordCommand(backend Backend, cfg Config) command {
	rate := strconv.Itoa(cfg.SampleRate)
	ch := strconv.Itoa(cfg.Channels)
	switch backend {
	case BackendSox:
		c := command{name: "rec", args: []string{"-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-r", rate, "-c", ch, "-"}}
		if cfg.Device != "" {
			c.env = []string{"AUDIODEV=" + cfg.Device}
		}
		return c
	default:
		dev := cfg.Device
		if dev == "" {
			dev = "default"
		}
		return command{name: "arecord", args: []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", ch, "-D", dev}}
	}
}

func playCommand(backend Backend, cfg Config) command {
	rate := strconv.Itoa(cfg.SampleRate)
	ch := strconv.Itoa(cfg.Channels)
	switch backend {
	case BackendSox:
		c := command{name: "play", args: []string{"-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-r", rate, "-c", ch, "-"}}
		if cfg.Device != "" {
			c.env = []string{"AUDIODEV=" + cfg.Device}
		}
		return c
	default:
		dev := cfg.Device
		if dev == "" {
			dev = "default"
		}
		return command{name: "aplay", args: []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", ch, "-D", dev, "-"}}
	}
}

// classifyExit maps a tool failure onto the package's device errors.
func classifyExit(name string, err error, stderr string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s is not installed", ErrBackendUnavailable, name)
	}
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "not authorized"):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.TrimSpace(stderr))
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "no such device"),
		strings.Contains(msg, "audio open error"), strings.Contains(msg, "can't open"),
		strings.Contains(msg, "cannot open"), strings.Contains(msg, "no default audio device"):
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, strings.TrimSpace(stderr))
	}
	if s := strings.TrimSpace(stderr); s != "" {
		return fmt.Errorf("audioio: %s: %w: %s", name, err, s)
	}
	return fmt.Errorf("audioio: %s: %w", name, err)
}

// CommandSource captures raw PCM from the stdout of a recording tool.
type CommandSource struct {
	cfg     Config
	logger  *slog.Logger
	backend string
	cmd     command

	mu       sync.Mutex
	running  bool
	closed   bool
	stopping bool
	cancel   context.CancelFunc
	streamCh chan AudioChunk
	done     chan struct{}
	exitErr  error

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// NewCommandSource creates a source that runs name with args and reads
// little-endian PCM16 from its stdout in cfg's format.
func NewCommandSource(cfg Config, logger *slog.Logger, name string, args ...string) *CommandSource {
	return newCommandSource(cfg, logger, "command", command{name: name, args: args})
}

func newCommandSource(cfg Config, logger *slog.Logger, backend string, cmd command) *CommandSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSource{
		cfg:     cfg,
		logger:  logger.With("component", "audioio.source", "backend", backend),
		backend: backend,
		cmd:     cmd,
	}
}

// Start launches the tool. If it exits within a short grace period the
// classified exit error is returned.
func (s *CommandSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return io.ErrClosedPipe
	}
	if s.running {
		s.mu.Unlock()
		return nil
	}

	cctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cctx, s.cmd.name, s.cmd.args...)
	cmd.Env = append(os.Environ(), s.cmd.env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		s.mu.Unlock()
		return err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		s.mu.Unlock()
		return classifyExit(s.cmd.name, err, "")
	}

	s.running = true
	s.stopping = false
	s.exitErr = nil
	s.cancel = cancel
	s.streamCh = make(chan AudioChunk, 64)
	s.done = make(chan struct{})
	done := s.done
	go s.readLoop(cmd, stdout, &stderr, s.streamCh, done)
	s.mu.Unlock()

	s.logger.Debug("audio source started", "cmd", s.cmd.name, "sample_rate", s.cfg.SampleRate)

	select {
	case <-done:
		s.mu.Lock()
		err := s.exitErr
		s.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("%w: %s exited immediately", ErrDeviceNotFound, s.cmd.name)
		}
		return err
	case <-time.After(startGrace):
		return nil
	case <-ctx.Done():
		s.Stop()
		return ctx.Err()
	}
}

func (s *CommandSource) readLoop(cmd *exec.Cmd, stdout io.Reader, stderr *bytes.Buffer, out chan AudioChunk, done chan struct{}) {
	buf := make([]byte, s.cfg.BufferBytes())
	for {
		n, err := io.ReadFull(stdout, buf)
		if n >= 2 {
			var chunk AudioChunk
			chunk.FromBytes(buf[:n-n%2], s.cfg.SampleRate, s.cfg.Channels)
			select {
			case out <- chunk:
				s.chunksRead.Add(1)
				s.samplesRead.Add(int64(len(chunk.Samples)))
			default:
				s.overruns.Add(1)
			}
		}
		if err != nil {
			break
		}
	}

	werr := cmd.Wait()

	s.mu.Lock()
	if !s.stopping {
		s.exitErr = classifyExit(s.cmd.name, werr, stderr.String())
	}
	s.running = false
	s.mu.Unlock()

	close(out)
	close(done)
}

// Stop kills the tool and waits for the read loop to drain.
func (s *CommandSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Debug("audio source stopped")
	return nil
}

// Err returns the error the tool exited with, if it stopped on its own.
func (s *CommandSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

// Read reads the next audio chunk.
func (s *CommandSource) Read(ctx context.Context) (AudioChunk, error) {
	return readChunk(ctx, s.Stream())
}

// Stream returns the audio chunk channel.
func (s *CommandSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *CommandSource) Config() Config { return s.cfg }

// Name returns the backend name.
func (s *CommandSource) Name() string { return s.backend }

// Close stops the source permanently.
func (s *CommandSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns source statistics.
func (s *CommandSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     s.backend,
	}
}

var _ SourceWithStats = (*CommandSource)(nil)

// CommandSink plays raw PCM by writing it to the stdin of a playback tool.
// Each Start spawns a new process; Flush closes stdin and waits for the
// tool to finish playing.
type CommandSink struct {
	cfg     Config
	logger  *slog.Logger
	backend string
	cmd     command

	mu      sync.Mutex
	running bool
	closed  bool
	proc    *exec.Cmd
	stdin   io.WriteCloser
	stderr  *bytes.Buffer
	cancel  context.CancelFunc
	exited  chan struct{}
	exitErr error

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
}

// NewCommandSink creates a sink that pipes PCM16 into name's stdin.
func NewCommandSink(cfg Config, logger *slog.Logger, name string, args ...string) *CommandSink {
	return newCommandSink(cfg, logger, "command", command{name: name, args: args})
}

func newCommandSink(cfg Config, logger *slog.Logger, backend string, cmd command) *CommandSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSink{
		cfg:     cfg,
		logger:  logger.With("component", "audioio.sink", "backend", backend),
		backend: backend,
		cmd:     cmd,
	}
}

// Start spawns the playback tool.
func (s *CommandSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	cctx, cancel := context.WithCancel(ctx)
	proc := exec.CommandContext(cctx, s.cmd.name, s.cmd.args...)
	proc.Env = append(os.Environ(), s.cmd.env...)
	var stderr bytes.Buffer
	proc.Stderr = &stderr
	stdin, err := proc.StdinPipe()
	if err != nil {
		cancel()
		return err
	}
	if err := proc.Start(); err != nil {
		cancel()
		return classifyExit(s.cmd.name, err, "")
	}

	s.proc, s.stdin, s.stderr, s.cancel = proc, stdin, &stderr, cancel
	s.exited = make(chan struct{})
	s.running = true
	exited := s.exited
	go func() {
		err := proc.Wait()
		s.mu.Lock()
		s.exitErr = classifyExit(s.cmd.name, err, stderr.String())
		s.running = false
		s.mu.Unlock()
		close(exited)
	}()
	return nil
}

// Write sends a chunk to the tool.
func (s *CommandSink) Write(ctx context.Context, chunk AudioChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	stdin, running := s.stdin, s.running
	s.mu.Unlock()
	if !running || stdin == nil {
		return io.ErrClosedPipe
	}
	if _, err := stdin.Write(chunk.Bytes()); err != nil {
		return fmt.Errorf("audioio: write %s: %w", s.cmd.name, err)
	}
	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))
	return nil
}

// Flush closes the tool's stdin and waits for it to finish playing.
func (s *CommandSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	stdin, exited := s.stdin, s.exited
	s.stdin = nil
	s.mu.Unlock()
	if exited == nil {
		return nil
	}
	if stdin != nil {
		stdin.Close()
	}
	select {
	case <-exited:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.exitErr
	case <-ctx.Done():
		s.Clear()
		return ctx.Err()
	}
}

// Clear kills the tool, dropping anything it had buffered.
func (s *CommandSink) Clear() error {
	s.mu.Lock()
	cancel, exited := s.cancel, s.exited
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-exited
	return nil
}

// Stop is Clear.
func (s *CommandSink) Stop() error { return s.Clear() }

// Config returns the audio configuration.
func (s *CommandSink) Config() Config { return s.cfg }

// Name returns the backend name.
func (s *CommandSink) Name() string { return s.backend }

// Close stops the sink permanently.
func (s *CommandSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Clear()
}

// Stats returns sink statistics.
func (s *CommandSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SinkStats{
		ChunksWritten:  s.chunksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Running:        running,
		Backend:        s.backend,
	}
}

var _ SinkWithStats = (*CommandSink)(nil)
