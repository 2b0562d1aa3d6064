package audioio

import (
	"context"
	"errors"
	"io"
	"time"
)

// Device failures. The capture layer maps ErrPermissionDenied to a
// permission failure and the other two to an unavailable mechanism.
var (
	ErrPermissionDenied   = errors.New("audioio: permission denied")
	ErrDeviceNotFound     = errors.New("audioio: device not found")
	ErrBackendUnavailable = errors.New("audioio: backend unavailable")
)

// AudioChunk is a run of PCM16 samples, interleaved when Channels > 1.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes encodes the samples little-endian.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// FromBytes decodes little-endian PCM16 into c.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	*c = AudioChunk{Samples: BytesToSamples(data), SampleRate: sampleRate, Channels: channels}
}

// Duration is how long the chunk plays for.
func (c *AudioChunk) Duration() time.Duration {
	frames := c.SampleRate * c.Channels
	if frames == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(frames)
}

// Source is a microphone. Start reports device failures; after Stop the
// stream channel is closed and Read returns io.EOF.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Read(ctx context.Context) (AudioChunk, error)
	Stream() <-chan AudioChunk
	Config() Config
	Name() string
	io.Closer
}

// Sink is a speaker. Write may block while the device drains. Clear drops
// queued audio so a muted answer stops immediately.
type Sink interface {
	Start(ctx context.Context) error
	Stop() error
	Write(ctx context.Context, chunk AudioChunk) error
	Flush(ctx context.Context) error
	Clear() error
	Config() Config
	Name() string
	io.Closer
}

// SourceStats counts captured audio.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SinkStats counts played audio.
type SinkStats struct {
	ChunksWritten   int64  `json:"chunks_written"`
	SamplesWritten  int64  `json:"samples_written"`
	Running         bool   `json:"running"`
	Backend         string `json:"backend"`
	BufferedSamples int64  `json:"buffered_samples"`
}

type SourceWithStats interface {
	Source
	Stats() SourceStats
}

type SinkWithStats interface {
	Sink
	Stats() SinkStats
}

func readChunk(ctx context.Context, ch <-chan AudioChunk) (AudioChunk, error) {
	select {
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	}
}
