// Package audioio opens the microphone and speaker and converts between
// PCM and the clip formats the LlamaDoc backend accepts.
//
// Devices are driven through command-line tools (arecord/aplay or SoX
// rec/play) so no cgo audio binding is needed. The mock backend serves
// tests and headless machines. Captured PCM is packed into a Clip as WAV
// or Ogg/Opus for upload.
package audioio

import (
	"fmt"
	"time"
)

// Backend names a device driver.
type Backend string

const (
	BackendAuto Backend = "auto"
	BackendALSA Backend = "alsa"
	BackendSox  Backend = "sox"
	BackendMock Backend = "mock"
)

// Config describes the PCM stream exchanged with a device.
type Config struct {
	Backend    Backend `yaml:"backend" json:"backend"`
	SampleRate int     `yaml:"sample_rate" json:"sample_rate"`
	Channels   int     `yaml:"channels" json:"channels"`

	// BufferDuration is the length of each chunk read from the microphone.
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is "plughw:1,0" style for ALSA and the AUDIODEV value for
	// SoX. Empty means the system default.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig is 16kHz mono in 20ms chunks, the shape speech
// recognizers expect.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

func (c *Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("audioio: sample rate %d is not positive", c.SampleRate)
	case c.Channels <= 0:
		return fmt.Errorf("audioio: channel count %d is not positive", c.Channels)
	case c.BufferDuration <= 0:
		return fmt.Errorf("audioio: buffer duration %v is not positive", c.BufferDuration)
	}
	return nil
}

// BufferSize is the number of frames per chunk.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes is the byte size of one interleaved PCM16 chunk.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
