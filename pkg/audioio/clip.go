package audioio

import (
	"fmt"
	"strings"
	"time"
)

// Format is a container format for recorded audio.
type Format string

const (
	FormatOgg Format = "ogg"
	FormatWAV Format = "wav"
)

// MIME types for recorded clips.
const (
	MimeOgg = "audio/ogg"
	MimeWAV = "audio/wav"
)

// Clip is an encoded audio recording ready to upload or store.
type Clip struct {
	Data     []byte
	MimeType string
	Duration time.Duration
}

// Empty reports whether the clip holds no audio.
func (c Clip) Empty() bool {
	return len(c.Data) == 0
}

// Extension returns the file extension for the clip's MIME type.
func (c Clip) Extension() string {
	switch {
	case strings.HasPrefix(c.MimeType, MimeOgg), strings.Contains(c.MimeType, "opus"):
		return ".ogg"
	case strings.HasPrefix(c.MimeType, "audio/webm"):
		return ".webm"
	case strings.HasPrefix(c.MimeType, "audio/mpeg"):
		return ".mp3"
	default:
		return ".wav"
	}
}

// Filename returns base with the clip's extension.
func (c Clip) Filename(base string) string {
	return base + c.Extension()
}

// EncodeClip packs PCM16 samples into a clip of the given format.
func EncodeClip(samples []int16, sampleRate, channels int, f Format) (Clip, error) {
	dur := time.Duration(0)
	if sampleRate > 0 && channels > 0 {
		dur = time.Duration(len(samples)) * time.Second / time.Duration(sampleRate*channels)
	}
	switch f {
	case FormatOgg:
		data, err := EncodeOggOpus(samples, sampleRate, channels)
		if err != nil {
			return Clip{}, err
		}
		return Clip{Data: data, MimeType: MimeOgg, Duration: dur}, nil
	case FormatWAV, "":
		return Clip{Data: EncodeWAV(samples, sampleRate, channels), MimeType: MimeWAV, Duration: dur}, nil
	default:
		return Clip{}, fmt.Errorf("audioio: unknown clip format %q", f)
	}
}
