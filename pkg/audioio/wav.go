package audioio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// WAV errors.
var (
	// ErrNotWAV is returned when data has no RIFF/WAVE header.
	ErrNotWAV = errors.New("audioio: not a WAV file")

	// ErrUnsupportedWAV is returned for encodings other than 8/16-bit PCM.
	ErrUnsupportedWAV = errors.New("audioio: unsupported WAV encoding")
)

// PCM is decoded interleaved audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// EncodeWAV wraps PCM16 samples in a canonical 44-byte WAV header.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	dataLen := len(samples) * 2
	var buf bytes.Buffer
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(SamplesToBytes(samples))
	return buf.Bytes()
}

// DecodeWAV parses a PCM WAV file. Unknown chunks are skipped and a data
// chunk whose declared size overruns the file is clamped, which is what
// streaming encoders produce.
func DecodeWAV(data []byte) (PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, ErrNotWAV
	}

	var (
		format   uint16
		channels int
		rate     int
		bits     int
		haveFmt  bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return PCM{}, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedWAV)
			}
			format = binary.LittleEndian.Uint16(data[body:])
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			rate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return PCM{}, fmt.Errorf("%w: data before fmt", ErrUnsupportedWAV)
			}
			if format != 1 && format != 0xFFFE {
				return PCM{}, fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, format)
			}
			if channels <= 0 || rate <= 0 {
				return PCM{}, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedWAV, channels, rate)
			}
			raw := data[body : body+size]
			var samples []int16
			switch bits {
			case 16:
				samples = BytesToSamples(raw)
			case 8:
				samples = make([]int16, len(raw))
				for i, b := range raw {
					samples[i] = (int16(b) - 128) << 8
				}
			default:
				return PCM{}, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedWAV, bits)
			}
			return PCM{Samples: samples, SampleRate: rate, Channels: channels}, nil
		}

		pos = body + size + size%2
	}
	return PCM{}, fmt.Errorf("%w: no data chunk", ErrUnsupportedWAV)
}
