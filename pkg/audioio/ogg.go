package audioio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

// opusFrameMs is the duration of each encoded Opus frame.
const opusFrameMs = 20

// Ogg granule positions always count 48 kHz samples.
const oggGranuleRate = 48000

func opusRate(rate int) bool {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	}
	return false
}

// EncodeOggOpus compresses PCM16 audio into an Ogg/Opus stream. Input at a
// rate Opus does not support is resampled to 16 kHz; more than two
// channels are downmixed to mono.
func EncodeOggOpus(samples []int16, sampleRate, channels int) ([]byte, error) {
	if channels > 2 {
		samples = DownmixToMono(samples, channels)
		channels = 1
	}
	if !opusRate(sampleRate) {
		if channels == 2 {
			samples = DownmixToMono(samples, 2)
			channels = 1
		}
		samples = Resample(samples, sampleRate, 16000)
		sampleRate = 16000
	}

	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("audioio: opus encoder: %w", err)
	}

	var buf bytes.Buffer
	w, err := oggwriter.NewWith(&buf, uint32(sampleRate), uint16(channels))
	if err != nil {
		return nil, fmt.Errorf("audioio: ogg writer: %w", err)
	}

	frame := sampleRate * opusFrameMs / 1000 * channels
	step := uint32(oggGranuleRate * opusFrameMs / 1000)
	packet := make([]byte, 4000)
	pcm := make([]int16, frame)

	var (
		seq uint16
		ts  uint32
	)
	for off := 0; off < len(samples); off += frame {
		n := copy(pcm, samples[off:min(off+frame, len(samples))])
		clear(pcm[n:])

		size, err := enc.Encode(pcm, packet)
		if err != nil {
			return nil, fmt.Errorf("audioio: opus encode: %w", err)
		}
		err = w.WriteRTP(&rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    111,
				SequenceNumber: seq,
				Timestamp:      ts,
			},
			Payload: append([]byte(nil), packet[:size]...),
		})
		if err != nil {
			return nil, fmt.Errorf("audioio: ogg write: %w", err)
		}
		seq++
		ts += step
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("audioio: ogg close: %w", err)
	}
	return buf.Bytes(), nil
}

// ErrNotOgg is returned when data does not start with an Ogg Opus header.
var ErrNotOgg = errors.New("audioio: not an Ogg Opus stream")

// oggChannels reads the channel count from the OpusHead packet on the
// first Ogg page.
func oggChannels(data []byte) (int, error) {
	if len(data) < 27 || string(data[:4]) != "OggS" {
		return 0, ErrNotOgg
	}
	body := 27 + int(data[26])
	if len(data) < body+10 || string(data[body:body+8]) != "OpusHead" {
		return 0, ErrNotOgg
	}
	ch := int(data[body+9])
	if ch < 1 || ch > 2 {
		return 0, fmt.Errorf("%w: %d channels", ErrNotOgg, ch)
	}
	return ch, nil
}

// DecodeOggOpus decodes an Ogg/Opus stream, such as a recorded question
// clip, to 48 kHz PCM16.
func DecodeOggOpus(data []byte) (PCM, error) {
	channels, err := oggChannels(data)
	if err != nil {
		return PCM{}, err
	}
	s, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("audioio: opus stream: %w", err)
	}
	defer s.Close()

	// 120 ms is the longest Opus packet.
	buf := make([]int16, oggGranuleRate*120/1000*channels)
	var out []int16
	for {
		n, err := s.Read(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PCM{}, fmt.Errorf("audioio: opus decode: %w", err)
		}
		out = append(out, buf[:n*channels]...)
	}
	return PCM{Samples: out, SampleRate: oggGranuleRate, Channels: channels}, nil
}

// DecodeAudio sniffs the container and decodes WAV or Ogg/Opus.
func DecodeAudio(data []byte) (PCM, error) {
	if len(data) >= 4 && string(data[:4]) == "OggS" {
		return DecodeOggOpus(data)
	}
	return DecodeWAV(data)
}
