package audioio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"
)

func sine(n, rate int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

func TestDecodeWAV_EncodedByUs(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	pcm, err := DecodeWAV(EncodeWAV(in, 22050, 1))
	if err != nil {
		t.Fatal(err)
	}
	if pcm.SampleRate != 22050 || pcm.Channels != 1 {
		t.Errorf("format = %d Hz x %d", pcm.SampleRate, pcm.Channels)
	}
	if len(pcm.Samples) != len(in) {
		t.Fatalf("len = %d", len(pcm.Samples))
	}
	for i := range in {
		if pcm.Samples[i] != in[i] {
			t.Errorf("sample %d = %d, want %d", i, pcm.Samples[i], in[i])
		}
	}
}

func TestDecodeWAV_SkipsChunksAndClampsStreamingSize(t *testing.T) {
	wav := EncodeWAV([]int16{10, 20, 30}, 16000, 1)

	// Insert a LIST chunk with an odd size between fmt and data.
	var buf bytes.Buffer
	buf.Write(wav[:36])
	buf.WriteString("LIST")
	binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{'a', 'b', 'c', 0})
	data := append([]byte(nil), wav[36:]...)
	// Streaming writers leave the size as 0xFFFFFFFF.
	binary.LittleEndian.PutUint32(data[4:8], 0xFFFFFFFF)
	buf.Write(data)

	pcm, err := DecodeWAV(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(pcm.Samples) != 3 || pcm.Samples[2] != 30 {
		t.Errorf("Samples = %v", pcm.Samples)
	}
}

func TestDecodeWAV_8Bit(t *testing.T) {
	wav := EncodeWAV(nil, 8000, 1)
	binary.LittleEndian.PutUint16(wav[34:36], 8)
	wav = append(wav, 128, 255, 0)
	binary.LittleEndian.PutUint32(wav[40:44], 3)

	pcm, err := DecodeWAV(wav)
	if err != nil {
		t.Fatal(err)
	}
	want := []int16{0, 127 << 8, -128 << 8}
	for i := range want {
		if pcm.Samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, pcm.Samples[i], want[i])
		}
	}
}

func TestDecodeWAV_Errors(t *testing.T) {
	float := EncodeWAV([]int16{1}, 16000, 1)
	binary.LittleEndian.PutUint16(float[20:22], 3)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrNotWAV},
		{"mp3", []byte("ID3\x03\x00\x00\x00\x00\x00\x00\x00\x00"), ErrNotWAV},
		{"float", float, ErrUnsupportedWAV},
		{"no data", EncodeWAV(nil, 16000, 1)[:36], ErrUnsupportedWAV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeWAV(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEncodeOggOpus(t *testing.T) {
	data, err := EncodeOggOpus(sine(16000, 16000), 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("OggS")) {
		t.Errorf("missing Ogg capture pattern: % x", data[:min(8, len(data))])
	}
	if !bytes.Contains(data, []byte("OpusHead")) {
		t.Error("missing OpusHead")
	}
}

func TestEncodeOggOpus_ResamplesOddRates(t *testing.T) {
	data, err := EncodeOggOpus(sine(22050, 22050), 22050, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("no output")
	}
}

func TestDecodeOggOpus_RoundTrip(t *testing.T) {
	data, err := EncodeOggOpus(sine(16000, 16000), 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	pcm, err := DecodeOggOpus(data)
	if err != nil {
		t.Fatalf("DecodeOggOpus: %v", err)
	}
	if pcm.SampleRate != 48000 || pcm.Channels != 1 {
		t.Errorf("format = %d Hz x %d", pcm.SampleRate, pcm.Channels)
	}
	// One second of input; encoder pre-skip and frame padding shift the
	// count slightly.
	if n := len(pcm.Samples); n < 44000 || n > 52000 {
		t.Errorf("decoded %d samples, want about 48000", n)
	}
}

func TestDecodeAudio_Sniffs(t *testing.T) {
	ogg, err := EncodeOggOpus(sine(3200, 16000), 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		data []byte
		rate int
		err  error
	}{
		{"wav", EncodeWAV(sine(320, 16000), 16000, 1), 16000, nil},
		{"ogg", ogg, 48000, nil},
		{"junk", []byte("not audio at all"), 0, ErrNotWAV},
		{"ogg without opus head", append([]byte("OggS"), make([]byte, 40)...), 0, ErrNotOgg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm, err := DecodeAudio(tt.data)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if pcm.SampleRate != tt.rate {
				t.Errorf("rate = %d, want %d", pcm.SampleRate, tt.rate)
			}
		})
	}
}

func TestEncodeClip(t *testing.T) {
	samples := sine(8000, 16000)

	wav, err := EncodeClip(samples, 16000, 1, FormatWAV)
	if err != nil {
		t.Fatal(err)
	}
	if wav.MimeType != MimeWAV || wav.Filename("question") != "question.wav" {
		t.Errorf("wav clip = %s %s", wav.MimeType, wav.Filename("question"))
	}
	if wav.Duration != 500*time.Millisecond {
		t.Errorf("Duration = %v", wav.Duration)
	}

	ogg, err := EncodeClip(samples, 16000, 1, FormatOgg)
	if err != nil {
		t.Fatal(err)
	}
	if ogg.MimeType != MimeOgg || ogg.Extension() != ".ogg" {
		t.Errorf("ogg clip = %s %s", ogg.MimeType, ogg.Extension())
	}
	if len(ogg.Data) >= len(wav.Data) {
		t.Errorf("ogg (%d bytes) should be smaller than wav (%d bytes)", len(ogg.Data), len(wav.Data))
	}

	if _, err := EncodeClip(samples, 16000, 1, Format("flac")); err == nil {
		t.Error("expected error for unknown format")
	}
	if !(Clip{}).Empty() {
		t.Error("zero clip should be empty")
	}
}
