package audioio

import (
	"testing"
)

func TestResample_SameRate(t *testing.T) {
	samples := []int16{100, 200, 300, 400, 500}
	result := Resample(samples, 16000, 16000)

	if len(result) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(result))
	}
	for i, s := range samples {
		if result[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, result[i])
		}
	}
}

func TestResample_Lengths(t *testing.T) {
	tests := []struct {
		name     string
		in       int
		from, to int
		want     int
	}{
		{"48k to 16k", 960, 48000, 16000, 320},
		{"16k to 24k", 320, 16000, 24000, 480},
		{"22050 to 16k", 22050, 22050, 16000, 16000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resample(make([]int16, tt.in), tt.from, tt.to)
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestResample_Empty(t *testing.T) {
	if len(Resample(nil, 24000, 48000)) != 0 {
		t.Error("Expected empty result for nil input")
	}
}

func TestBytesSamplesRoundTrip(t *testing.T) {
	data := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0x7f}
	samples := BytesToSamples(data)
	want := []int16{1, -1, -32768}
	if len(samples) != len(want) {
		t.Fatalf("len = %d, want %d (odd byte dropped)", len(samples), len(want))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, samples[i], want[i])
		}
	}
	back := SamplesToBytes(samples)
	if string(back) != string(data[:6]) {
		t.Errorf("SamplesToBytes = %v", back)
	}
}

func TestDownmixToMono(t *testing.T) {
	got := DownmixToMono([]int16{100, 300, -50, 50}, 2)
	if len(got) != 2 || got[0] != 200 || got[1] != 0 {
		t.Errorf("DownmixToMono = %v", got)
	}
	mono := []int16{1, 2}
	if got := DownmixToMono(mono, 1); &got[0] != &mono[0] {
		t.Error("mono input should be returned as is")
	}
}

func TestScaleVolume(t *testing.T) {
	in := []int16{1000, -1000, 32767}
	tests := []struct {
		gain float64
		want []int16
	}{
		{1, []int16{1000, -1000, 32767}},
		{0.5, []int16{500, -500, 16384}},
		{0, []int16{0, 0, 0}},
		{-3, []int16{0, 0, 0}},
	}
	for _, tt := range tests {
		got := ScaleVolume(in, tt.gain)
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("gain %v: sample %d = %d, want %d", tt.gain, i, got[i], tt.want[i])
			}
		}
	}
}

func TestCalculateRMS(t *testing.T) {
	if CalculateRMS(nil) != 0 {
		t.Error("RMS of nothing should be 0")
	}
	if CalculateRMS(make([]int16, 100)) != 0 {
		t.Error("RMS of silence should be 0")
	}
	full := []int16{32767, -32767}
	if rms := CalculateRMS(full); rms < 0.99 || rms > 1.01 {
		t.Errorf("RMS of full scale = %v", rms)
	}
}

func BenchmarkResample(b *testing.B) {
	samples := make([]int16, 4800)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Resample(samples, 48000, 16000)
	}
}
