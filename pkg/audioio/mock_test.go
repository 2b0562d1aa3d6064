package audioio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BufferDuration = 5 * time.Millisecond
	return cfg
}

func TestMockSource_StartStop(t *testing.T) {
	src := NewMockSource(testConfig(), nil)
	defer src.Close()

	ctx := context.Background()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Starting again should be a no-op
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
	if src.Running() {
		t.Error("source still running after Stop")
	}
}

func TestMockSource_Read(t *testing.T) {
	cfg := testConfig()
	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if want := cfg.BufferSize() * cfg.Channels; len(chunk.Samples) != want {
		t.Errorf("Expected %d samples, got %d", want, len(chunk.Samples))
	}
	if chunk.SampleRate != cfg.SampleRate {
		t.Errorf("Expected sample rate %d, got %d", cfg.SampleRate, chunk.SampleRate)
	}
	if CalculateRMS(chunk.Samples) == 0 {
		t.Error("sine wave chunk should not be silent")
	}
}

func TestMockSource_ScriptEndsStream(t *testing.T) {
	cfg := testConfig()
	script := make([]int16, cfg.BufferSize()*3+7)
	for i := range script {
		script[i] = int16(i)
	}
	src := NewMockSource(cfg, nil, WithScript(script))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatal(err)
	}

	var got []int16
	for {
		chunk, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, chunk.Samples...)
	}
	if len(got) != len(script) {
		t.Fatalf("got %d samples, want %d", len(got), len(script))
	}
	for i := range got {
		if got[i] != script[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], script[i])
		}
	}
}

func TestMockSource_StartError(t *testing.T) {
	src := NewMockSource(testConfig(), nil, WithStartError(ErrPermissionDenied))
	err := src.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Start err = %v, want ErrPermissionDenied", err)
	}
	if src.Starts() != 1 {
		t.Errorf("Starts = %d", src.Starts())
	}
}

func TestMockSource_Closed(t *testing.T) {
	src := NewMockSource(testConfig(), nil)
	src.Close()
	if err := src.Start(context.Background()); err != io.ErrClosedPipe {
		t.Errorf("Start after Close = %v, want ErrClosedPipe", err)
	}
}

func TestMockSink_WriteAndClear(t *testing.T) {
	sink := NewMockSink(testConfig(), nil)
	defer sink.Close()
	ctx := context.Background()

	if err := sink.Write(ctx, AudioChunk{Samples: []int16{1}}); err != io.ErrClosedPipe {
		t.Errorf("Write before Start = %v, want ErrClosedPipe", err)
	}

	if err := sink.Start(ctx); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := sink.Write(ctx, AudioChunk{Samples: []int16{int16(i), int16(i)}, SampleRate: 16000, Channels: 1}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	stats := sink.Stats()
	if stats.ChunksWritten != 3 || stats.SamplesWritten != 6 || stats.BufferedSamples != 6 {
		t.Errorf("Stats = %+v", stats)
	}

	sink.Clear()
	if sink.Stats().BufferedSamples != 0 {
		t.Error("Clear should drop buffered audio")
	}
	if sink.Cleared() != 1 {
		t.Errorf("Cleared = %d", sink.Cleared())
	}
	if got := sink.Played(); len(got) != 6 {
		t.Errorf("Played = %v", got)
	}
}

func TestMockSink_RealtimeHonorsContext(t *testing.T) {
	sink := NewMockSink(testConfig(), nil, WithRealtime())
	sink.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chunk := AudioChunk{Samples: make([]int16, 16000), SampleRate: 16000, Channels: 1}
	if err := sink.Write(ctx, chunk); !errors.Is(err, context.Canceled) {
		t.Errorf("Write = %v, want context.Canceled", err)
	}
}
