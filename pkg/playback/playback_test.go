package playback_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
	"github.com/teslashibe/llamadoc-voice/pkg/notify"
	"github.com/teslashibe/llamadoc-voice/pkg/playback"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPlay_StopsPreviousBeforeStarting(t *testing.T) {
	player := playback.NewMockPlayer()
	c := playback.New(player)
	defer c.Close()
	ctx := context.Background()

	if err := c.Play(ctx, "/a.wav"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	first := player.Handles()[0]

	var stoppedBeforeOpen bool
	inner := playback.NewMockPlayer()
	player.OpenFunc = func(ctx context.Context, ref string, volume float64) (playback.Handle, error) {
		stoppedBeforeOpen = first.Stopped()
		return inner.Open(ctx, ref, volume)
	}

	if err := c.Play(ctx, "/b.wav"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !stoppedBeforeOpen {
		t.Error("previous handle should be stopped before the new one opens")
	}
	if c.Current() != "/b.wav" {
		t.Errorf("current = %q", c.Current())
	}
	if inner.Live() != 1 || player.Live() != 0 {
		t.Errorf("expected exactly one live handle, got %d + %d", inner.Live(), player.Live())
	}
}

func TestPlay_RefusedWhenMuted(t *testing.T) {
	var muted atomic.Bool
	muted.Store(true)
	player := playback.NewMockPlayer()
	c := playback.New(player, playback.WithMuted(muted.Load))
	defer c.Close()

	if err := c.Play(context.Background(), "/a.wav"); !errors.Is(err, playback.ErrMuted) {
		t.Fatalf("expected ErrMuted, got %v", err)
	}
	if len(player.Handles()) != 0 {
		t.Error("muted play must not open a handle")
	}
}

func TestPlay_MutedDuringOpen(t *testing.T) {
	var muted atomic.Bool
	inner := playback.NewMockPlayer()
	player := &playback.MockPlayer{OpenFunc: func(ctx context.Context, ref string, v float64) (playback.Handle, error) {
		muted.Store(true)
		return inner.Open(ctx, ref, v)
	}}
	c := playback.New(player, playback.WithMuted(muted.Load))
	defer c.Close()

	if err := c.Play(context.Background(), "/a.wav"); !errors.Is(err, playback.ErrMuted) {
		t.Fatalf("expected ErrMuted, got %v", err)
	}
	if !inner.Handles()[0].Stopped() || c.Active() {
		t.Error("handle opened before mute should be stopped")
	}
}

func TestPlay_AppliesVolume(t *testing.T) {
	player := playback.NewMockPlayer()
	c := playback.New(player, playback.WithVolume(func() float64 { return 0.3 }))
	defer c.Close()

	c.Play(context.Background(), "/a.wav")
	if v := player.Handles()[0].Volume; v != 0.3 {
		t.Errorf("volume = %v, want 0.3", v)
	}
}

func TestPlay_FailureNotifiesAndReleases(t *testing.T) {
	rec := notify.NewRecorder()
	ch := notify.New(rec)
	defer ch.Close()

	player := playback.NewMockPlayer()
	c := playback.New(player, playback.WithNotifier(ch))
	defer c.Close()

	c.Play(context.Background(), "/a.wav")
	player.Handles()[0].Finish(errors.New("device lost"))

	waitFor(t, func() bool { return !c.Active() })
	if msgs := rec.Messages(notify.Error); len(msgs) != 1 || msgs[0] != "Could not play audio." {
		t.Errorf("unexpected error notifications %v", msgs)
	}
}

func TestPlay_OpenFailureNotifies(t *testing.T) {
	rec := notify.NewRecorder()
	ch := notify.New(rec)
	defer ch.Close()

	player := &playback.MockPlayer{OpenFunc: func(ctx context.Context, ref string, v float64) (playback.Handle, error) {
		return nil, errors.New("404")
	}}
	c := playback.New(player, playback.WithNotifier(ch))

	if err := c.Play(context.Background(), "/missing.wav"); err == nil {
		t.Fatal("expected error")
	}
	if len(rec.Messages(notify.Error)) != 1 {
		t.Error("expected one error notification")
	}
	if c.Active() {
		t.Error("no handle should be active")
	}
}

func TestStopAll(t *testing.T) {
	rec := notify.NewRecorder()
	ch := notify.New(rec)
	defer ch.Close()

	player := playback.NewMockPlayer()
	c := playback.New(player, playback.WithNotifier(ch))
	defer c.Close()

	c.Play(context.Background(), "/a.wav")
	c.StopAll()
	c.StopAll()

	if c.Active() || !player.Handles()[0].Stopped() {
		t.Error("StopAll should release the handle")
	}
	if len(rec.Messages(notify.Error)) != 0 {
		t.Error("stopping is not a failure")
	}
}

func TestPlay_EmptyRef(t *testing.T) {
	c := playback.New(playback.NewMockPlayer())
	if err := c.Play(context.Background(), ""); !errors.Is(err, playback.ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}

func testWAV(n int) []byte {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = 10000
	}
	return audioio.EncodeWAV(samples, 16000, 1)
}

func TestSinkPlayer_StreamsResolvedURL(t *testing.T) {
	wav := testWAV(1600)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/uploads/audio/a.wav" {
			http.NotFound(w, r)
			return
		}
		w.Write(wav)
	}))
	defer srv.Close()

	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	p := playback.NewSinkPlayer(
		func() (audioio.Sink, error) { return sink, nil },
		playback.WithResolver(func(ref string) string { return srv.URL + ref }),
	)

	h, err := p.Open(context.Background(), "/uploads/audio/a.wav", 0.5)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	<-h.Done()
	if h.Err() != nil {
		t.Fatalf("unexpected playback error: %v", h.Err())
	}

	played := sink.Played()
	if len(played) != 1600 {
		t.Fatalf("played %d samples, want 1600", len(played))
	}
	if played[0] != 5000 {
		t.Errorf("volume not applied: first sample %d", played[0])
	}
}

func TestSinkPlayer_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	if err := os.WriteFile(path, testWAV(320), 0o644); err != nil {
		t.Fatal(err)
	}
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	p := playback.NewSinkPlayer(func() (audioio.Sink, error) { return sink, nil })

	h, err := p.Open(context.Background(), "file://"+filepath.ToSlash(path), 1)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	<-h.Done()
	if len(sink.Played()) != 320 {
		t.Errorf("played %d samples", len(sink.Played()))
	}
}

func TestSinkPlayer_OggClip(t *testing.T) {
	clip := make([]int16, 16000)
	for i := range clip {
		clip[i] = int16((i % 64) * 200)
	}
	data, err := audioio.EncodeOggOpus(clip, 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "question.ogg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	p := playback.NewSinkPlayer(func() (audioio.Sink, error) { return sink, nil })

	h, err := p.Open(context.Background(), path, 1)
	if err != nil {
		t.Fatalf("Open failed for recorded clip: %v", err)
	}
	<-h.Done()
	if err := h.Err(); err != nil {
		t.Fatalf("playback error: %v", err)
	}
	// One second of 16 kHz audio comes back at the sink's 16 kHz.
	if n := len(sink.Played()); n < 14000 || n > 18000 {
		t.Errorf("played %d samples, want about 16000", n)
	}
}

func TestSinkPlayer_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a wav"))
	}))
	defer srv.Close()

	p := playback.NewSinkPlayer(func() (audioio.Sink, error) {
		t.Error("sink must not open for undecodable audio")
		return nil, errors.New("unreachable")
	})
	if _, err := p.Open(context.Background(), srv.URL+"/x.wav", 1); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSinkPlayer_StopClearsSink(t *testing.T) {
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil, audioio.WithRealtime())
	path := filepath.Join(t.TempDir(), "long.wav")
	os.WriteFile(path, testWAV(16000*5), 0o644)

	p := playback.NewSinkPlayer(func() (audioio.Sink, error) { return sink, nil })
	h, err := p.Open(context.Background(), path, 1)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	h.Stop()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("Stop did not end playback")
	}
	if h.Err() != nil {
		t.Errorf("stopped playback should not report an error: %v", h.Err())
	}
	if sink.Cleared() == 0 {
		t.Error("Stop should clear the sink")
	}
}
