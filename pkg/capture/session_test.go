package capture_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
	"github.com/teslashibe/llamadoc-voice/pkg/capture"
)

func recv(t *testing.T, ch <-chan capture.Outcome) capture.Outcome {
	t.Helper()
	select {
	case o, ok := <-ch:
		if !ok {
			t.Fatal("outcome channel closed without a value")
		}
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outcome")
	}
	return capture.Outcome{}
}

func TestSession_Succeeded(t *testing.T) {
	s := capture.NewSession()
	mech := capture.NewMock("live", capture.TranscriptResult("what is the capital", 0.9))

	var mu sync.Mutex
	var states []capture.State
	s.OnStateChange(func(st capture.State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	ch, err := s.Start(context.Background(), mech)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	o := recv(t, ch)
	if o.Status != capture.StateSucceeded {
		t.Fatalf("status = %v, err %v", o.Status, o.Err)
	}
	if !o.Result.IsTranscript() || o.Result.Transcript.Text != "what is the capital" {
		t.Errorf("unexpected result %+v", o.Result)
	}
	if o.Mechanism != "live" {
		t.Errorf("mechanism = %q", o.Mechanism)
	}
	if _, open := <-ch; open {
		t.Error("channel should close after the single outcome")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []capture.State{capture.StateStarting, capture.StateListening, capture.StateSucceeded, capture.StateIdle}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestSession_UnavailableStaysIdle(t *testing.T) {
	s := capture.NewSession()
	mech := &capture.Mock{Unavailable: true}

	_, err := s.Start(context.Background(), mech)
	if !apperr.IsKind(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if s.State() != capture.StateIdle || mech.Begins() != 0 {
		t.Error("unavailable mechanism must not touch the device")
	}
}

func TestSession_BeginFailure(t *testing.T) {
	s := capture.NewSession()
	mech := &capture.Mock{BeginErr: apperr.ErrMicrophoneDenied}

	ch, _ := s.Start(context.Background(), mech)
	o := recv(t, ch)
	if o.Status != capture.StateFailed || !errors.Is(o.Err, apperr.ErrMicrophoneDenied) {
		t.Errorf("got %v / %v", o.Status, o.Err)
	}
	if s.Active() {
		t.Error("session should be idle after failure")
	}
}

func TestSession_StartWhileActiveLeavesOneSession(t *testing.T) {
	s := capture.NewSession()
	mech := &capture.Mock{Hold: true, Result: capture.TranscriptResult("x", 1)}

	first, _ := s.Start(context.Background(), mech)
	second, _ := s.Start(context.Background(), mech)

	if o := recv(t, first); o.Status != capture.StateCancelled {
		t.Errorf("first outcome = %v, want cancelled", o.Status)
	}
	if mech.Live() != 1 {
		t.Errorf("expected exactly one live capture, got %d", mech.Live())
	}
	if !s.Active() {
		t.Error("second session should be active")
	}

	mech.Captures()[1].Complete()
	if o := recv(t, second); o.Status != capture.StateSucceeded {
		t.Errorf("second outcome = %v", o.Status)
	}
}

func TestSession_StopRecognizerDiscards(t *testing.T) {
	s := capture.NewSession()
	mech := &capture.Mock{Hold: true, Result: capture.TranscriptResult("partial", 0.4)}

	ch, _ := s.Start(context.Background(), mech)
	waitState(t, s, capture.StateListening)
	if !s.Stop() {
		t.Fatal("Stop should report a running session")
	}
	o := recv(t, ch)
	if o.Status != capture.StateCancelled {
		t.Errorf("status = %v, want cancelled", o.Status)
	}
	if !mech.Captures()[0].Aborted() {
		t.Error("recognizer capture should be aborted")
	}
}

func TestSession_StopRecorderFinalizes(t *testing.T) {
	s := capture.NewSession()
	clip := audioio.Clip{Data: []byte("audio"), MimeType: audioio.MimeWAV}
	mech := &capture.Mock{Hold: true, Keep: true, Result: capture.AudioResult(clip)}

	ch, _ := s.Start(context.Background(), mech)
	waitState(t, s, capture.StateListening)
	s.Stop()

	o := recv(t, ch)
	if o.Status != capture.StateSucceeded || o.Result.Audio == nil {
		t.Fatalf("expected finalized audio, got %v %+v", o.Status, o.Result)
	}
}

func TestSession_StopWhenIdle(t *testing.T) {
	if capture.NewSession().Stop() {
		t.Error("Stop on idle session should report false")
	}
}

func waitState(t *testing.T, s *capture.Session, want capture.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", s.State(), want)
}
