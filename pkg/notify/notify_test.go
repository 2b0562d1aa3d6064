package notify

import (
	"testing"
	"time"

	applog "github.com/teslashibe/llamadoc-voice/internal/log"
)

func TestDefaultDurations(t *testing.T) {
	c := New(nil, WithLogger(applog.Discard()))
	tests := []struct {
		sev  Severity
		want time.Duration
	}{
		{Info, 3 * time.Second},
		{Success, 2 * time.Second},
		{Error, 5 * time.Second},
		{Severity("other"), 3 * time.Second},
	}
	for _, tt := range tests {
		if got := c.Duration(tt.sev); got != tt.want {
			t.Errorf("Duration(%s) = %v, want %v", tt.sev, got, tt.want)
		}
	}
}

func TestNotifyShowsAndDismisses(t *testing.T) {
	rec := NewRecorder()
	c := New(rec, WithDurations(20*time.Millisecond, 0, 0))
	defer c.Close()

	c.Info("Processing audio...")
	if e, ok := rec.Visible(); !ok || e.Message != "Processing audio..." || e.Severity != Info {
		t.Fatalf("Visible = %+v, %v", e, ok)
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := rec.Visible(); ok {
		t.Error("message should have been dismissed")
	}
	if c.Current() != "" {
		t.Errorf("Current = %q after dismissal", c.Current())
	}
}

func TestSecondNotifySurvivesFirstDismissal(t *testing.T) {
	rec := NewRecorder()
	c := New(rec, WithDurations(40*time.Millisecond, 0, 200*time.Millisecond))
	defer c.Close()

	c.Info("first")
	time.Sleep(10 * time.Millisecond)
	c.Error("second")

	// Past the point where "first" would have been hidden.
	time.Sleep(80 * time.Millisecond)

	e, ok := rec.Visible()
	if !ok {
		t.Fatal("second message was hidden by the first message's timer")
	}
	if e.Message != "second" || e.Severity != Error {
		t.Errorf("Visible = %+v, want second/error", e)
	}
	for _, ev := range rec.Events() {
		if ev.Hide {
			t.Errorf("unexpected hide before second message expired: %+v", rec.Events())
		}
	}
}

func TestNilSurfaceIsNoOp(t *testing.T) {
	c := New(nil, WithLogger(applog.Discard()))
	c.Error("nobody is listening")
	if c.Current() != "" {
		t.Errorf("Current = %q, want empty with no surface", c.Current())
	}
}

func TestCloseStopsDismissal(t *testing.T) {
	rec := NewRecorder()
	c := New(rec, WithDurations(20*time.Millisecond, 0, 0))
	c.Info("stay")
	c.Close()
	time.Sleep(60 * time.Millisecond)

	if _, ok := rec.Visible(); !ok {
		t.Error("Close should cancel the pending hide")
	}
	c.Info("ignored")
	if got := rec.Messages(""); len(got) != 1 {
		t.Errorf("Messages = %v, want only the first", got)
	}
}

func TestRecorderMessagesFilter(t *testing.T) {
	rec := NewRecorder()
	rec.Show("a", Info)
	rec.Show("b", Error)
	rec.Hide()
	rec.Show("c", Error)

	if got := rec.Messages(Error); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("Messages(Error) = %v", got)
	}
}
