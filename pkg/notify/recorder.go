package notify

import "sync"

// Event is one call made on a Recorder.
type Event struct {
	Hide     bool
	Message  string
	Severity Severity
}

// Recorder is a Surface that keeps every Show and Hide for inspection.
// It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	events  []Event
	visible *Event
	changed chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{changed: make(chan struct{}, 64)}
}

// Show implements Surface.
func (r *Recorder) Show(message string, sev Severity) {
	r.mu.Lock()
	e := Event{Message: message, Severity: sev}
	r.events = append(r.events, e)
	r.visible = &e
	r.mu.Unlock()
	r.signal()
}

// Hide implements Surface.
func (r *Recorder) Hide() {
	r.mu.Lock()
	r.events = append(r.events, Event{Hide: true})
	r.visible = nil
	r.mu.Unlock()
	r.signal()
}

func (r *Recorder) signal() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// Changed receives a value after each Show or Hide (best effort).
func (r *Recorder) Changed() <-chan struct{} {
	return r.changed
}

// Visible returns the message currently shown, if any.
func (r *Recorder) Visible() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.visible == nil {
		return Event{}, false
	}
	return *r.visible, true
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Messages returns the shown messages with the given severity, in order.
// An empty severity matches all.
func (r *Recorder) Messages(sev Severity) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Hide {
			continue
		}
		if sev == "" || e.Severity == sev {
			out = append(out, e.Message)
		}
	}
	return out
}

var _ Surface = (*Recorder)(nil)
