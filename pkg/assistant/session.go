package assistant

import "sync"

// Session holds the process-wide flags of the voice assistant: the active
// document, mute and the turn sequence used to discard stale results.
type Session struct {
	mu        sync.Mutex
	uploadID  string
	muted     bool
	recording bool
	busy      int
	turnSeq   uint64
}

// NewSession creates an empty, unmuted session.
func NewSession() *Session {
	return &Session{}
}

// SetDocument makes uploadID the active document. Turns started for the
// previous document become stale.
func (s *Session) SetDocument(uploadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadID = uploadID
}

// Document returns the active document id, or "".
func (s *Session) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadID
}

// ToggleMute flips mute and returns the new value.
func (s *Session) ToggleMute() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = !s.muted
	return s.muted
}

// SetMuted sets mute.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

// Muted reports whether audio output is muted.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Recording reports whether a capture session holds the microphone.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

func (s *Session) setRecording(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = on
}

// IsBusy reports whether a turn is in flight.
func (s *Session) IsBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy > 0
}

// turnToken identifies one turn for the stale check.
type turnToken struct {
	seq      uint64
	uploadID string
}

func (s *Session) beginTurn() turnToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnSeq++
	s.busy++
	return turnToken{seq: s.turnSeq, uploadID: s.uploadID}
}

func (s *Session) endTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy--
}

// current reports whether no newer turn has started and the document has
// not changed since tok was issued.
func (s *Session) current(tok turnToken) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tok.seq == s.turnSeq && tok.uploadID == s.uploadID
}

// State is a snapshot of the session flags.
type State struct {
	UploadID  string `json:"upload_id"`
	Muted     bool   `json:"muted"`
	Recording bool   `json:"recording"`
	Busy      bool   `json:"busy"`
}

// Snapshot returns the current flags.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		UploadID:  s.uploadID,
		Muted:     s.muted,
		Recording: s.recording,
		Busy:      s.busy > 0,
	}
}
