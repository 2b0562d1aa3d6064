package history

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/llamadoc"
	"github.com/teslashibe/llamadoc-voice/pkg/notify"
	"github.com/teslashibe/llamadoc-voice/pkg/tts"
)

// Sentinel errors.
var (
	// ErrNotFound is returned for an id that is not in the panel.
	ErrNotFound = errors.New("history: entry not found")

	// ErrNoAudio is returned when an entry has no stored audio to play.
	ErrNoAudio = errors.New("history: entry has no audio")
)

// Lister fetches persisted turns.
type Lister interface {
	ListHistory(ctx context.Context, uploadID string) ([]llamadoc.HistoryEntry, error)
}

// View displays the panel. Exactly one of the Show methods describes the
// panel at any time.
type View interface {
	ShowHistoryLoading()
	ShowHistoryEmpty(message string)
	ShowHistoryError(message string)
	ShowHistory(items []Item)
}

// AnswerRenderer shows a turn in the main answer area.
type AnswerRenderer interface {
	ShowAnswer(turn Turn, sources []llamadoc.Source)
}

// Player plays audio references.
type Player interface {
	Play(ctx context.Context, ref string) error
}

// Notifier receives user-facing messages.
type Notifier interface {
	Notify(message string, sev notify.Severity)
}

// Panel holds the turns of the current document.
type Panel struct {
	lister   Lister
	view     View
	answers  AnswerRenderer
	player   Player
	synth    tts.Provider
	voice    func() tts.Voice
	muted    func() bool
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger

	speaking singleflight.Group

	mu       sync.Mutex
	loadSeq  uint64
	uploadID string
	turns    []Turn
}

// Option configures a Panel.
type Option func(*Panel)

// WithAnswerRenderer sets where "view" re-renders a turn.
func WithAnswerRenderer(r AnswerRenderer) Option {
	return func(p *Panel) {
		p.answers = r
	}
}

// WithPlayer sets the audio player.
func WithPlayer(pl Player) Option {
	return func(p *Panel) {
		p.player = pl
	}
}

// WithSynthesizer sets the provider for speaking answers without stored
// audio. voice is read on every request; nil keeps the default voice.
func WithSynthesizer(provider tts.Provider, voice func() tts.Voice) Option {
	return func(p *Panel) {
		p.synth = provider
		if voice != nil {
			p.voice = voice
		}
	}
}

// WithMuted sets the mute check.
func WithMuted(fn func() bool) Option {
	return func(p *Panel) {
		p.muted = fn
	}
}

// WithNotifier sets where action failures are reported.
func WithNotifier(n Notifier) Option {
	return func(p *Panel) {
		p.notifier = n
	}
}

// WithClock sets the clock used for relative timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Panel) {
		p.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Panel) {
		p.logger = logger
	}
}

// New creates a panel reading from lister and rendering to view.
func New(lister Lister, view View, opts ...Option) *Panel {
	p := &Panel{
		lister: lister,
		view:   view,
		voice:  func() tts.Voice { return tts.Voice{Type: tts.VoiceDefault, Rate: tts.NormalRate, Volume: 1} },
		muted:  func() bool { return false },
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "history")
	return p
}

// Load replaces the panel contents with uploadID's turns, newest first.
// Failures render the error state; Load never returns an error.
func (p *Panel) Load(ctx context.Context, uploadID string) {
	p.mu.Lock()
	p.loadSeq++
	seq := p.loadSeq
	p.mu.Unlock()

	p.view.ShowHistoryLoading()

	var entries []llamadoc.HistoryEntry
	var err error
	if uploadID != "" {
		entries, err = p.lister.ListHistory(ctx, uploadID)
	}

	turns := make([]Turn, 0, len(entries))
	for _, e := range entries {
		turns = append(turns, FromEntry(e))
	}
	slices.SortStableFunc(turns, func(a, b Turn) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})

	p.mu.Lock()
	if seq != p.loadSeq {
		p.mu.Unlock()
		p.logger.Debug("discarding stale history load", "upload_id", uploadID)
		return
	}
	p.uploadID = uploadID
	if err != nil {
		p.turns = nil
	} else {
		p.turns = turns
	}
	p.mu.Unlock()

	switch {
	case err != nil:
		p.logger.Warn("load history failed", "upload_id", uploadID, "error", err)
		p.view.ShowHistoryError(ErrorMessage)
	case len(turns) == 0:
		p.view.ShowHistoryEmpty(EmptyMessage)
	default:
		now := p.now()
		items := make([]Item, len(turns))
		for i, t := range turns {
			items[i] = NewItem(t, now)
		}
		p.logger.Debug("history loaded", "upload_id", uploadID, "entries", len(items))
		p.view.ShowHistory(items)
	}
}

// Turns returns the loaded turns, newest first.
func (p *Panel) Turns() []Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.turns)
}

// Turn looks up a loaded turn.
func (p *Panel) Turn(id string) (Turn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.turns {
		if t.ID == id {
			return t, nil
		}
	}
	return Turn{}, ErrNotFound
}

// PlayQuestion replays the recorded question of turn id.
func (p *Panel) PlayQuestion(ctx context.Context, id string) error {
	t, err := p.Turn(id)
	if err != nil {
		return err
	}
	if t.QuestionAudioRef == "" {
		return ErrNoAudio
	}
	return p.play(ctx, t.QuestionAudioRef)
}

// PlayAnswer replays the stored answer audio of turn id, or speaks the
// answer when none was stored.
func (p *Panel) PlayAnswer(ctx context.Context, id string) error {
	t, err := p.Turn(id)
	if err != nil {
		return err
	}
	if t.AnswerAudioRef == "" {
		return p.Speak(ctx, id)
	}
	return p.play(ctx, t.AnswerAudioRef)
}

// Speak synthesizes turn id's answer with the current voice settings and
// plays it. Concurrent requests for the same turn share one synthesis.
func (p *Panel) Speak(ctx context.Context, id string) error {
	t, err := p.Turn(id)
	if err != nil {
		return err
	}
	if p.muted() {
		p.notify("Voice is muted. Unmute to hear answers.", notify.Info)
		return nil
	}
	if p.synth == nil {
		return apperr.New(apperr.KindUnavailable, "Voice response unavailable.")
	}

	text := tts.Speakable(t.Answer, t.AnswerHTML)
	if text == "" {
		p.logger.Debug("nothing to speak", "id", id)
		return nil
	}

	_, err, shared := p.speaking.Do(id, func() (any, error) {
		res, err := p.synth.Synthesize(ctx, text, p.voice())
		if err != nil {
			p.logger.Warn("speak failed", "id", id, "error", err)
			p.notify("Voice response unavailable.", notify.Error)
			return nil, err
		}
		return nil, p.play(ctx, res.AudioURL)
	})
	if shared {
		p.logger.Debug("speak request coalesced", "id", id)
	}
	return err
}

// View re-renders turn id in the answer area. No request is made.
func (p *Panel) View(id string) error {
	t, err := p.Turn(id)
	if err != nil {
		return err
	}
	if p.answers != nil {
		p.answers.ShowAnswer(t, nil)
	}
	return nil
}

// Export writes the loaded turns as JSON.
func (p *Panel) Export(w io.Writer) error {
	p.mu.Lock()
	doc := struct {
		UploadID   string    `json:"upload_id"`
		ExportedAt time.Time `json:"exported_at"`
		Turns      []Turn    `json:"turns"`
	}{p.uploadID, p.now().UTC(), slices.Clone(p.turns)}
	p.mu.Unlock()
	if doc.Turns == nil {
		doc.Turns = []Turn{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func (p *Panel) play(ctx context.Context, ref string) error {
	if p.player == nil {
		return apperr.New(apperr.KindUnavailable, "Audio playback is not available.")
	}
	return p.player.Play(ctx, ref)
}

func (p *Panel) notify(msg string, sev notify.Severity) {
	if p.notifier != nil {
		p.notifier.Notify(msg, sev)
	}
}
