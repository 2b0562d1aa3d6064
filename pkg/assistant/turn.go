package assistant

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
	"github.com/teslashibe/llamadoc-voice/pkg/history"
	"github.com/teslashibe/llamadoc-voice/pkg/llamadoc"
	"github.com/teslashibe/llamadoc-voice/pkg/notify"
	"github.com/teslashibe/llamadoc-voice/pkg/playback"
	"github.com/teslashibe/llamadoc-voice/pkg/tts"
)

// Ask runs a full turn for a typed question and returns when the turn is
// complete. The returned error is informational; it has already been
// shown to the user.
func (c *Controller) Ask(ctx context.Context, question string) (history.Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		c.notify(msgEmptyQuestion, notify.Error)
		return history.Turn{}, ErrEmptyQuestion
	}
	return c.runTurn(ctx, question, nil, nil)
}

// AskAsync runs Ask in the background. Use Wait to wait for it.
func (c *Controller) AskAsync(ctx context.Context, question string) {
	c.goTurn(ctx, func(ctx context.Context) {
		c.Ask(ctx, question)
	})
}

// runTurn queries the backend for question and carries the answer through
// rendering, speech and history. clip is the recorded question, if any;
// tm is the timer started when the question was captured, if any.
func (c *Controller) runTurn(ctx context.Context, question string, clip *audioio.Clip, tm *turnTimer) (history.Turn, error) {
	if tm == nil {
		tm = newTurnTimer(c.cfg.Now)
	}
	uploadID := c.session.Document()
	if uploadID == "" {
		c.notify(apperr.Message(apperr.ErrNoDocument), notify.Error)
		return history.Turn{}, apperr.ErrNoDocument
	}
	if c.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.TurnTimeout)
		defer cancel()
	}

	tok := c.session.beginTurn()
	defer c.session.endTurn()
	log := c.logger.With("turn", tok.seq, "upload_id", uploadID)

	if c.d.Answers != nil {
		c.d.Answers.ShowPending(question)
	}
	c.notify(msgThinking, notify.Info)

	res, err := c.d.Backend.SubmitQuestion(ctx, uploadID, question)
	if !c.session.current(tok) {
		log.Info("discarding stale turn")
		return history.Turn{}, ErrStaleTurn
	}
	if err != nil {
		msg := apperr.Message(err)
		log.Warn("query failed", "error", err)
		if c.d.Answers != nil {
			c.d.Answers.ShowAnswerError(msg)
		}
		c.notify(msg, notify.Error)
		return history.Turn{}, err
	}
	tm.done(StageQuery)

	turn := history.Turn{
		ID:         uuid.NewString(),
		UploadID:   uploadID,
		Question:   question,
		Answer:     res.Answer.Text,
		AnswerHTML: res.Answer.HTML,
		Summary:    res.Answer.Summary,
		CreatedAt:  c.cfg.Now(),
	}
	if c.d.Answers != nil {
		c.d.Answers.ShowAnswer(turn, res.Sources)
	}
	c.notify(msgAnswerReady, notify.Success)
	log.Info("answer rendered", "chars", len(turn.Answer), "sources", len(res.Sources))

	turn.AnswerAudioRef = c.speak(ctx, tok, turn, tm)

	vs := c.d.Settings.Current()
	turn.VoiceType, turn.Rate, turn.Muted = vs.VoiceType, vs.Rate, c.session.Muted()
	rec := llamadoc.HistoryRecord{
		UploadID:       uploadID,
		Question:       question,
		Answer:         turn.Answer,
		Summary:        turn.Summary,
		VoiceType:      turn.VoiceType,
		Rate:           turn.Rate,
		Muted:          turn.Muted,
		QuestionAudio:  clip,
		AnswerAudioURL: turn.AnswerAudioRef,
	}
	id, err := c.d.Backend.SaveHistoryEntry(ctx, rec)
	tm.done(StageSave)
	m := tm.finish()
	c.metrics.Record(m)
	log.Info("turn complete", "latency", m.String())
	if err != nil {
		log.Warn("save history failed", "error", err)
		c.notify(msgSaveFailed, notify.Error)
		return turn, nil
	}
	if id != "" {
		turn.ID = id
	}
	log.Debug("turn saved", "history_id", id)

	// The panel only ever shows the active document's history.
	if c.session.Document() != uploadID {
		log.Info("document changed during turn, skipping history reload")
		return turn, nil
	}
	if c.d.Panel != nil {
		c.d.Panel.Load(ctx, uploadID)
	}
	return turn, nil
}

// speak synthesizes and plays the answer unless muted. Mute is checked
// before synthesis and again before playback. It returns the audio
// reference, or "" when nothing was synthesized.
func (c *Controller) speak(ctx context.Context, tok turnToken, turn history.Turn, tm *turnTimer) string {
	if c.d.Synthesizer == nil || c.session.Muted() {
		return ""
	}
	text := tts.Speakable(turn.Answer, turn.AnswerHTML)
	if text == "" {
		return ""
	}

	c.notify(msgGenerating, notify.Info)
	res, err := c.d.Synthesizer.Synthesize(ctx, text, c.Voice())
	tm.done(StageSynthesize)
	if err != nil {
		c.logger.Warn("synthesis failed", "turn", tok.seq, "error", err)
		c.notify(msgVoiceUnavailable, notify.Error)
		return ""
	}

	if !c.session.current(tok) {
		return res.AudioURL
	}
	if err := c.d.Player.Play(ctx, res.AudioURL); err != nil && !errors.Is(err, playback.ErrMuted) {
		c.logger.Warn("play answer failed", "turn", tok.seq, "error", err)
	}
	return res.AudioURL
}
