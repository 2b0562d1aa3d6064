package web

import (
	"bytes"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/assistant"
	"github.com/teslashibe/llamadoc-voice/pkg/history"
	"github.com/teslashibe/llamadoc-voice/pkg/hub"
	"github.com/teslashibe/llamadoc-voice/pkg/llamadoc"
	"github.com/teslashibe/llamadoc-voice/pkg/settings"
)

// StateResponse is returned by GET /api/state.
type StateResponse struct {
	Session  assistant.State          `json:"session"`
	Capture  string                   `json:"capture"`
	Settings settings.VoiceSettings   `json:"settings"`
	Answer   AnswerState              `json:"answer"`
	Metrics  assistant.MetricsSummary `json:"metrics"`
	Clients  int                      `json:"clients"`
}

func (s *Server) state() StateResponse {
	return StateResponse{
		Session:  s.d.Controller.Session().Snapshot(),
		Capture:  s.d.Controller.CaptureState().String(),
		Settings: s.d.Settings.Current(),
		Answer:   s.d.UI.Answer(),
		Metrics:  s.d.Controller.Metrics(),
		Clients:  s.d.Hub.ClientCount(),
	}
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, assistant.ErrEmptyQuestion):
		return fiber.StatusBadRequest
	case errors.Is(err, assistant.ErrStaleTurn):
		return fiber.StatusConflict
	case errors.Is(err, history.ErrNotFound), errors.Is(err, history.ErrNoAudio):
		return fiber.StatusNotFound
	}
	switch apperr.KindOf(err) {
	case apperr.KindPrecondition:
		return fiber.StatusConflict
	case apperr.KindPermission:
		return fiber.StatusForbidden
	case apperr.KindUnavailable:
		return fiber.StatusServiceUnavailable
	case apperr.KindNetwork:
		return fiber.StatusBadGateway
	case apperr.KindDecode, apperr.KindNoInput:
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": apperr.Message(err),
		"kind":  apperr.KindOf(err).String(),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// handleState returns the session, capture and answer state
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.state())
}

// handleUpload accepts a multipart "file" field and makes it the active
// document
func (s *Server) handleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "Please choose a PDF file.")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "Could not read the uploaded file.")
	}
	defer f.Close()

	up, err := s.d.Controller.Upload(c.UserContext(), fh.Filename, f)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(up)
}

// AskRequest is the request body for POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// handleAsk runs a typed question through a full turn
func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	turn, err := s.d.Controller.Ask(c.UserContext(), req.Question)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(turn)
}

// handleMicToggle starts or stops voice capture
func (s *Server) handleMicToggle(c *fiber.Ctx) error {
	if err := s.d.Controller.ToggleCapture(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.state())
}

// handleMuteToggle flips mute
func (s *Server) handleMuteToggle(c *fiber.Ctx) error {
	muted := s.d.Controller.ToggleMute()
	return c.JSON(fiber.Map{"muted": muted})
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return c.JSON(s.d.Settings.Current())
}

// SettingsRequest is a partial settings update; omitted fields keep
// their value.
type SettingsRequest struct {
	VoiceType *string  `json:"voiceType"`
	Rate      *int     `json:"rate"`
	Volume    *float64 `json:"volume"`
}

func (s *Server) handlePutSettings(c *fiber.Ctx) error {
	var req SettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.VoiceType != nil && !settings.ValidVoiceType(*req.VoiceType) {
		return badRequest(c, "unknown voice type "+*req.VoiceType)
	}
	vs := s.d.Controller.UpdateSettings(c.UserContext(), func(v *settings.VoiceSettings) {
		if req.VoiceType != nil {
			v.VoiceType = *req.VoiceType
		}
		if req.Rate != nil {
			v.Rate = *req.Rate
		}
		if req.Volume != nil {
			v.Volume = *req.Volume
		}
	})
	return c.JSON(vs)
}

// handleHistory returns the loaded history, newest first
func (s *Server) handleHistory(c *fiber.Ctx) error {
	turns := s.d.Panel.Turns()
	now := time.Now()
	items := make([]history.Item, len(turns))
	for i, t := range turns {
		items[i] = history.NewItem(t, now)
	}
	return c.JSON(items)
}

// handleHistoryAction runs a per-entry action
func (s *Server) handleHistoryAction(c *fiber.Ctx) error {
	id := c.Params("id")
	ctx := c.UserContext()

	var err error
	switch action := c.Params("action"); action {
	case "play-question":
		err = s.d.Panel.PlayQuestion(ctx, id)
	case "play-answer":
		err = s.d.Panel.PlayAnswer(ctx, id)
	case "speak":
		err = s.d.Panel.Speak(ctx, id)
	case "view":
		err = s.d.Panel.View(id)
	default:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown action " + action})
	}
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"id": id, "ok": true})
}

func (s *Server) handleHistoryExport(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := s.d.Panel.Export(&buf); err != nil {
		return s.fail(c, err)
	}
	c.Attachment("history.json")
	c.Type("json")
	return c.Send(buf.Bytes())
}

// handleDownload streams the latest answer in the requested format
func (s *Server) handleDownload(c *fiber.Ctx) error {
	f, err := llamadoc.ParseFormat(c.Params("format"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	var buf bytes.Buffer
	name, err := s.d.Controller.Download(c.UserContext(), f, &buf)
	if err != nil {
		return s.fail(c, err)
	}
	c.Attachment(name)
	return c.Send(buf.Bytes())
}

// handleEventsWS streams dashboard events to one client
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	client := hub.NewClient(s.d.Hub, conn)
	if client == nil {
		return
	}
	client.Run()
}
