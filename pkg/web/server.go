// Package web provides the LlamaDoc voice dashboard: a REST API driving
// the assistant and a WebSocket event stream mirroring its surfaces.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/llamadoc-voice/pkg/assistant"
	"github.com/teslashibe/llamadoc-voice/pkg/history"
	"github.com/teslashibe/llamadoc-voice/pkg/hub"
	"github.com/teslashibe/llamadoc-voice/pkg/settings"
)

// DefaultBodyLimit bounds request bodies, which carry PDF uploads.
const DefaultBodyLimit = 50 << 20

// Deps are the collaborators the dashboard drives.
type Deps struct {
	Controller *assistant.Controller
	Panel      *history.Panel
	Settings   *settings.Manager
	Hub        *hub.Hub
	UI         *UI
	Logger     *slog.Logger
}

// Config holds server options.
type Config struct {
	// Addr is the listen address, e.g. ":8181".
	Addr string

	// StaticDir holds the dashboard front end; empty disables it.
	StaticDir string

	BodyLimit int
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	cfg    Config
	d      Deps
	logger *slog.Logger
}

// ErrMissingDependency is returned by NewServer when a required
// collaborator is nil.
var ErrMissingDependency = errors.New("web: missing dependency")

// NewServer creates a new web dashboard server
func NewServer(cfg Config, d Deps) (*Server, error) {
	if d.Controller == nil || d.Panel == nil || d.Settings == nil || d.Hub == nil || d.UI == nil {
		return nil, ErrMissingDependency
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	s := &Server{
		cfg:    cfg,
		d:      d,
		logger: d.Logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "LlamaDoc Voice",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/upload", s.handleUpload)
	api.Post("/ask", s.handleAsk)
	api.Post("/mic/toggle", s.handleMicToggle)
	api.Post("/mute/toggle", s.handleMuteToggle)
	api.Get("/settings", s.handleGetSettings)
	api.Put("/settings", s.handlePutSettings)
	api.Get("/history", s.handleHistory)
	api.Get("/history/export", s.handleHistoryExport)
	api.Post("/history/:id/:action", s.handleHistoryAction)
	api.Get("/download/:format", s.handleDownload)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the event hub and serves on the configured address until
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the event hub and serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.d.Hub.Run(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("shutdown failed", "error", err)
		}
	}()
	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
