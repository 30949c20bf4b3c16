package api

import (
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/thinkstream/pkg/logger"
	"github.com/papercomputeco/thinkstream/pkg/session/inmemory"
)

// Server is the thinkstream API server.
type Server struct {
	config Config
	deps   Dependencies
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. Without a session store an in-memory
// one is used.
func NewServer(config Config, deps Dependencies, log *slog.Logger) (*Server, error) {
	if config.ListenAddr == "" {
		return nil, errors.New("listen address is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if deps.Sessions == nil {
		deps.Sessions = inmemory.NewStore()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	s := &Server{
		config: config,
		deps:   deps,
		logger: log,
		app:    app,
	}

	app.Get("/api/healthcheck", s.handleHealthcheck)

	app.Post("/api/careplan/test", s.handleCarePlanTest)
	app.Post("/api/careplan/initiate-stream", s.handleInitiateStream)
	app.Get("/api/careplan/stream", s.handleCarePlanStream)

	app.Post("/api/chatbot", s.handleChatbot)
	app.All("/api/submit-lead", s.handleSubmitLead)

	app.Get("/api/generations", s.handleListGenerations)
	app.Get("/api/generations/:id", s.handleGetGeneration)
	app.Get("/api/leads", s.handleListLeads)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server", "listen", listener.Addr().String())
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
