package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"leadagent/app/config"
	"leadagent/app/model"
	"leadagent/app/service/checkpoint"
	"leadagent/app/service/conversation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/samber/do"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// Conversations is the orchestrator surface exposed over HTTP.
type Conversations interface {
	ProcessTurn(ctx context.Context, sessionID string, message *string) (*conversation.TurnResult, error)
	History(ctx context.Context, sessionID string, limit int) ([]*checkpoint.Checkpoint, error)
	StateAt(ctx context.Context, sessionID, revision string) (*model.State, *checkpoint.Checkpoint, error)
	Transcript(ctx context.Context, sessionID string) ([]model.Message, error)
}

type Server struct {
	app    *fiber.App
	listen string
	convs  Conversations
}

func New(di *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewServer(do.MustInvoke[*conversation.Service](di), cfg.HTTP.Listen), nil
}

func NewServer(convs Conversations, listen string) *Server {
	s := &Server{
		listen: listen,
		convs:  convs,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "leadagent",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		BodyLimit:             64 * 1024,
		ErrorHandler:          errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(requestLog)

	s.app.Get("/health", s.health)

	s.app.Post("/api/v1/chat/:session_id", s.processTurn)
	s.app.Get("/api/v1/chat/:session_id/checkpoints", s.listCheckpoints)
	s.app.Get("/api/v1/chat/:session_id/checkpoints/:revision", s.getCheckpoint)
	s.app.Get("/api/v1/chat/:session_id/messages", s.listMessages)

	return s
}

// App exposes the fiber app for in-process requests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()

		if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("HTTP server shutdown failed", "error", err)
		}
	}()

	slog.Info("HTTP server listening", "addr", s.listen)

	if err := s.app.Listen(s.listen); err != nil {
		slog.Error("HTTP server failed", "error", err)
	}
}

func requestLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	slog.Debug("HTTP request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)

	return err
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func respondError(c *fiber.Ctx, status int, code string, err error) error {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	return c.Status(status).JSON(errorEnvelope{
		Error: apiError{
			Message: msg,
			Code:    code,
		},
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return respondError(c, fe.Code, "http_error", fe)
	}

	slog.Error("Unhandled HTTP error", "path", c.Path(), "error", err)

	return respondError(c, fiber.StatusInternalServerError, "internal", errors.New("internal error"))
}

// turnError maps orchestrator failures to HTTP statuses.
func turnError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, conversation.ErrInvalidSession):
		return respondError(c, fiber.StatusBadRequest, "invalid_session", err)
	case errors.Is(err, conversation.ErrGeneration):
		return respondError(c, fiber.StatusBadGateway, "generation_failed", conversation.ErrGeneration)
	case errors.Is(err, conversation.ErrPersistence):
		return respondError(c, fiber.StatusServiceUnavailable, "persistence_failed", conversation.ErrPersistence)
	default:
		return err
	}
}
