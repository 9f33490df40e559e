package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"leadagent/app/model"
	"leadagent/app/service/checkpoint"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type turnRequest struct {
	Message *string `json:"message"`
}

type checkpointResponse struct {
	Revision  string              `json:"revision"`
	Parent    string              `json:"parent,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	Metadata  checkpoint.Metadata `json:"metadata"`
	State     *model.State        `json:"state,omitempty"`
}

type messageResponse struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Intents   json.RawMessage `json:"intents,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func toCheckpointResponse(cp *checkpoint.Checkpoint) checkpointResponse {
	return checkpointResponse{
		Revision:  cp.Revision,
		Parent:    cp.Parent,
		CreatedAt: cp.CreatedAt,
		Metadata:  cp.Metadata,
	}
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) processTurn(c *fiber.Ctx) error {
	var req turnRequest

	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return respondError(c, fiber.StatusBadRequest, "invalid_body", errors.New("body must be a JSON object"))
		}
	}

	sessionID := c.Params("session_id")

	result, err := s.convs.ProcessTurn(c.UserContext(), sessionID, req.Message)
	if err != nil {
		slog.Error("Turn failed",
			"session_id", sessionID,
			"error", err,
		)
		return turnError(c, err)
	}

	return c.JSON(result)
}

func (s *Server) listCheckpoints(c *fiber.Ctx) error {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return respondError(c, fiber.StatusBadRequest, "invalid_limit", errors.New("limit must be a positive integer"))
		}
		limit = min(parsed, maxHistoryLimit)
	}

	history, err := s.convs.History(c.UserContext(), c.Params("session_id"), limit)
	if err != nil {
		return turnError(c, err)
	}

	return c.JSON(fiber.Map{
		"checkpoints": lo.Map(history, func(cp *checkpoint.Checkpoint, _ int) checkpointResponse {
			return toCheckpointResponse(cp)
		}),
	})
}

func (s *Server) getCheckpoint(c *fiber.Ctx) error {
	state, cp, err := s.convs.StateAt(c.UserContext(), c.Params("session_id"), c.Params("revision"))
	if err != nil {
		return turnError(c, err)
	}
	if cp == nil {
		return respondError(c, fiber.StatusNotFound, "not_found", errors.New("checkpoint not found"))
	}

	resp := toCheckpointResponse(cp)
	resp.State = state

	return c.JSON(resp)
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	messages, err := s.convs.Transcript(c.UserContext(), c.Params("session_id"))
	if err != nil {
		return turnError(c, err)
	}
	if messages == nil {
		return respondError(c, fiber.StatusNotFound, "not_found", errors.New("conversation not found"))
	}

	return c.JSON(fiber.Map{
		"messages": lo.Map(messages, func(m model.Message, _ int) messageResponse {
			return messageResponse{
				Role:      m.Role,
				Content:   m.Content,
				Intents:   json.RawMessage(m.Intents),
				CreatedAt: m.CreatedAt,
			}
		}),
	})
}
