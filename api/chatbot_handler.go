package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/thinkstream/pkg/chatbot"
	"github.com/papercomputeco/thinkstream/pkg/llm"
)

// handleChatbot handles POST /api/chatbot.
func (s *Server) handleChatbot(c *fiber.Ctx) error {
	if s.deps.Chatbot == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "chatbot is not configured"})
	}

	var req chatbot.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	resp, err := s.deps.Chatbot.Respond(c.Context(), &req)
	switch {
	case errors.Is(err, chatbot.ErrEmptyMessage):
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "Message is required"})
	case err != nil:
		s.logger.Error("chatbot request failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Failed to process request"})
	}
	return c.JSON(resp)
}
