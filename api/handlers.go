package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/thinkstream/pkg/llm"
	"github.com/papercomputeco/thinkstream/pkg/storage"
)

// HealthResponse is the healthcheck body.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealthcheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: "ok", Message: "Care Plan API is running"})
}

// GenerationList is the body of GET /api/generations.
type GenerationList struct {
	Count       int                   `json:"count"`
	Generations []*storage.Generation `json:"generations"`
}

// handleListGenerations handles GET /api/generations.
// Query parameters:
//   - kind (optional): careplan or chat
//   - limit (optional, default 50): maximum number of records
func (s *Server) handleListGenerations(c *fiber.Ctx) error {
	if s.deps.Storage == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "storage is not configured"})
	}

	limit, ok := parseLimit(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "limit must be a positive integer"})
	}

	gens, err := s.deps.Storage.ListGenerations(c.Context(), storage.ListOptions{
		Kind:  c.Query("kind"),
		Limit: limit,
	})
	if err != nil {
		s.logger.Error("failed to list generations", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list generations"})
	}
	if gens == nil {
		gens = []*storage.Generation{}
	}
	return c.JSON(GenerationList{Count: len(gens), Generations: gens})
}

// handleGetGeneration handles GET /api/generations/:id.
func (s *Server) handleGetGeneration(c *fiber.Ctx) error {
	if s.deps.Storage == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "storage is not configured"})
	}

	g, err := s.deps.Storage.GetGeneration(c.Context(), c.Params("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "generation not found"})
	case err != nil:
		s.logger.Error("failed to get generation", "id", c.Params("id"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get generation"})
	}
	return c.JSON(g)
}

// LeadList is the body of GET /api/leads.
type LeadList struct {
	Count int             `json:"count"`
	Leads []*storage.Lead `json:"leads"`
}

// handleListLeads handles GET /api/leads.
func (s *Server) handleListLeads(c *fiber.Ctx) error {
	if s.deps.Storage == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "storage is not configured"})
	}

	limit, ok := parseLimit(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "limit must be a positive integer"})
	}

	leads, err := s.deps.Storage.ListLeads(c.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list leads", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list leads"})
	}
	if leads == nil {
		leads = []*storage.Lead{}
	}
	return c.JSON(LeadList{Count: len(leads), Leads: leads})
}

func parseLimit(c *fiber.Ctx) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
