package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/thinkstream/pkg/lead"
)

// LeadResponse is the body of POST /api/submit-lead.
type LeadResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// handleSubmitLead accepts a lead from the website form. Delivery to the
// CRM happens in the background.
func (s *Server) handleSubmitLead(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		c.Set(fiber.HeaderAllow, fiber.MethodPost)
		return c.Status(fiber.StatusMethodNotAllowed).JSON(LeadResponse{Message: "Method not allowed"})
	}
	if s.deps.Leads == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(LeadResponse{Message: "Server configuration error"})
	}

	var l lead.Lead
	if err := c.BodyParser(&l); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(LeadResponse{Message: "invalid request body"})
	}
	if l.Source == "" {
		l.Source = lead.SourceForm
	}

	err := s.deps.Leads.Dispatch(&l)
	var verr *lead.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(LeadResponse{
			Message: strings.Join(verr.Problems, "; "),
			Errors:  verr.Problems,
		})
	case err != nil:
		s.logger.Error("failed to submit lead", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(LeadResponse{Message: "Error submitting lead"})
	}

	return c.JSON(LeadResponse{Success: true, Message: "Lead submitted successfully"})
}
