package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/service"
)

// DecisionsHandler exposes the audit trail of agent decisions.
type DecisionsHandler struct {
	service *service.TriageService
}

// NewDecisionsHandler constructs handler.
func NewDecisionsHandler(triageService *service.TriageService) *DecisionsHandler {
	return &DecisionsHandler{service: triageService}
}

// ListDecisions GET /v1/decisions.
func (h *DecisionsHandler) ListDecisions(c *fiber.Ctx) error {
	decisions, err := h.service.ListDecisions(c.Context(),
		parseIntQuery(c, "limit", 20),
		parseIntQuery(c, "offset", 0))
	if err != nil {
		return err
	}
	items := make([]dto.DecisionSummary, 0, len(decisions))
	for i := range decisions {
		items = append(items, dto.FromDecision(&decisions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
