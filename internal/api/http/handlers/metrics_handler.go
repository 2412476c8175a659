package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/breaker"
	"github.com/spec-kit/triage-service/internal/observability"
)

// MetricsHandler exposes pipeline counters and breaker state.
type MetricsHandler struct {
	metrics *observability.Metrics
	breaker *breaker.Breaker
}

// NewMetricsHandler returns a new handler instance.
func NewMetricsHandler(metrics *observability.Metrics, llmBreaker *breaker.Breaker) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, breaker: llmBreaker}
}

// Summary GET /v1/metrics/summary.
func (h *MetricsHandler) Summary(c *fiber.Ctx) error {
	response := fiber.Map{"data": h.metrics.Snapshot()}
	if h.breaker != nil {
		response["breaker"] = fiber.Map{"reasoning_service": string(h.breaker.State())}
	}
	return c.JSON(response)
}
