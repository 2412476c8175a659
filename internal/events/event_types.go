package events

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketClassified    EventType = "ticket_classified"
	EventTicketRouted        EventType = "ticket_routed"
	EventTicketDiagnosed     EventType = "ticket_diagnosed"
	EventDiagnosisDegraded   EventType = "diagnosis_degraded"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketResolved      EventType = "ticket_resolved"
	EventBreakerStateChanged EventType = "breaker_state_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	MerchantID string               `json:"merchant_id"`
	Channel    domain.TicketChannel `json:"channel"`
	TextLength int                  `json:"text_length"`
}

// TicketClassifiedPayload payload.
type TicketClassifiedPayload struct {
	Category   domain.Category `json:"category"`
	Confidence float64         `json:"confidence"`
	Urgency    int             `json:"urgency"`
}

// TicketRoutedPayload payload. Route is one of escalate, diagnose, guidance.
type TicketRoutedPayload struct {
	Route      string          `json:"route"`
	Category   domain.Category `json:"category"`
	Confidence float64         `json:"confidence"`
}

// TicketDiagnosedPayload payload.
type TicketDiagnosedPayload struct {
	DecisionID string `json:"decision_id"`
	RootCause  string `json:"root_cause"`
	Degraded   bool   `json:"degraded"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// BreakerStateChangedPayload payload.
type BreakerStateChangedPayload struct {
	Dependency string `json:"dependency"`
	OldState   string `json:"old_state"`
	NewState   string `json:"new_state"`
}
