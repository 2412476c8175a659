package dto

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// CreateTicketRequest is the intake payload.
type CreateTicketRequest struct {
	MerchantID string `json:"merchant_id"`
	Channel    string `json:"channel"`
	Text       string `json:"text"`
}

// RejectRequest carries the reviewer's reason for declining an action.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// TicketSummary is the wire representation of a ticket.
type TicketSummary struct {
	ID               string     `json:"id"`
	ExternalKey      string     `json:"external_key"`
	MerchantID       string     `json:"merchant_id"`
	Channel          string     `json:"channel"`
	RawText          string     `json:"raw_text"`
	Classification   *string    `json:"classification,omitempty"`
	Confidence       *float64   `json:"confidence,omitempty"`
	Urgency          *int       `json:"urgency,omitempty"`
	Status           string     `json:"status"`
	RootCause        *string    `json:"root_cause,omitempty"`
	ResolutionAction *string    `json:"resolution_action,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

// FromTicket maps a domain ticket to its wire form.
func FromTicket(ticket *domain.Ticket) TicketSummary {
	summary := TicketSummary{
		ID:               ticket.ID,
		ExternalKey:      ticket.ExternalKey,
		MerchantID:       ticket.MerchantID,
		Channel:          string(ticket.Channel),
		RawText:          ticket.RawText,
		Confidence:       ticket.Confidence,
		Urgency:          ticket.Urgency,
		Status:           string(ticket.Status),
		RootCause:        ticket.RootCause,
		ResolutionAction: ticket.ResolutionAction,
		CreatedAt:        ticket.CreatedAt,
		UpdatedAt:        ticket.UpdatedAt,
		ResolvedAt:       ticket.ResolvedAt,
	}
	if ticket.Classification != nil {
		category := string(*ticket.Classification)
		summary.Classification = &category
	}
	return summary
}

// DecisionSummary is the wire representation of an agent decision.
type DecisionSummary struct {
	ID             string                 `json:"id"`
	TicketID       string                 `json:"ticket_id"`
	AgentID        string                 `json:"agent_id"`
	Diagnosis      domain.DiagnosisResult `json:"diagnosis"`
	ProposedAction string                 `json:"proposed_action"`
	ActionType     *string                `json:"action_type,omitempty"`
	RiskLevel      string                 `json:"risk_level"`
	CreatedAt      time.Time              `json:"created_at"`
	ExecutedAt     *time.Time             `json:"executed_at,omitempty"`
	ExecutedBy     *string                `json:"executed_by,omitempty"`
}

// FromDecision maps a domain decision to its wire form.
func FromDecision(decision *domain.Decision) DecisionSummary {
	summary := DecisionSummary{
		ID:             decision.ID,
		TicketID:       decision.TicketID,
		AgentID:        decision.AgentID,
		Diagnosis:      decision.Diagnosis,
		ProposedAction: decision.ProposedAction,
		RiskLevel:      string(decision.RiskLevel),
		CreatedAt:      decision.CreatedAt,
		ExecutedAt:     decision.ExecutedAt,
		ExecutedBy:     decision.ExecutedBy,
	}
	if decision.ActionType != nil {
		actionType := string(*decision.ActionType)
		summary.ActionType = &actionType
	}
	return summary
}
