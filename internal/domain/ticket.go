package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen             TicketStatus = "OPEN"
	TicketStatusAnalyzing        TicketStatus = "ANALYZING"
	TicketStatusAnalyzed         TicketStatus = "ANALYZED"
	TicketStatusDiagnosed        TicketStatus = "DIAGNOSED"
	TicketStatusAwaitingApproval TicketStatus = "AWAITING_APPROVAL"
	TicketStatusResolved         TicketStatus = "RESOLVED"
	TicketStatusEscalated        TicketStatus = "ESCALATED"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusEscalated
}

// TicketChannel enumerates intake channels.
type TicketChannel string

const (
	ChannelEmail        TicketChannel = "email"
	ChannelChat         TicketChannel = "chat"
	ChannelAPI          TicketChannel = "api"
	ChannelAutoDetected TicketChannel = "auto_detected"
)

// Ticket is the aggregate for reported merchant trouble.
type Ticket struct {
	ID               string
	ExternalKey      string
	MerchantID       string
	Channel          TicketChannel
	RawText          string
	Classification   *Category
	Confidence       *float64
	Urgency          *int
	Status           TicketStatus
	RootCause        *string
	ResolutionAction *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ResolvedAt       *time.Time
}
