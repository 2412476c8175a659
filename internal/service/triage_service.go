package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/pkg/util"
)

// Routing threshold below which no automated path is trusted.
const minRoutableConfidence = 0.6

const orchestratorAgentID = "triage-orchestrator"

// TicketClassifier sorts raw ticket text into a support category.
type TicketClassifier interface {
	Classify(ctx context.Context, text string) domain.Classification
}

// Diagnoser produces a ranked hypothesis set for a classified ticket.
type Diagnoser interface {
	Diagnose(ctx context.Context, ticketText string, classification domain.Classification, merchant *domain.Merchant) domain.DiagnosisResult
}

// GuidanceRetriever surfaces documentation excerpts for guidance replies.
type GuidanceRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}

// TriageService runs the intake, classification, routing and approval
// workflow for merchant support tickets.
type TriageService struct {
	tickets    repository.TicketRepository
	decisions  repository.DecisionRepository
	merchants  repository.MerchantRepository
	classifier TicketClassifier
	engine     Diagnoser
	retriever  GuidanceRetriever
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TriageDependencies bundles collaborators for the triage service.
type TriageDependencies struct {
	TicketRepo   repository.TicketRepository
	DecisionRepo repository.DecisionRepository
	MerchantRepo repository.MerchantRepository
	Classifier   TicketClassifier
	Engine       Diagnoser
	Retriever    GuidanceRetriever
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// TicketCreateInput describes an intake payload.
type TicketCreateInput struct {
	MerchantID string
	Channel    domain.TicketChannel
	Text       string
}

// NewTriageService constructs the service.
func NewTriageService(deps TriageDependencies) *TriageService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TriageService{
		tickets:    deps.TicketRepo,
		decisions:  deps.DecisionRepo,
		merchants:  deps.MerchantRepo,
		classifier: deps.Classifier,
		engine:     deps.Engine,
		retriever:  deps.Retriever,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// CreateTicket ingests a ticket and runs the full triage pipeline:
// classify, route, and either escalate, diagnose, or draft guidance.
// Classification and diagnosis never abort the pipeline; persistence
// failures do, leaving the ticket in ANALYZING for manual pickup.
func (s *TriageService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, util.NewValidationError("ticket text is required", nil)
	}
	channel := input.Channel
	if channel == "" {
		channel = domain.ChannelAutoDetected
	}

	merchant, err := s.merchants.GetByID(ctx, input.MerchantID)
	if err != nil {
		return nil, util.ToDomainError(err)
	}

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		MerchantID:  merchant.ID,
		Channel:     channel,
		RawText:     text,
		Status:      domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, util.ToDomainError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    orchestratorAgentID,
		Payload: events.TicketCreatedPayload{
			MerchantID: merchant.ID,
			Channel:    channel,
			TextLength: len(text),
		},
	})

	if err := s.transition(ctx, ticket, domain.TicketStatusAnalyzing, "intake"); err != nil {
		return nil, err
	}

	classification := s.classifier.Classify(ctx, text)
	category := classification.Category
	confidence := classification.Confidence
	urgency := classification.Urgency
	ticket.Classification = &category
	ticket.Confidence = &confidence
	ticket.Urgency = &urgency
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, util.ToDomainError(err)
	}
	if s.metrics != nil {
		s.metrics.RecordClassification(string(category))
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClassified,
		TicketID: ticket.ID,
		Actor:    orchestratorAgentID,
		Payload: events.TicketClassifiedPayload{
			Category:   category,
			Confidence: confidence,
			Urgency:    urgency,
		},
	})

	if err := s.route(ctx, ticket, merchant, classification); err != nil {
		return nil, err
	}
	return ticket, nil
}

// route picks the post-classification path. Confidence below the routing
// threshold always escalates, regardless of category.
func (s *TriageService) route(ctx context.Context, ticket *domain.Ticket, merchant *domain.Merchant, classification domain.Classification) error {
	switch {
	case classification.Confidence < minRoutableConfidence:
		s.publishRouted(ctx, ticket.ID, "escalate", classification)
		return s.escalate(ctx, ticket, "classification confidence below routing threshold")
	case classification.Category.IsTechnical():
		s.publishRouted(ctx, ticket.ID, "diagnose", classification)
		return s.diagnose(ctx, ticket, merchant, classification)
	default:
		s.publishRouted(ctx, ticket.ID, "guidance", classification)
		return s.draftGuidance(ctx, ticket)
	}
}

func (s *TriageService) diagnose(ctx context.Context, ticket *domain.Ticket, merchant *domain.Merchant, classification domain.Classification) error {
	result := s.engine.Diagnose(ctx, ticket.RawText, classification, merchant)
	if s.metrics != nil {
		s.metrics.RecordDiagnosis(result.Degraded)
	}

	decision := &domain.Decision{
		TicketID:       ticket.ID,
		AgentID:        orchestratorAgentID,
		Diagnosis:      result,
		ProposedAction: result.RecommendedAction,
		RiskLevel:      riskFor(classification, result),
	}
	if err := s.decisions.Create(ctx, decision); err != nil {
		return util.ToDomainError(err)
	}

	rootCause := result.RootCause
	ticket.RootCause = &rootCause
	if err := s.transition(ctx, ticket, domain.TicketStatusDiagnosed, "diagnosis recorded"); err != nil {
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDiagnosed,
		TicketID: ticket.ID,
		Actor:    orchestratorAgentID,
		Payload: events.TicketDiagnosedPayload{
			DecisionID: decision.ID,
			RootCause:  result.RootCause,
			Degraded:   result.Degraded,
		},
	})
	if result.Degraded {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventDiagnosisDegraded,
			TicketID: ticket.ID,
			Actor:    orchestratorAgentID,
			Payload: events.TicketDiagnosedPayload{
				DecisionID: decision.ID,
				RootCause:  result.RootCause,
				Degraded:   true,
			},
		})
	}

	return s.transition(ctx, ticket, domain.TicketStatusAwaitingApproval, "pending human approval")
}

// draftGuidance answers documentation confusion from the retrieval index
// without invoking the diagnostic engine.
func (s *TriageService) draftGuidance(ctx context.Context, ticket *domain.Ticket) error {
	guidance := "Please consult the merchant documentation portal."
	if s.retriever != nil {
		chunks, err := s.retriever.Retrieve(ctx, ticket.RawText, 3)
		if err != nil {
			s.logger.Warn("guidance retrieval failed", zap.Error(err), zap.String("ticket_id", ticket.ID))
		} else if len(chunks) > 0 {
			var b strings.Builder
			b.WriteString("Relevant documentation:\n")
			for _, chunk := range chunks {
				fmt.Fprintf(&b, "- [%s] %s\n", chunk.Chunk.Source, chunk.Chunk.Content)
			}
			guidance = b.String()
		}
	}
	ticket.ResolutionAction = &guidance
	return s.transition(ctx, ticket, domain.TicketStatusAnalyzed, "guidance drafted")
}

func (s *TriageService) escalate(ctx context.Context, ticket *domain.Ticket, reason string) error {
	now := time.Now()
	ticket.ResolvedAt = &now
	if err := s.transition(ctx, ticket, domain.TicketStatusEscalated, reason); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordEscalation()
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: ticket.ID,
		Actor:    orchestratorAgentID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusAnalyzing,
			NewStatus: domain.TicketStatusEscalated,
			Comment:   reason,
		},
	})
	return nil
}

// GetTicket fetches a ticket by id.
func (s *TriageService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	return ticket, nil
}

// ListTickets returns a filtered ticket page.
func (s *TriageService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	return tickets, nil
}

// GetDiagnosis returns the latest decision recorded for a ticket.
func (s *TriageService) GetDiagnosis(ctx context.Context, ticketID string) (*domain.Decision, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, util.ToDomainError(err)
	}
	decision, err := s.decisions.LatestByTicket(ctx, ticketID)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	return decision, nil
}

// ListDecisions returns the newest decisions across all tickets.
func (s *TriageService) ListDecisions(ctx context.Context, limit, offset int) ([]domain.Decision, error) {
	decisions, err := s.decisions.List(ctx, limit, offset)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	return decisions, nil
}

// Approve accepts the proposed action on a ticket awaiting review and
// resolves the ticket.
func (s *TriageService) Approve(ctx context.Context, ticketID, approver string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	if ticket.Status.IsTerminal() {
		return nil, util.NewConflict(fmt.Sprintf("ticket is already closed as %s", ticket.Status), nil)
	}
	if !isValidTransition(ticket.Status, domain.TicketStatusResolved) {
		return nil, util.NewConflict(fmt.Sprintf("ticket in status %s cannot be approved", ticket.Status), nil)
	}

	if ticket.Status == domain.TicketStatusAwaitingApproval || ticket.Status == domain.TicketStatusDiagnosed {
		decision, err := s.decisions.LatestByTicket(ctx, ticketID)
		if err != nil {
			return nil, util.ToDomainError(err)
		}
		if err := s.decisions.MarkExecuted(ctx, decision.ID, domain.ActionHumanApproved, approver); err != nil {
			return nil, util.ToDomainError(err)
		}
		action := decision.ProposedAction
		ticket.ResolutionAction = &action
	}

	now := time.Now()
	ticket.ResolvedAt = &now
	if err := s.transition(ctx, ticket, domain.TicketStatusResolved, "approved by "+approver); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: ticket.ID,
		Actor:    approver,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusAwaitingApproval,
			NewStatus: domain.TicketStatusResolved,
		},
	})
	return ticket, nil
}

// Reject declines the proposed action and escalates the ticket to a
// human specialist.
func (s *TriageService) Reject(ctx context.Context, ticketID, reviewer, reason string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.ToDomainError(err)
	}
	if ticket.Status.IsTerminal() {
		return nil, util.NewConflict(fmt.Sprintf("ticket is already closed as %s", ticket.Status), nil)
	}
	if !isValidTransition(ticket.Status, domain.TicketStatusEscalated) {
		return nil, util.NewConflict(fmt.Sprintf("ticket in status %s cannot be rejected", ticket.Status), nil)
	}

	if ticket.Status == domain.TicketStatusAwaitingApproval || ticket.Status == domain.TicketStatusDiagnosed {
		decision, err := s.decisions.LatestByTicket(ctx, ticketID)
		if err != nil {
			return nil, util.ToDomainError(err)
		}
		if err := s.decisions.MarkExecuted(ctx, decision.ID, domain.ActionRejected, reviewer); err != nil {
			return nil, util.ToDomainError(err)
		}
	}

	now := time.Now()
	ticket.ResolvedAt = &now
	if err := s.transition(ctx, ticket, domain.TicketStatusEscalated, reason); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordEscalation()
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: ticket.ID,
		Actor:    reviewer,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusAwaitingApproval,
			NewStatus: domain.TicketStatusEscalated,
			Comment:   reason,
		},
	})
	return ticket, nil
}

func (s *TriageService) transition(ctx context.Context, ticket *domain.Ticket, next domain.TicketStatus, comment string) error {
	if !isValidTransition(ticket.Status, next) {
		return util.NewConflict(fmt.Sprintf("invalid transition %s -> %s", ticket.Status, next), nil)
	}
	ticket.Status = next
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return util.ToDomainError(err)
	}
	s.logger.Info("ticket transitioned",
		zap.String("ticket_id", ticket.ID),
		zap.String("status", string(next)),
		zap.String("comment", comment))
	return nil
}

func (s *TriageService) publishRouted(ctx context.Context, ticketID, route string, classification domain.Classification) {
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketRouted,
		TicketID: ticketID,
		Actor:    orchestratorAgentID,
		Payload: events.TicketRoutedPayload{
			Route:      route,
			Category:   classification.Category,
			Confidence: classification.Confidence,
		},
	})
}

func (s *TriageService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketKey() string {
	return "TRG-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// riskFor grades the blast radius of acting on a diagnosis. Degraded
// results always read as high risk.
func riskFor(classification domain.Classification, result domain.DiagnosisResult) domain.RiskLevel {
	if result.Degraded {
		return domain.RiskHigh
	}
	switch {
	case classification.Urgency >= 9:
		return domain.RiskCritical
	case classification.Urgency >= 7:
		return domain.RiskHigh
	case classification.Urgency >= 4:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:             {domain.TicketStatusAnalyzing},
	domain.TicketStatusAnalyzing:        {domain.TicketStatusAnalyzed, domain.TicketStatusDiagnosed, domain.TicketStatusEscalated},
	domain.TicketStatusAnalyzed:         {domain.TicketStatusResolved, domain.TicketStatusEscalated},
	domain.TicketStatusDiagnosed:        {domain.TicketStatusAwaitingApproval, domain.TicketStatusResolved, domain.TicketStatusEscalated},
	domain.TicketStatusAwaitingApproval: {domain.TicketStatusResolved, domain.TicketStatusEscalated},
	domain.TicketStatusResolved:         {},
	domain.TicketStatusEscalated:        {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
