package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/repository"
)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
	nextID  int
	// statusTrail records every status written via Update.
	statusTrail []domain.TicketStatus
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.nextID++
	ticket.ID = fmt.Sprintf("ticket-%d", r.nextID)
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	r.statusTrail = append(r.statusTrail, ticket.Status)
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	for _, ticket := range r.tickets {
		if ticket.ExternalKey == key {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]domain.Ticket, error) {
	return nil, nil
}

func (r *fakeTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		result = append(result, *ticket)
	}
	return result, nil
}

type fakeDecisionRepo struct {
	decisions []*domain.Decision
	nextID    int
}

func (r *fakeDecisionRepo) Create(ctx context.Context, decision *domain.Decision) error {
	r.nextID++
	decision.ID = fmt.Sprintf("decision-%d", r.nextID)
	copied := *decision
	r.decisions = append(r.decisions, &copied)
	return nil
}

func (r *fakeDecisionRepo) MarkExecuted(ctx context.Context, id string, actionType domain.ActionType, executedBy string) error {
	for _, decision := range r.decisions {
		if decision.ID == id {
			decision.ActionType = &actionType
			decision.ExecutedBy = &executedBy
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeDecisionRepo) GetByID(ctx context.Context, id string) (*domain.Decision, error) {
	for _, decision := range r.decisions {
		if decision.ID == id {
			copied := *decision
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeDecisionRepo) LatestByTicket(ctx context.Context, ticketID string) (*domain.Decision, error) {
	for i := len(r.decisions) - 1; i >= 0; i-- {
		if r.decisions[i].TicketID == ticketID {
			copied := *r.decisions[i]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeDecisionRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Decision, error) {
	var result []domain.Decision
	for _, decision := range r.decisions {
		if decision.TicketID == ticketID {
			result = append(result, *decision)
		}
	}
	return result, nil
}

func (r *fakeDecisionRepo) List(ctx context.Context, limit, offset int) ([]domain.Decision, error) {
	var result []domain.Decision
	for _, decision := range r.decisions {
		result = append(result, *decision)
	}
	return result, nil
}

type fakeMerchantRepo struct {
	merchants map[string]*domain.Merchant
}

func (r *fakeMerchantRepo) Create(ctx context.Context, merchant *domain.Merchant) error { return nil }
func (r *fakeMerchantRepo) Update(ctx context.Context, merchant *domain.Merchant) error { return nil }

func (r *fakeMerchantRepo) GetByID(ctx context.Context, id string) (*domain.Merchant, error) {
	merchant, ok := r.merchants[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return merchant, nil
}

func (r *fakeMerchantRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.Merchant, error) {
	return nil, pgx.ErrNoRows
}

type fixedClassifier struct {
	result domain.Classification
}

func (c *fixedClassifier) Classify(ctx context.Context, text string) domain.Classification {
	return c.result
}

type stubEngine struct {
	result domain.DiagnosisResult
	calls  int
}

func (e *stubEngine) Diagnose(ctx context.Context, ticketText string, classification domain.Classification, merchant *domain.Merchant) domain.DiagnosisResult {
	e.calls++
	return e.result
}

type stubGuidanceRetriever struct {
	chunks []domain.ScoredChunk
	err    error
}

func (s *stubGuidanceRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

type triageFixture struct {
	service    *TriageService
	tickets    *fakeTicketRepo
	decisions  *fakeDecisionRepo
	engine     *stubEngine
	eventTypes []events.EventType
}

func healthyDiagnosis() domain.DiagnosisResult {
	return domain.DiagnosisResult{
		Hypotheses: []domain.Hypothesis{
			{Name: "Cert expired", Category: domain.HypothesisConfigError, Confidence: 0.8, Evidence: []string{"webhooks.md_SSL"}},
			{Name: "Platform outage", Category: domain.HypothesisPlatformBug, Confidence: 0.15},
			{Name: "Docs unclear", Category: domain.HypothesisDocsGap, Confidence: 0.05},
		},
		RootCause:         "Expired SSL certificate on webhook endpoint",
		RecommendedAction: "Renew the certificate and replay failed webhooks",
	}
}

func newTriageFixture(t *testing.T, classification domain.Classification, diagnosis domain.DiagnosisResult) *triageFixture {
	t.Helper()
	fixture := &triageFixture{
		tickets:   newFakeTicketRepo(),
		decisions: &fakeDecisionRepo{},
		engine:    &stubEngine{result: diagnosis},
	}
	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketClassified,
		events.EventTicketRouted,
		events.EventTicketDiagnosed,
		events.EventDiagnosisDegraded,
		events.EventTicketEscalated,
		events.EventTicketResolved,
	} {
		et := eventType
		dispatcher.Subscribe(et, func(ctx context.Context, event events.Event) error {
			fixture.eventTypes = append(fixture.eventTypes, event.Type)
			return nil
		})
	}
	fixture.service = NewTriageService(TriageDependencies{
		TicketRepo:   fixture.tickets,
		DecisionRepo: fixture.decisions,
		MerchantRepo: &fakeMerchantRepo{merchants: map[string]*domain.Merchant{
			"merchant-1": {ID: "merchant-1", ExternalID: "acme", Tier: domain.TierGrowth, MigrationStage: domain.MigrationInProgress, HealthScore: 0.9},
		}},
		Classifier: &fixedClassifier{result: classification},
		Engine:     fixture.engine,
		Retriever: &stubGuidanceRetriever{chunks: []domain.ScoredChunk{
			{Chunk: domain.DocumentChunk{ID: "webhooks.md_SSL", Content: "Renew the certificate under Settings.", Source: "webhooks.md"}, Score: 0.9},
		}},
		Dispatcher: dispatcher,
	})
	return fixture
}

func (f *triageFixture) sawEvent(eventType events.EventType) bool {
	for _, seen := range f.eventTypes {
		if seen == eventType {
			return true
		}
	}
	return false
}

func TestCreateTicketTechnicalPath(t *testing.T) {
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryWebhookFail, Confidence: 0.92, Urgency: 7},
		healthyDiagnosis())

	ticket, err := fixture.service.CreateTicket(context.Background(), TicketCreateInput{
		MerchantID: "merchant-1",
		Channel:    domain.ChannelEmail,
		Text:       "Webhooks failing with SSL handshake error since yesterday",
	})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusAwaitingApproval, ticket.Status)
	require.Equal(t, domain.CategoryWebhookFail, *ticket.Classification)
	require.InDelta(t, 0.92, *ticket.Confidence, 1e-9)
	require.Equal(t, "Expired SSL certificate on webhook endpoint", *ticket.RootCause)
	require.Equal(t, 1, fixture.engine.calls)

	require.Len(t, fixture.decisions.decisions, 1)
	decision := fixture.decisions.decisions[0]
	require.Equal(t, ticket.ID, decision.TicketID)
	require.Equal(t, domain.RiskHigh, decision.RiskLevel)
	require.Nil(t, decision.ActionType)

	require.Equal(t, []domain.TicketStatus{
		domain.TicketStatusAnalyzing,
		domain.TicketStatusAnalyzing,
		domain.TicketStatusDiagnosed,
		domain.TicketStatusAwaitingApproval,
	}, fixture.tickets.statusTrail)
	require.True(t, fixture.sawEvent(events.EventTicketDiagnosed))
	require.False(t, fixture.sawEvent(events.EventDiagnosisDegraded))
}

func TestCreateTicketLowConfidenceEscalates(t *testing.T) {
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryAPIError, Confidence: 0.4, Urgency: 5},
		healthyDiagnosis())

	ticket, err := fixture.service.CreateTicket(context.Background(), TicketCreateInput{
		MerchantID: "merchant-1",
		Channel:    domain.ChannelChat,
		Text:       "Something is wrong but I am not sure what",
	})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusEscalated, ticket.Status)
	require.NotNil(t, ticket.ResolvedAt)
	require.Equal(t, 0, fixture.engine.calls, "low confidence must bypass diagnosis")
	require.Empty(t, fixture.decisions.decisions)
	require.True(t, fixture.sawEvent(events.EventTicketEscalated))
}

func TestCreateTicketDocsConfusionDraftsGuidance(t *testing.T) {
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryDocsConfusion, Confidence: 0.88, Urgency: 3},
		healthyDiagnosis())

	ticket, err := fixture.service.CreateTicket(context.Background(), TicketCreateInput{
		MerchantID: "merchant-1",
		Channel:    domain.ChannelEmail,
		Text:       "Where do I configure webhook endpoints?",
	})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusAnalyzed, ticket.Status)
	require.Equal(t, 0, fixture.engine.calls)
	require.NotNil(t, ticket.ResolutionAction)
	require.Contains(t, *ticket.ResolutionAction, "webhooks.md")
	require.Contains(t, *ticket.ResolutionAction, "Renew the certificate under Settings.")
}

func TestCreateTicketDegradedDiagnosisStillAdvances(t *testing.T) {
	degraded := healthyDiagnosis()
	degraded.Degraded = true
	degraded.UncertaintyNote = "reasoning service unavailable"
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryCheckoutBreak, Confidence: 0.95, Urgency: 2},
		degraded)

	ticket, err := fixture.service.CreateTicket(context.Background(), TicketCreateInput{
		MerchantID: "merchant-1",
		Channel:    domain.ChannelAPI,
		Text:       "Checkout returns 500",
	})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusAwaitingApproval, ticket.Status)
	require.Equal(t, domain.RiskHigh, fixture.decisions.decisions[0].RiskLevel)
	require.True(t, fixture.sawEvent(events.EventDiagnosisDegraded))
}

func TestCreateTicketRejectsBlankText(t *testing.T) {
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryAPIError, Confidence: 0.9, Urgency: 5},
		healthyDiagnosis())

	_, err := fixture.service.CreateTicket(context.Background(), TicketCreateInput{
		MerchantID: "merchant-1",
		Text:       "   ",
	})
	require.Error(t, err)
	require.Empty(t, fixture.tickets.tickets)
}

func TestCreateTicketUnknownMerchant(t *testing.T) {
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryAPIError, Confidence: 0.9, Urgency: 5},
		healthyDiagnosis())

	_, err := fixture.service.CreateTicket(context.Background(), TicketCreateInput{
		MerchantID: "merchant-missing",
		Text:       "API returns 401",
	})
	require.Error(t, err)
}

func TestApproveResolvesAwaitingTicket(t *testing.T) {
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryWebhookFail, Confidence: 0.92, Urgency: 7},
		healthyDiagnosis())

	ticket, err := fixture.service.CreateTicket(context.Background(), TicketCreateInput{
		MerchantID: "merchant-1",
		Text:       "Webhook SSL failure",
	})
	require.NoError(t, err)

	resolved, err := fixture.service.Approve(context.Background(), ticket.ID, "support-lead")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	require.Equal(t, "Renew the certificate and replay failed webhooks", *resolved.ResolutionAction)

	decision := fixture.decisions.decisions[0]
	require.NotNil(t, decision.ActionType)
	require.Equal(t, domain.ActionHumanApproved, *decision.ActionType)
	require.Equal(t, "support-lead", *decision.ExecutedBy)
	require.True(t, fixture.sawEvent(events.EventTicketResolved))
}

func TestApproveDiagnosedTicketDirectly(t *testing.T) {
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryWebhookFail, Confidence: 0.92, Urgency: 7},
		healthyDiagnosis())

	ticket := &domain.Ticket{MerchantID: "merchant-1", RawText: "Webhook SSL failure", Status: domain.TicketStatusDiagnosed}
	require.NoError(t, fixture.tickets.Create(context.Background(), ticket))
	require.NoError(t, fixture.decisions.Create(context.Background(), &domain.Decision{
		TicketID:       ticket.ID,
		AgentID:        orchestratorAgentID,
		ProposedAction: "Renew the certificate",
	}))

	resolved, err := fixture.service.Approve(context.Background(), ticket.ID, "support-lead")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusResolved, resolved.Status)
	require.Equal(t, "Renew the certificate", *resolved.ResolutionAction)
	require.Equal(t, domain.ActionHumanApproved, *fixture.decisions.decisions[0].ActionType)
}

func TestRejectEscalatesAwaitingTicket(t *testing.T) {
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryWebhookFail, Confidence: 0.92, Urgency: 7},
		healthyDiagnosis())

	ticket, err := fixture.service.CreateTicket(context.Background(), TicketCreateInput{
		MerchantID: "merchant-1",
		Text:       "Webhook SSL failure",
	})
	require.NoError(t, err)

	escalated, err := fixture.service.Reject(context.Background(), ticket.ID, "support-lead", "diagnosis looks wrong")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusEscalated, escalated.Status)

	decision := fixture.decisions.decisions[0]
	require.NotNil(t, decision.ActionType)
	require.Equal(t, domain.ActionRejected, *decision.ActionType)
	require.True(t, fixture.sawEvent(events.EventTicketEscalated))
}

func TestApproveRejectedOnTerminalTicket(t *testing.T) {
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryWebhookFail, Confidence: 0.92, Urgency: 7},
		healthyDiagnosis())

	ticket, err := fixture.service.CreateTicket(context.Background(), TicketCreateInput{
		MerchantID: "merchant-1",
		Text:       "Webhook SSL failure",
	})
	require.NoError(t, err)

	_, err = fixture.service.Approve(context.Background(), ticket.ID, "support-lead")
	require.NoError(t, err)

	_, err = fixture.service.Approve(context.Background(), ticket.ID, "support-lead")
	require.Error(t, err)
	_, err = fixture.service.Reject(context.Background(), ticket.ID, "support-lead", "late")
	require.Error(t, err)
}

func TestApproveGuidanceTicket(t *testing.T) {
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryDocsConfusion, Confidence: 0.88, Urgency: 3},
		healthyDiagnosis())

	ticket, err := fixture.service.CreateTicket(context.Background(), TicketCreateInput{
		MerchantID: "merchant-1",
		Text:       "How do I set up webhooks?",
	})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusAnalyzed, ticket.Status)

	resolved, err := fixture.service.Approve(context.Background(), ticket.ID, "support-agent")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusResolved, resolved.Status)
	require.Empty(t, fixture.decisions.decisions)
}

func TestGetDiagnosisReturnsLatest(t *testing.T) {
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryWebhookFail, Confidence: 0.92, Urgency: 7},
		healthyDiagnosis())

	ticket, err := fixture.service.CreateTicket(context.Background(), TicketCreateInput{
		MerchantID: "merchant-1",
		Text:       "Webhook SSL failure",
	})
	require.NoError(t, err)

	decision, err := fixture.service.GetDiagnosis(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, decision.Diagnosis.Hypotheses, 3)
	require.Equal(t, "Expired SSL certificate on webhook endpoint", decision.Diagnosis.RootCause)
}

func TestGetDiagnosisUnknownTicket(t *testing.T) {
	fixture := newTriageFixture(t,
		domain.Classification{Category: domain.CategoryWebhookFail, Confidence: 0.92, Urgency: 7},
		healthyDiagnosis())

	_, err := fixture.service.GetDiagnosis(context.Background(), "ticket-missing")
	require.Error(t, err)
}

func TestTransitionRules(t *testing.T) {
	require.True(t, isValidTransition(domain.TicketStatusOpen, domain.TicketStatusAnalyzing))
	require.True(t, isValidTransition(domain.TicketStatusAnalyzing, domain.TicketStatusEscalated))
	require.True(t, isValidTransition(domain.TicketStatusDiagnosed, domain.TicketStatusAwaitingApproval))
	require.True(t, isValidTransition(domain.TicketStatusDiagnosed, domain.TicketStatusResolved))
	require.False(t, isValidTransition(domain.TicketStatusOpen, domain.TicketStatusResolved))
	require.False(t, isValidTransition(domain.TicketStatusResolved, domain.TicketStatusAnalyzing))
	require.False(t, isValidTransition(domain.TicketStatusEscalated, domain.TicketStatusResolved))
}
