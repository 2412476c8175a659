package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// DecisionRepository encapsulates agent decision persistence. The table is
// append-only; corrections arrive as new rows, never as updates to the
// stored diagnosis.
type DecisionRepository interface {
	Create(ctx context.Context, decision *domain.Decision) error
	MarkExecuted(ctx context.Context, id string, actionType domain.ActionType, executedBy string) error
	GetByID(ctx context.Context, id string) (*domain.Decision, error)
	LatestByTicket(ctx context.Context, ticketID string) (*domain.Decision, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Decision, error)
	List(ctx context.Context, limit, offset int) ([]domain.Decision, error)
}

type decisionRepository struct {
	pool *pgxpool.Pool
}

// NewDecisionRepository instantiates repository.
func NewDecisionRepository(pool *pgxpool.Pool) DecisionRepository {
	return &decisionRepository{pool: pool}
}

func (r *decisionRepository) Create(ctx context.Context, decision *domain.Decision) error {
	reasoning, err := json.Marshal(decision.Diagnosis)
	if err != nil {
		return fmt.Errorf("marshal diagnosis: %w", err)
	}
	action, err := json.Marshal(map[string]string{"action": decision.ProposedAction})
	if err != nil {
		return fmt.Errorf("marshal proposed action: %w", err)
	}

	const query = `
        INSERT INTO agent_decisions (ticket_id, agent_id, reasoning_chain, proposed_action, action_type, risk_level)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		decision.TicketID,
		decision.AgentID,
		reasoning,
		action,
		decision.ActionType,
		decision.RiskLevel,
	).Scan(&decision.ID, &decision.CreatedAt)
}

func (r *decisionRepository) MarkExecuted(ctx context.Context, id string, actionType domain.ActionType, executedBy string) error {
	const query = `
        UPDATE agent_decisions SET action_type=$1, executed_at=NOW(), executed_by=$2
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, actionType, executedBy, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *decisionRepository) GetByID(ctx context.Context, id string) (*domain.Decision, error) {
	const query = `
        SELECT id, ticket_id, agent_id, reasoning_chain, proposed_action, action_type, risk_level, created_at, executed_at, executed_by
        FROM agent_decisions WHERE id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanDecision(row)
}

func (r *decisionRepository) LatestByTicket(ctx context.Context, ticketID string) (*domain.Decision, error) {
	const query = `
        SELECT id, ticket_id, agent_id, reasoning_chain, proposed_action, action_type, risk_level, created_at, executed_at, executed_by
        FROM agent_decisions WHERE ticket_id=$1
        ORDER BY created_at DESC LIMIT 1`
	row := r.pool.QueryRow(ctx, query, ticketID)
	return scanDecision(row)
}

func (r *decisionRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Decision, error) {
	const query = `
        SELECT id, ticket_id, agent_id, reasoning_chain, proposed_action, action_type, risk_level, created_at, executed_at, executed_by
        FROM agent_decisions WHERE ticket_id=$1
        ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDecisions(rows)
}

func (r *decisionRepository) List(ctx context.Context, limit, offset int) ([]domain.Decision, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, ticket_id, agent_id, reasoning_chain, proposed_action, action_type, risk_level, created_at, executed_at, executed_by
        FROM agent_decisions
        ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDecisions(rows)
}

func scanDecision(row pgx.Row) (*domain.Decision, error) {
	var (
		decision  domain.Decision
		reasoning []byte
		action    []byte
	)
	if err := row.Scan(
		&decision.ID,
		&decision.TicketID,
		&decision.AgentID,
		&reasoning,
		&action,
		&decision.ActionType,
		&decision.RiskLevel,
		&decision.CreatedAt,
		&decision.ExecutedAt,
		&decision.ExecutedBy,
	); err != nil {
		return nil, err
	}
	if err := unmarshalDecisionPayloads(&decision, reasoning, action); err != nil {
		return nil, err
	}
	return &decision, nil
}

func scanDecisions(rows pgx.Rows) ([]domain.Decision, error) {
	var result []domain.Decision
	for rows.Next() {
		var (
			decision  domain.Decision
			reasoning []byte
			action    []byte
		)
		if err := rows.Scan(
			&decision.ID,
			&decision.TicketID,
			&decision.AgentID,
			&reasoning,
			&action,
			&decision.ActionType,
			&decision.RiskLevel,
			&decision.CreatedAt,
			&decision.ExecutedAt,
			&decision.ExecutedBy,
		); err != nil {
			return nil, err
		}
		if err := unmarshalDecisionPayloads(&decision, reasoning, action); err != nil {
			return nil, err
		}
		result = append(result, decision)
	}
	return result, rows.Err()
}

func unmarshalDecisionPayloads(decision *domain.Decision, reasoning, action []byte) error {
	if len(reasoning) > 0 {
		if err := json.Unmarshal(reasoning, &decision.Diagnosis); err != nil {
			return fmt.Errorf("unmarshal diagnosis: %w", err)
		}
	}
	if len(action) > 0 {
		var wrapper struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(action, &wrapper); err != nil {
			return fmt.Errorf("unmarshal proposed action: %w", err)
		}
		decision.ProposedAction = wrapper.Action
	}
	return nil
}
