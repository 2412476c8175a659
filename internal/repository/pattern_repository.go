package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// PatternRepository encapsulates known-error pattern persistence. The
// pattern matcher loads the whole library at startup and holds it in
// memory; writes here only feed the next reload.
type PatternRepository interface {
	Upsert(ctx context.Context, pattern *domain.Pattern) error
	ListAll(ctx context.Context) ([]domain.Pattern, error)
	RecordOccurrence(ctx context.Context, signature string) error
}

type patternRepository struct {
	pool *pgxpool.Pool
}

// NewPatternRepository instantiates repository.
func NewPatternRepository(pool *pgxpool.Pool) PatternRepository {
	return &patternRepository{pool: pool}
}

func (r *patternRepository) Upsert(ctx context.Context, pattern *domain.Pattern) error {
	const query = `
        INSERT INTO patterns (error_signature, error_regex, solution_template, success_rate, frequency)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (error_signature) DO UPDATE
            SET error_regex=EXCLUDED.error_regex,
                solution_template=EXCLUDED.solution_template,
                success_rate=EXCLUDED.success_rate
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		pattern.Signature,
		pattern.Regex,
		pattern.Solution,
		pattern.SuccessRate,
		pattern.Frequency,
	).Scan(&pattern.ID)
}

func (r *patternRepository) ListAll(ctx context.Context) ([]domain.Pattern, error) {
	const query = `
        SELECT id, error_signature, error_regex, solution_template, success_rate, frequency
        FROM patterns ORDER BY error_signature`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Pattern
	for rows.Next() {
		var pattern domain.Pattern
		if err := rows.Scan(
			&pattern.ID,
			&pattern.Signature,
			&pattern.Regex,
			&pattern.Solution,
			&pattern.SuccessRate,
			&pattern.Frequency,
		); err != nil {
			return nil, err
		}
		result = append(result, pattern)
	}
	return result, rows.Err()
}

func (r *patternRepository) RecordOccurrence(ctx context.Context, signature string) error {
	const query = `
        UPDATE patterns SET frequency=frequency+1, last_occurred=NOW()
        WHERE error_signature=$1`
	cmd, err := r.pool.Exec(ctx, query, signature)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
