package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// MerchantRepository encapsulates merchant persistence.
type MerchantRepository interface {
	Create(ctx context.Context, merchant *domain.Merchant) error
	Update(ctx context.Context, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id string) (*domain.Merchant, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Merchant, error)
}

type merchantRepository struct {
	pool *pgxpool.Pool
}

// NewMerchantRepository instantiates repository.
func NewMerchantRepository(pool *pgxpool.Pool) MerchantRepository {
	return &merchantRepository{pool: pool}
}

func (r *merchantRepository) Create(ctx context.Context, merchant *domain.Merchant) error {
	const query = `
        INSERT INTO merchants (external_id, tier, migration_stage, config_json, health_score)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		merchant.ExternalID,
		merchant.Tier,
		merchant.MigrationStage,
		merchant.Config,
		merchant.HealthScore,
	).Scan(&merchant.ID, &merchant.CreatedAt)
}

func (r *merchantRepository) Update(ctx context.Context, merchant *domain.Merchant) error {
	const query = `
        UPDATE merchants SET tier=$1, migration_stage=$2, config_json=$3, health_score=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		merchant.Tier,
		merchant.MigrationStage,
		merchant.Config,
		merchant.HealthScore,
		merchant.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *merchantRepository) GetByID(ctx context.Context, id string) (*domain.Merchant, error) {
	const query = `
        SELECT id, external_id, tier, migration_stage, config_json, health_score, created_at, updated_at
        FROM merchants WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *merchantRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Merchant, error) {
	const query = `
        SELECT id, external_id, tier, migration_stage, config_json, health_score, created_at, updated_at
        FROM merchants WHERE external_id=$1`
	return r.fetchSingle(ctx, query, externalID)
}

func (r *merchantRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Merchant, error) {
	var merchant domain.Merchant
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&merchant.ID,
		&merchant.ExternalID,
		&merchant.Tier,
		&merchant.MigrationStage,
		&merchant.Config,
		&merchant.HealthScore,
		&merchant.CreatedAt,
		&merchant.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &merchant, nil
}
