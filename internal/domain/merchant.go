package domain

import "time"

// MerchantTier enumerates subscription tiers.
type MerchantTier string

const (
	TierFree       MerchantTier = "free"
	TierGrowth     MerchantTier = "growth"
	TierEnterprise MerchantTier = "enterprise"
)

// MigrationStage tracks a merchant's progress through the headless migration.
type MigrationStage string

const (
	MigrationNotStarted MigrationStage = "not_started"
	MigrationInProgress MigrationStage = "in_progress"
	MigrationCompleted  MigrationStage = "completed"
	MigrationRollback   MigrationStage = "rollback"
)

// Merchant supplies the merchant context attached to diagnoses.
type Merchant struct {
	ID             string
	ExternalID     string
	Tier           MerchantTier
	MigrationStage MigrationStage
	Config         map[string]any
	HealthScore    float64
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}
