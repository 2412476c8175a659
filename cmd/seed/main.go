// Command seed populates a development environment with a demo merchant,
// the default pattern library, and sample platform log lines.
package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/patterns"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/repository"
)

var sampleLogLines = []string{
	"2026-08-29T14:02:11Z ERROR webhook-dispatcher SSLHandshakeError: certificate verify failed for store acme-retail",
	"2026-08-29T14:02:45Z WARN webhook-dispatcher delivery retry 3/5 timeout after 30s",
	"2026-08-29T14:05:02Z ERROR checkout-api POST /checkout 500 internal server error store acme-retail",
	"2026-08-29T14:05:04Z INFO migration-worker schema sync completed with 2 warnings",
	"2026-08-29T14:06:19Z ERROR api-gateway 429 rate limit exceeded client acme-retail",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("POSTGRES_DSN is required for seeding")
	}

	if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	merchantRepo := repository.NewMerchantRepository(pool)
	merchant := &domain.Merchant{
		ExternalID:     "acme-retail",
		Tier:           domain.TierGrowth,
		MigrationStage: domain.MigrationInProgress,
		Config: map[string]any{
			"webhook_endpoint": "https://acme-retail.example.com/hooks",
			"storefront":       "headless",
		},
		HealthScore: 0.82,
	}
	if existing, err := merchantRepo.GetByExternalID(ctx, merchant.ExternalID); err == nil {
		logger.Info("demo merchant already present", zap.String("id", existing.ID))
	} else if err := merchantRepo.Create(ctx, merchant); err != nil {
		logger.Fatal("failed to seed merchant", zap.Error(err))
	} else {
		logger.Info("demo merchant created", zap.String("id", merchant.ID))
	}

	patternRepo := repository.NewPatternRepository(pool)
	library := patterns.DefaultLibrary()
	for i := range library {
		if err := patternRepo.Upsert(ctx, &library[i]); err != nil {
			logger.Fatal("failed to seed pattern", zap.String("signature", library[i].Signature), zap.Error(err))
		}
	}
	logger.Info("pattern library seeded", zap.Int("patterns", len(library)))

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	if err := redis.AppendLogLines(ctx, sampleLogLines...); err != nil {
		logger.Warn("failed to seed log lines", zap.Error(err))
	} else {
		logger.Info("sample log lines seeded", zap.Int("lines", len(sampleLogLines)))
	}
}
