package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/triage-service/internal/api/http"
	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/breaker"
	"github.com/spec-kit/triage-service/internal/classifier"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/diagnosis"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/llm"
	"github.com/spec-kit/triage-service/internal/logsearch"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/patterns"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/retrieval"
	"github.com/spec-kit/triage-service/internal/service"
	"github.com/spec-kit/triage-service/internal/worker"
)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	decisionRepo := repository.NewDecisionRepository(pool)
	merchantRepo := repository.NewMerchantRepository(pool)
	patternRepo := repository.NewPatternRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	reasoner, err := llm.NewReasoningClient(ctx, cfg.LLM)
	if err != nil {
		logger.Fatal("failed to init reasoning client", zap.Error(err))
	}

	// Repo-backed seeding needs a live pool; without one the index and
	// matcher fall back to the docs directory and the default library.
	var (
		docStore     repository.DocumentRepository
		patternStore repository.PatternRepository
	)
	if pool != nil {
		docStore = documentRepo
		patternStore = patternRepo
	}
	index := buildIndex(ctx, cfg, docStore, logger)
	matcher := buildMatcher(ctx, patternStore, logger)

	var engineMatcher diagnosis.PatternMatcher = matcher
	if patternStore != nil {
		engineMatcher = patterns.NewRecordingMatcher(matcher, func(signature string) {
			if err := patternStore.RecordOccurrence(ctx, signature); err != nil {
				logger.Warn("pattern occurrence not recorded",
					zap.String("signature", signature), zap.Error(err))
			}
		})
	}

	llmBreaker := breaker.New(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout(),
		OnStateChange: func(from, to breaker.State) {
			logger.Warn("reasoning service breaker transitioned",
				zap.String("from", string(from)), zap.String("to", string(to)))
			if to == breaker.StateOpen {
				metrics.RecordBreakerTrip()
			}
			_ = dispatcher.Publish(context.Background(), events.Event{
				ID:        uuid.NewString(),
				Type:      events.EventBreakerStateChanged,
				Actor:     "breaker",
				Timestamp: time.Now(),
				Payload: events.BreakerStateChangedPayload{
					Dependency: "reasoning_service",
					OldState:   string(from),
					NewState:   string(to),
				},
			})
		},
	})

	engine := diagnosis.NewEngine(diagnosis.Dependencies{
		Retriever:   index,
		Logs:        logsearch.NewRedisSearcher(redis.Client),
		Matcher:     engineMatcher,
		Client:      reasoner,
		Caller:      llmBreaker,
		Logger:      logger,
		CallTimeout: cfg.LLM.CallTimeout(),
	}, cfg.Retrieval.TopK, cfg.LLM.Temperature)

	triageService := service.NewTriageService(service.TriageDependencies{
		TicketRepo:   ticketRepo,
		DecisionRepo: decisionRepo,
		MerchantRepo: merchantRepo,
		Classifier:   classifier.New(reasoner, logger),
		Engine:       engine,
		Retriever:    index,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})

	notificationService := service.NewNotificationService(dispatcher, redis.Client, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(triageService),
		Decisions:      handlers.NewDecisionsHandler(triageService),
		Metrics:        handlers.NewMetricsHandler(metrics, llmBreaker),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// buildIndex restores the documentation index from persisted chunks when
// available, otherwise ingests the docs directory and persists the result.
func buildIndex(ctx context.Context, cfg *config.Config, documentRepo repository.DocumentRepository, logger *zap.Logger) *retrieval.Index {
	var embedder llm.Embedder
	geminiEmbedder, err := llm.NewGeminiEmbedder(ctx, cfg.LLM.GeminiAPIKey, cfg.Embedding)
	if err != nil {
		logger.Warn("embedding client unavailable, retrieval falls back to keyword matching", zap.Error(err))
	} else {
		embedder = geminiEmbedder
	}

	index := retrieval.NewIndex(embedder, cfg.Retrieval.MaxChunkBytes, logger)

	if documentRepo != nil {
		if chunks, err := documentRepo.ListAll(ctx); err != nil {
			logger.Warn("failed to load persisted documentation chunks", zap.Error(err))
		} else if len(chunks) > 0 {
			index.Restore(chunks)
			logger.Info("documentation index restored", zap.Int("chunks", len(chunks)))
			return index
		}
	}

	if _, err := index.IngestDir(ctx, cfg.Retrieval.DocsPath); err != nil {
		logger.Warn("documentation ingestion failed", zap.Error(err))
		return index
	}
	if documentRepo != nil {
		persistChunks(ctx, documentRepo, index.Chunks(), logger)
	}
	return index
}

func persistChunks(ctx context.Context, documentRepo repository.DocumentRepository, chunks []domain.DocumentChunk, logger *zap.Logger) {
	bySource := map[string][]domain.DocumentChunk{}
	for _, chunk := range chunks {
		bySource[chunk.Source] = append(bySource[chunk.Source], chunk)
	}
	for source, group := range bySource {
		if err := documentRepo.ReplaceSource(ctx, source, group); err != nil {
			logger.Warn("failed to persist documentation chunks",
				zap.String("source", source), zap.Error(err))
		}
	}
}

// buildMatcher loads the pattern library from the database, seeding the
// default library on first boot.
func buildMatcher(ctx context.Context, patternRepo repository.PatternRepository, logger *zap.Logger) *patterns.Matcher {
	var library []domain.Pattern
	if patternRepo != nil {
		loaded, err := patternRepo.ListAll(ctx)
		if err != nil {
			logger.Warn("failed to load pattern library", zap.Error(err))
		}
		library = loaded
		if len(library) == 0 {
			library = patterns.DefaultLibrary()
			for i := range library {
				if err := patternRepo.Upsert(ctx, &library[i]); err != nil {
					logger.Warn("failed to seed pattern", zap.String("signature", library[i].Signature), zap.Error(err))
				}
			}
		}
	} else {
		library = patterns.DefaultLibrary()
	}

	matcher, err := patterns.NewMatcher(library)
	if err != nil {
		logger.Warn("pattern library contains invalid regexes, using defaults", zap.Error(err))
		matcher, err = patterns.NewMatcher(patterns.DefaultLibrary())
		if err != nil {
			logger.Fatal("default pattern library failed to compile", zap.Error(err))
		}
	}
	return matcher
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
