package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/migrations"
)

// infra holds the connections and repositories shared by every command.
type infra struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *observability.Metrics
	pg         *persistence.Postgres
	redis      *persistence.Redis
	dispatcher events.Dispatcher
	publisher  *events.Publisher

	tickets     repository.TicketRepository
	messages    repository.MessageRepository
	assignments repository.AssignmentRepository
	profiles    repository.ProfileRepository
	ratings     repository.RatingRepository
	history     repository.TicketHistoryRepository
}

func loadInfra(ctx context.Context) (*infra, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return nil, err
	}
	logger = logger.With(zap.String("service", cfg.App.Name), zap.String("version", cfg.App.Version))

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, migrations.Files, logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	pool := pg.Pool
	return &infra{
		cfg:         cfg,
		logger:      logger,
		metrics:     observability.NewMetrics(),
		pg:          pg,
		redis:       redis,
		dispatcher:  dispatcher,
		publisher:   events.NewPublisher(dispatcher),
		tickets:     repository.NewTicketRepository(pool),
		messages:    repository.NewMessageRepository(pool),
		assignments: repository.NewAssignmentRepository(pool),
		profiles:    repository.NewProfileRepository(pool),
		ratings:     repository.NewRatingRepository(pool),
		history:     repository.NewTicketHistoryRepository(pool),
	}, nil
}

func (i *infra) Close() {
	i.redis.Close()
	i.pg.Close()
	_ = i.logger.Sync()
}
