package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/assistant"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/handoff"
	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/reaper"
	"github.com/spec-kit/helpdesk/internal/realtime"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
)

const shutdownTimeout = 20 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	in, err := loadInfra(ctx)
	if err != nil {
		return err
	}
	defer in.Close()
	cfg, logger := in.cfg, in.logger

	persona, err := assistant.LoadPersona(cfg.Assistant.PersonaFile)
	if err != nil {
		return err
	}
	var guard handoff.Guard = handoff.NewLocalGuard()
	var broker realtime.Broker = realtime.NewMemoryBroker()
	if in.redis != nil {
		guard = handoff.NewRedisGuard(in.redis.Client, cfg.Assistant.LockTTL())
		broker = realtime.NewRedisBroker(in.redis.Client)
	}
	coordinatorDeps := handoff.CoordinatorDependencies{
		Assignments:     in.assignments,
		Messages:        in.messages,
		Guard:           guard,
		Publisher:       in.publisher,
		Metrics:         in.metrics,
		Logger:          logger,
		Acknowledgement: persona.Acknowledgement,
	}
	if cfg.Assistant.Enabled {
		coordinatorDeps.Assistant = assistant.NewClient(nil, assistant.Config{
			BaseURL: cfg.Assistant.BaseURL,
			APIKey:  cfg.Assistant.APIKey,
			Model:   cfg.Assistant.Model,
			Timeout: cfg.Assistant.Timeout(),
		}, persona)
	} else {
		logger.Info("assistant disabled")
	}
	coordinator := handoff.NewCoordinator(coordinatorDeps)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     in.tickets,
		MessageRepo:    in.messages,
		AssignmentRepo: in.assignments,
		Responder:      coordinator,
		Publisher:      in.publisher,
		Metrics:        in.metrics,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:     in.tickets,
		AssignmentRepo: in.assignments,
		ProfileRepo:    in.profiles,
		Publisher:      in.publisher,
		Metrics:        in.metrics,
	})
	ratingService := service.NewRatingService(service.RatingDependencies{
		TicketRepo: in.tickets,
		RatingRepo: in.ratings,
		Publisher:  in.publisher,
	})
	profileService := service.NewProfileService(in.profiles)
	historyService := service.NewHistoryService(in.tickets, in.history)
	authService := service.NewAuthService(service.AuthDependencies{
		ProfileRepo:  in.profiles,
		TokenManager: tokens,
		BcryptCost:   cfg.Auth.BcryptCost,
	})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Notifier:  buildNotifier(cfg.Notification, logger),
		Profiles:  in.profiles,
		PublicURL: cfg.App.PublicURL,
		Logger:    logger,
	})
	relay := realtime.NewRelay(broker, logger)

	worker.StartEventSubscribers(in.dispatcher, worker.Subscribers{
		Notifications: notifications,
		History:       historyService,
		Relay:         relay,
	})

	sweeper := reaper.New(reaper.Dependencies{
		Store:      in.tickets,
		Publisher:  in.publisher,
		Metrics:    in.metrics,
		Logger:     logger,
		StaleAfter: cfg.Reaper.StaleAfter(),
	})
	var reaperWorker *worker.ReaperWorker
	if interval := cfg.Reaper.Interval(); interval > 0 {
		reaperWorker = worker.NewReaperWorker(sweeper, interval, logger)
		if err := reaperWorker.Start(ctx); err != nil {
			return err
		}
	}

	checks := map[string]handlers.Pinger{"postgres": in.pg}
	if in.redis != nil {
		checks["redis"] = in.redis
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ErrorHandler:          httptransport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, in.metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Auth:           handlers.NewAuthHandler(authService),
		Profiles:       handlers.NewProfileHandler(profileService),
		Tickets:        handlers.NewTicketsHandler(ticketService, ratingService, historyService),
		Stream:         handlers.NewStreamHandler(ticketService, relay, logger),
		StaffTickets:   handlers.NewStaffTicketsHandler(assignmentService),
		Staff:          handlers.NewStaffHandler(ratingService, profileService),
		Reaper:         handlers.NewReaperHandler(sweeper, cfg.Reaper.Token),
		Metrics:        in.metrics.Handler(),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, in.profiles),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-listenErr:
		if err != nil {
			logger.Error("fiber listen", zap.Error(err))
		}
	}

	if reaperWorker != nil {
		if err := reaperWorker.Stop(); err != nil {
			logger.Warn("stop reaper worker", zap.Error(err))
		}
	}
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notifications.Wait()
	return nil
}

// buildNotifier combines the configured channels. Nil means no channel is configured.
func buildNotifier(cfg config.NotificationConfig, logger *zap.Logger) notify.Notifier {
	var channels notify.Multi
	if cfg.SendgridAPIKey != "" && cfg.SupportInbox != "" {
		email, err := notify.NewEmailNotifier(notify.EmailConfig{
			APIKey:    cfg.SendgridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
			To:        cfg.SupportInbox,
		})
		if err != nil {
			logger.Warn("email notifications disabled", zap.Error(err))
		} else {
			channels = append(channels, email)
		}
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warn("telegram notifications disabled", zap.Error(err))
		} else {
			channels = append(channels, tg)
		}
	}
	if len(channels) == 0 {
		logger.Info("no notification channel configured")
		return nil
	}
	return channels
}
