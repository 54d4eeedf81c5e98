package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/reaper"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
)

// runReap performs one sweep for cron-style schedulers and prints the result as JSON.
func runReap(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	in, err := loadInfra(ctx)
	if err != nil {
		return err
	}
	defer in.Close()

	worker.StartEventSubscribers(in.dispatcher, worker.Subscribers{
		History: service.NewHistoryService(in.tickets, in.history),
	})

	sweeper := reaper.New(reaper.Dependencies{
		Store:      in.tickets,
		Publisher:  in.publisher,
		Metrics:    in.metrics,
		Logger:     in.logger,
		StaleAfter: in.cfg.Reaper.StaleAfter(),
	})
	result, err := sweeper.Run(ctx)
	if err != nil {
		in.logger.Error("sweep failed", zap.Error(err))
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
