package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/reaper"
)

// Sweeper runs one inactivity sweep.
type Sweeper interface {
	Run(ctx context.Context) (*reaper.Result, error)
}

// ReaperWorker runs the sweeper on a fixed interval inside the API process.
type ReaperWorker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

// NewReaperWorker creates a worker; it does nothing until Start.
func NewReaperWorker(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *ReaperWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReaperWorker{sweeper: sweeper, interval: interval, logger: logger.Named("reaper_worker")}
}

// Start launches the ticker loop.
func (w *ReaperWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return errors.New("reaper worker interval must be positive")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		return errors.New("reaper worker already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.stop = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, w.done)
	w.logger.Info("reaper worker started", zap.Duration("interval", w.interval))
	return nil
}

// Stop cancels the loop and waits for a running sweep to return.
func (w *ReaperWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop == nil {
		return errors.New("reaper worker already stopped or not started")
	}
	w.stop()
	<-w.done
	w.stop = nil
	w.done = nil
	return nil
}

func (w *ReaperWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.sweeper.Run(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("inactivity sweep failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
