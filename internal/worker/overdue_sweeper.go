package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/clinic-billing/internal/application/port"
	"github.com/garyjia/clinic-billing/internal/domain/billing"
	"github.com/garyjia/clinic-billing/internal/domain/entity"
	"go.uber.org/zap"
)

// OverdueRefresher persists the overdue flip for past-due invoices
type OverdueRefresher interface {
	RefreshOverdue(ctx context.Context, asOf time.Time, limit int) ([]*entity.Invoice, error)
}

// SweeperConfig tunes the overdue sweep
type SweeperConfig struct {
	Interval  time.Duration // how often to sweep (default: 1 hour)
	BatchSize int           // max invoices flipped per sweep, 0 for all
	Timeout   time.Duration // per-sweep deadline (default: 1 minute)
}

// OverdueSweeper periodically flags past-due invoices and alerts billing staff
type OverdueSweeper struct {
	refresher OverdueRefresher
	notifier  port.OverdueNotifier
	clock     billing.Clock
	config    SweeperConfig
	logger    *zap.Logger

	// State
	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewOverdueSweeper creates a new sweeper. notifier may be nil.
func NewOverdueSweeper(
	refresher OverdueRefresher,
	notifier port.OverdueNotifier,
	clock billing.Clock,
	config SweeperConfig,
	logger *zap.Logger,
) *OverdueSweeper {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	if clock == nil {
		clock = billing.SystemClock{}
	}
	return &OverdueSweeper{
		refresher: refresher,
		notifier:  notifier,
		clock:     clock,
		config:    config,
		logger:    logger,
	}
}

// Start launches the sweep loop; the first sweep runs immediately
func (s *OverdueSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("overdue sweeper is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.isRunning = true

	s.logger.Info("OverdueSweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize))

	go s.loop(loopCtx, s.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (s *OverdueSweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("OverdueSweeper stopped")
}

// Name returns the worker name for identification
func (s *OverdueSweeper) Name() string {
	return "OverdueSweeper"
}

func (s *OverdueSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *OverdueSweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if _, err := s.SweepOnce(sweepCtx); err != nil {
		s.logger.Error("Overdue sweep failed", zap.Error(err))
	}
}

// SweepOnce flags every pending invoice past due as of now and notifies about the flipped ones.
// A notification failure is logged but does not fail the sweep.
func (s *OverdueSweeper) SweepOnce(ctx context.Context) ([]*entity.Invoice, error) {
	flipped, err := s.refresher.RefreshOverdue(ctx, s.clock.Now(), s.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("refresh overdue invoices: %w", err)
	}

	if len(flipped) == 0 {
		s.logger.Debug("No invoices became overdue")
		return flipped, nil
	}

	s.logger.Info("Overdue sweep flagged invoices", zap.Int("count", len(flipped)))
	if s.notifier != nil {
		if err := s.notifier.NotifyOverdue(ctx, flipped); err != nil {
			s.logger.Warn("Failed to notify about overdue invoices", zap.Error(err))
		}
	}
	return flipped, nil
}
