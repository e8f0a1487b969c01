package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/clinic-billing/internal/application/port"
	"github.com/garyjia/clinic-billing/internal/application/service"
	"github.com/garyjia/clinic-billing/internal/domain/billing"
	"github.com/garyjia/clinic-billing/internal/infrastructure/report"
	"github.com/garyjia/clinic-billing/internal/worker"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger
	clock  billing.Clock

	// Infrastructure
	db       *DatabaseBundle
	notifier port.OverdueNotifier
	exporter *report.StatisticsExporter

	// Application
	invoices service.InvoiceService

	// Workers
	sweeper *worker.OverdueSweeper
	workers *worker.Manager

	// Lifecycle
	mu     sync.Mutex
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, clock billing.Clock, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if clock == nil {
		clock = billing.SystemClock{}
	}

	return &Container{
		config: cfg,
		logger: logger,
		clock:  clock,
	}, nil
}

// Start initializes all components:
// 1. Database and migrations
// 2. Invoice service
// 3. Notifier and exporter
// 4. Workers (when enabled)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	db, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = db
	c.logger.Info("Database initialized")

	c.invoices = ProvideInvoiceService(c.db, &c.config.Billing, c.clock, c.logger)
	c.notifier = ProvideOverdueNotifier(&c.config.Lark, c.config.Billing.Currency, c.clock, c.logger)
	c.exporter = ProvideExporter(&c.config.Billing, c.logger)
	c.sweeper = ProvideSweeper(c.invoices, c.notifier, &c.config.Worker, c.clock, c.logger)
	c.logger.Info("Application services initialized")

	c.workers = worker.NewManager(c.logger)
	if c.config.Worker.Enabled {
		c.workers.Register(c.sweeper)

		workerCtx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		if err := c.workers.StartAll(workerCtx); err != nil {
			cancel()
			_ = c.db.DB.Close()
			return fmt.Errorf("failed to start workers: %w", err)
		}
		c.logger.Info("Workers started", zap.Int("count", c.workers.Count()))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	if c.workers != nil {
		c.workers.StopAll()
	}
	if c.cancel != nil {
		c.cancel()
	}

	var closeErr error
	if c.db != nil {
		if err := c.db.DB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			closeErr = fmt.Errorf("close database: %w", err)
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)
	return closeErr
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	switch {
	case c.db == nil:
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	default:
		if err := c.db.DB.PingContext(ctx); err != nil {
			status.Components["database"] = ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	}

	if c.config.Worker.Enabled {
		running := c.workers != nil && c.workers.Running()
		status.Components["workers"] = ComponentHealth{Healthy: running}
		if !running {
			status.Overall = false
		}
	}

	return status
}

// InvoiceService returns the invoice service.
func (c *Container) InvoiceService() service.InvoiceService {
	return c.invoices
}

// Exporter returns the statistics exporter.
func (c *Container) Exporter() *report.StatisticsExporter {
	return c.exporter
}

// Sweeper returns the overdue sweeper, usable for one-off sweeps.
func (c *Container) Sweeper() *worker.OverdueSweeper {
	return c.sweeper
}

// Clock returns the clock shared by all components.
func (c *Container) Clock() billing.Clock {
	return c.clock
}

// Config returns the container configuration.
func (c *Container) Config() *Config {
	return c.config
}
