package container

import (
	"context"
	"fmt"

	"github.com/garyjia/clinic-billing/internal/application/port"
	"github.com/garyjia/clinic-billing/internal/application/service"
	"github.com/garyjia/clinic-billing/internal/domain/billing"
	infraLark "github.com/garyjia/clinic-billing/internal/infrastructure/external/lark"
	"github.com/garyjia/clinic-billing/internal/infrastructure/persistence/repository"
	"github.com/garyjia/clinic-billing/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/clinic-billing/internal/infrastructure/report"
	"github.com/garyjia/clinic-billing/internal/notification"
	"github.com/garyjia/clinic-billing/internal/worker"
	"github.com/garyjia/clinic-billing/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.TxManager
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(ctx, cfg.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewTxManager(db, logger),
	}, nil
}

// ProvideInvoiceService wires the repository and transaction manager into the invoice service.
func ProvideInvoiceService(db *DatabaseBundle, cfg *BillingConfig, clock billing.Clock, logger *zap.Logger) service.InvoiceService {
	return service.NewInvoiceService(
		repository.NewInvoiceRepository(db.DB.DB, logger),
		db.TransactionMgr,
		clock,
		service.InvoiceServiceConfig{
			DefaultDueDays:    cfg.DefaultDueDays,
			MaxNumberAttempts: cfg.MaxNumberAttempts,
		},
		logger.Sugar(),
	)
}

// ProvideOverdueNotifier builds the overdue notifier, backed by Lark when enabled.
func ProvideOverdueNotifier(cfg *LarkConfig, currency string, clock billing.Clock, logger *zap.Logger) port.OverdueNotifier {
	if !cfg.Enabled {
		logger.Info("Lark alerts disabled, overdue invoices will only be logged")
		return notification.NewOverdueNotifier(nil, "", currency, clock, logger)
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:      cfg.AppID,
		AppSecret:  cfg.AppSecret,
		APITimeout: cfg.APITimeout,
	}, logger)
	messenger := infraLark.NewMessenger(client, logger)
	return notification.NewOverdueNotifier(messenger, cfg.ChatID, currency, clock, logger)
}

// ProvideExporter builds the statistics workbook exporter.
func ProvideExporter(cfg *BillingConfig, logger *zap.Logger) *report.StatisticsExporter {
	return report.NewStatisticsExporter(cfg.Currency, logger)
}

// ProvideSweeper builds the overdue sweeper.
func ProvideSweeper(
	invoices service.InvoiceService,
	notifier port.OverdueNotifier,
	cfg *WorkerConfig,
	clock billing.Clock,
	logger *zap.Logger,
) *worker.OverdueSweeper {
	return worker.NewOverdueSweeper(invoices, notifier, clock, worker.SweeperConfig{
		Interval:  cfg.SweepInterval,
		BatchSize: cfg.SweepBatchSize,
		Timeout:   cfg.SweepTimeout,
	}, logger)
}
