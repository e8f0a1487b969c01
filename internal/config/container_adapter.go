package config

import (
	"time"

	"github.com/garyjia/clinic-billing/internal/container"
)

const defaultSweepTimeout = time.Minute

// ToContainerConfig converts the application Config to a container.Config.
// Sweeper settings live under billing in the file but belong to the worker
// section of the container.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Billing: container.BillingConfig{
			DefaultDueDays:    c.Billing.DefaultDueDays,
			MaxNumberAttempts: c.Billing.MaxNumberAttempts,
			Currency:          c.Billing.Currency,
		},
		Lark: container.LarkConfig{
			Enabled:    c.Lark.Enabled,
			AppID:      c.Lark.AppID,
			AppSecret:  c.Lark.AppSecret,
			ChatID:     c.Lark.ChatID,
			APITimeout: c.Lark.APITimeout,
		},
		Report: container.ReportConfig{
			OutputDir: c.Report.OutputDir,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
			Mode:         c.Server.Mode,
		},
		Worker: container.WorkerConfig{
			Enabled:        true,
			SweepInterval:  c.Billing.SweepInterval,
			SweepBatchSize: c.Billing.SweepBatchSize,
			SweepTimeout:   defaultSweepTimeout,
		},
	}
}
