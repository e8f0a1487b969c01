// Package container provides dependency injection and lifecycle management
// for the clinic billing service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database DatabaseConfig
	Billing  BillingConfig
	Lark     LarkConfig
	Report   ReportConfig
	Server   ServerConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// BillingConfig holds invoice lifecycle settings.
type BillingConfig struct {
	DefaultDueDays    int
	MaxNumberAttempts int
	Currency          string
}

// LarkConfig holds optional Lark alerting settings.
type LarkConfig struct {
	Enabled    bool
	AppID      string
	AppSecret  string
	ChatID     string
	APITimeout time.Duration
}

// ReportConfig holds spreadsheet export settings.
type ReportConfig struct {
	OutputDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Mode         string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// Enabled starts the overdue sweeper with the container
	Enabled bool

	SweepInterval  time.Duration
	SweepBatchSize int
	SweepTimeout   time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/billing.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Billing: BillingConfig{
			DefaultDueDays:    30,
			MaxNumberAttempts: 5,
			Currency:          "USD",
		},
		Lark: LarkConfig{
			APITimeout: 30 * time.Second,
		},
		Report: ReportConfig{
			OutputDir: "reports",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Mode:         "release",
		},
		Worker: WorkerConfig{
			Enabled:        true,
			SweepInterval:  time.Hour,
			SweepBatchSize: 200,
			SweepTimeout:   time.Minute,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Billing.MaxNumberAttempts < 1 {
		return fmt.Errorf("billing.max_number_attempts must be at least 1")
	}
	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "" || c.Lark.ChatID == "") {
		return fmt.Errorf("lark.app_id, lark.app_secret and lark.chat_id are required when lark is enabled")
	}
	if c.Worker.Enabled && c.Worker.SweepInterval <= 0 {
		return fmt.Errorf("worker.sweep_interval must be positive")
	}
	return nil
}
