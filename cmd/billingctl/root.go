package main

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/clinic-billing/internal/config"
	"github.com/garyjia/clinic-billing/internal/container"
	"github.com/garyjia/clinic-billing/internal/domain/billing"
	"github.com/garyjia/clinic-billing/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "1.0.0"

const dateLayout = "2006-01-02"

// app carries what every subcommand needs once the root has loaded config
type app struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "billingctl",
		Short: "Operator tools for the clinic billing service",
		Long: `billingctl runs maintenance tasks against the clinic billing database:
applying migrations, flagging overdue invoices and exporting statistics.

Configuration is read from the YAML file given by --config, overridden by
BILLING_* environment variables and an optional .env file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "configs/config.yaml", "path to the YAML config file (empty for defaults)")

	root.AddCommand(
		newMigrateCmd(a),
		newSweepCmd(a),
		newStatsCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	// stdout is reserved for command output
	out := cfg.Logger.OutputPath
	if out == "" || out == "stdout" {
		out = "stderr"
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: out,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger.With(zap.String("component", "billingctl"))
	return nil
}

// startContainer opens the database without background workers.
// The caller must Close the returned container.
func (a *app) startContainer(ctx context.Context, clock billing.Clock) (*container.Container, error) {
	cc := a.cfg.ToContainerConfig()
	cc.Worker.Enabled = false

	c, err := container.NewContainer(cc, clock, a.logger)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// parseDate reads a YYYY-MM-DD flag value as a UTC date
func parseDate(flag, raw string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, use YYYY-MM-DD", flag, raw)
	}
	return t, nil
}
