package main

import (
	"fmt"

	"github.com/garyjia/clinic-billing/internal/container"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Example: `  billingctl migrate
  billingctl migrate --config configs/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := container.ProvideDatabase(cmd.Context(), &a.cfg.ToContainerConfig().Database, a.logger)
			if err != nil {
				return err
			}
			defer db.DB.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied to %s\n", a.cfg.Database.Path)
			return nil
		},
	}
}
