package main

import (
	"fmt"

	"github.com/garyjia/clinic-billing/internal/domain/billing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSweepCmd(a *app) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Flag pending invoices past their due date as overdue",
		Long: `Runs one overdue sweep: every pending invoice whose due date has passed is
persisted as overdue and, when Lark alerts are enabled, a summary is posted
to the billing chat. Running it twice is harmless.`,
		Example: `  billingctl sweep-overdue
  billingctl sweep-overdue --as-of 2026-10-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var clock billing.Clock = billing.SystemClock{}
			if asOf != "" {
				day, err := parseDate("as-of", asOf)
				if err != nil {
					return err
				}
				clock = billing.FixedClock{T: day}
			}

			c, err := a.startContainer(cmd.Context(), clock)
			if err != nil {
				return err
			}
			defer c.Close()

			flipped, err := c.Sweeper().SweepOnce(cmd.Context())
			if err != nil {
				return err
			}

			a.logger.Info("Overdue sweep finished", zap.Int("flipped", len(flipped)))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d invoice(s) marked overdue\n", len(flipped))
			for _, inv := range flipped {
				fmt.Fprintf(out, "  %s  patient=%s  due=%s  outstanding=%.2f\n",
					inv.InvoiceNumber, inv.PatientRef, inv.DueDate.Format(dateLayout), inv.OutstandingAmount())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluate due dates as of midnight UTC on this day (YYYY-MM-DD, default: now)")
	return cmd
}
