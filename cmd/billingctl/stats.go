package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/garyjia/clinic-billing/internal/domain/entity"
	"github.com/garyjia/clinic-billing/internal/infrastructure/report"
	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		start, end string
		out        string
		noDetail   bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Export invoice statistics for a date range to an xlsx workbook",
		Example: `  billingctl stats --start 2026-10-01 --end 2026-10-31
  billingctl stats --start 2026-01-01 --end 2026-12-31 --out reports/2026.xlsx --no-detail`,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDate("start", start)
			if err != nil {
				return err
			}
			to, err := parseDate("end", end)
			if err != nil {
				return err
			}
			// inclusive of the whole end day
			to = to.Add(24*time.Hour - time.Nanosecond)

			c, err := a.startContainer(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer c.Close()

			invoices := c.InvoiceService()
			stats, err := invoices.GetStatistics(cmd.Context(), from, to)
			if err != nil {
				return err
			}

			r := report.StatisticsReport{Start: from, End: to, Statistics: stats}
			if !noDetail {
				if r.Invoices, err = invoices.FindByDateRange(cmd.Context(), from, to, nil); err != nil {
					return err
				}
			}

			path := out
			if path == "" {
				path = filepath.Join(a.cfg.Report.OutputDir, report.FileName(from, to))
			}
			if err := c.Exporter().SaveAs(path, r); err != nil {
				return err
			}

			printStatistics(cmd, stats)
			fmt.Fprintf(cmd.OutOrStdout(), "workbook written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "first day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default: <report.output_dir>/invoice-statistics_<start>_<end>.xlsx)")
	cmd.Flags().BoolVar(&noDetail, "no-detail", false, "omit the per-invoice sheet")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func printStatistics(cmd *cobra.Command, stats entity.InvoiceStatistics) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-10s %6s %14s %14s\n", "status", "count", "total", "average")
	for _, status := range entity.AllInvoiceStatuses {
		st, ok := stats[status]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%-10s %6d %14.2f %14.2f\n", status, st.Count, st.TotalAmount, st.AverageAmount)
	}
	all := stats.Overall()
	fmt.Fprintf(w, "%-10s %6d %14.2f %14.2f\n", "all", all.Count, all.TotalAmount, all.AverageAmount)
}
