package notification

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/clinic-billing/internal/domain/entity"
)

// maxListedInvoices caps how many invoices are spelled out in one alert
const maxListedInvoices = 20

// OverdueSummary consolidates a batch of overdue invoices
type OverdueSummary struct {
	Count            int
	TotalOutstanding float64
	MaxDaysOverdue   int
	Invoices         []*entity.Invoice // oldest due date first
}

// Summarize aggregates invoices as of today. The input slice is not reordered.
func Summarize(invoices []*entity.Invoice, today time.Time) OverdueSummary {
	sorted := append([]*entity.Invoice(nil), invoices...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DueDate.Before(sorted[j].DueDate)
	})

	summary := OverdueSummary{Count: len(sorted), Invoices: sorted}
	for _, inv := range sorted {
		summary.TotalOutstanding += inv.OutstandingAmount()
		if d := inv.DaysOverdue(today); d > summary.MaxDaysOverdue {
			summary.MaxDaysOverdue = d
		}
	}
	return summary
}

// FormatOverdueSummary renders the summary as a plain text chat message
func FormatOverdueSummary(s OverdueSummary, today time.Time, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overdue invoices: %d, outstanding %.2f %s\n", s.Count, s.TotalOutstanding, currency)

	for i, inv := range s.Invoices {
		if i == maxListedInvoices {
			fmt.Fprintf(&b, "... and %d more\n", s.Count-maxListedInvoices)
			break
		}
		fmt.Fprintf(&b, "- %s patient %s: %.2f %s due %s (%d days)\n",
			inv.InvoiceNumber,
			inv.PatientRef,
			inv.OutstandingAmount(),
			currency,
			inv.DueDate.Format("2006-01-02"),
			inv.DaysOverdue(today))
	}
	return strings.TrimRight(b.String(), "\n")
}
