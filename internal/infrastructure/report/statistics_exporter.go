package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/garyjia/clinic-billing/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Sheet names of the statistics workbook
const (
	SummarySheet  = "Summary"
	InvoicesSheet = "Invoices"
)

// amountNumFmt is the built-in "#,##0.00" format
const amountNumFmt = 4

// StatisticsReport is the input of one workbook
type StatisticsReport struct {
	Start      time.Time
	End        time.Time
	Statistics entity.InvoiceStatistics
	Invoices   []*entity.Invoice // optional detail rows
}

// StatisticsExporter writes invoice statistics to xlsx workbooks
type StatisticsExporter struct {
	currency string
	logger   *zap.Logger
}

// NewStatisticsExporter creates an exporter labelling amounts with currency
func NewStatisticsExporter(currency string, logger *zap.Logger) *StatisticsExporter {
	return &StatisticsExporter{
		currency: currency,
		logger:   logger,
	}
}

// Write renders the workbook to w
func (e *StatisticsExporter) Write(w io.Writer, r StatisticsReport) error {
	f, err := e.build(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveAs renders the workbook to a file, creating parent directories
func (e *StatisticsExporter) SaveAs(path string, r StatisticsReport) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := e.build(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	e.logger.Info("Statistics workbook saved",
		zap.String("path", path),
		zap.Int("invoice_rows", len(r.Invoices)))
	return nil
}

// FileName returns the conventional workbook name for a period
func FileName(start, end time.Time) string {
	return fmt.Sprintf("invoice-statistics_%s_%s.xlsx", start.Format("20060102"), end.Format("20060102"))
}

func (e *StatisticsExporter) build(r StatisticsReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: amountNumFmt})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create amount style: %w", err)
	}

	if err := e.fillSummary(f, r, header, money); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to fill summary: %w", err)
	}
	if len(r.Invoices) > 0 {
		if err := e.fillInvoices(f, r.Invoices, header, money); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to fill invoices: %w", err)
		}
	}
	return f, nil
}

// fillSummary writes the period and one row per status plus an overall row
func (e *StatisticsExporter) fillSummary(f *excelize.File, r StatisticsReport, header, money int) error {
	rows := [][]interface{}{
		{"Period", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02")},
		{"Currency", e.currency},
		{},
		{"Status", "Count", "Total Amount", "Average Amount"},
	}
	for _, status := range entity.AllInvoiceStatuses {
		s := r.Statistics[status]
		rows = append(rows, []interface{}{string(status), s.Count, s.TotalAmount, s.AverageAmount})
	}
	overall := r.Statistics.Overall()
	rows = append(rows, []interface{}{"overall", overall.Count, overall.TotalAmount, overall.AverageAmount})

	if err := writeRows(f, SummarySheet, rows); err != nil {
		return err
	}

	last := len(rows)
	if err := f.SetCellStyle(SummarySheet, "A4", "D4", header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, fmt.Sprintf("A%d", last), fmt.Sprintf("D%d", last), header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "C5", fmt.Sprintf("D%d", last), money); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "A", "D", 16)
}

func (e *StatisticsExporter) fillInvoices(f *excelize.File, invoices []*entity.Invoice, header, money int) error {
	if _, err := f.NewSheet(InvoicesSheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Invoice Number", "Patient", "Appointment", "Status", "Created", "Due", "Subtotal", "Tax", "Discount", "Total", "Paid", "Outstanding"},
	}
	for _, inv := range invoices {
		rows = append(rows, []interface{}{
			inv.InvoiceNumber,
			inv.PatientRef,
			inv.AppointmentRef,
			string(inv.Status),
			inv.CreatedAt.Format("2006-01-02"),
			inv.DueDate.Format("2006-01-02"),
			inv.Subtotal,
			inv.Tax,
			inv.Discount,
			inv.Total,
			inv.AmountPaid(),
			inv.OutstandingAmount(),
		})
	}

	if err := writeRows(f, InvoicesSheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(InvoicesSheet, "A1", "L1", header); err != nil {
		return err
	}
	if err := f.SetCellStyle(InvoicesSheet, "G2", fmt.Sprintf("L%d", len(rows)), money); err != nil {
		return err
	}
	return f.SetColWidth(InvoicesSheet, "A", "L", 15)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}
