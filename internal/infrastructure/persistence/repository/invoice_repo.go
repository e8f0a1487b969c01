package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/clinic-billing/internal/application/port"
	"github.com/garyjia/clinic-billing/internal/domain/billing"
	"github.com/garyjia/clinic-billing/internal/domain/entity"
	"github.com/garyjia/clinic-billing/internal/infrastructure/persistence/sqlite"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const invoiceColumns = `
	id, public_id, invoice_number, patient_ref, appointment_ref,
	subtotal, tax, discount, total, paid_amount,
	status, payment_method, payment_date, due_date, notes,
	created_at, updated_at`

// InvoiceRepository implements port.InvoiceRepository on SQLite
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an invoice with its line items
func (r *InvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	query := `
		INSERT INTO invoices (
			public_id, invoice_number, patient_ref, appointment_ref,
			subtotal, tax, discount, total, paid_amount,
			status, payment_method, payment_date, due_date, notes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := r.getExecutor(ctx)
	result, err := exec.ExecContext(ctx, query,
		inv.PublicID,
		inv.InvoiceNumber,
		inv.PatientRef,
		inv.AppointmentRef,
		inv.Subtotal,
		inv.Tax,
		inv.Discount,
		inv.Total,
		inv.PaidAmount,
		string(inv.Status),
		string(inv.PaymentMethod),
		nullableTime(inv.PaymentDate),
		inv.DueDate.UTC(),
		inv.Notes,
		inv.CreatedAt.UTC(),
		inv.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Warn("Invoice number already taken",
				zap.String("invoice_number", inv.InvoiceNumber))
			return fmt.Errorf("create invoice %s: %w", inv.InvoiceNumber, billing.ErrDuplicateNumber)
		}
		r.logger.Error("Failed to create invoice",
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := r.insertItems(ctx, exec, id, inv.Items); err != nil {
		return err
	}

	inv.ID = id
	return nil
}

// GetByID retrieves an invoice by its ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetByNumber retrieves an invoice by its invoice number
func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_number = ?`
	return r.getOne(ctx, query, number)
}

// Update persists the invoice fields and replaces its line items.
// The invoice number and creation time are never rewritten.
func (r *InvoiceRepository) Update(ctx context.Context, inv *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET subtotal = ?, tax = ?, discount = ?, total = ?, paid_amount = ?,
			status = ?, payment_method = ?, payment_date = ?, due_date = ?, notes = ?,
			updated_at = ?
		WHERE id = ?
	`

	exec := r.getExecutor(ctx)
	result, err := exec.ExecContext(ctx, query,
		inv.Subtotal,
		inv.Tax,
		inv.Discount,
		inv.Total,
		inv.PaidAmount,
		string(inv.Status),
		string(inv.PaymentMethod),
		nullableTime(inv.PaymentDate),
		inv.DueDate.UTC(),
		inv.Notes,
		inv.UpdatedAt.UTC(),
		inv.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice",
			zap.Int64("id", inv.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return &billing.NotFoundError{Resource: "invoice", Key: fmt.Sprint(inv.ID)}
	}

	if _, err := exec.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = ?`, inv.ID); err != nil {
		return fmt.Errorf("failed to clear invoice items: %w", err)
	}
	return r.insertItems(ctx, exec, inv.ID, inv.Items)
}

// CountCreatedBetween counts invoices created in [start, end)
func (r *InvoiceRepository) CountCreatedBetween(ctx context.Context, start, end time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM invoices WHERE created_at >= ? AND created_at < ?`

	var count int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, query, start.UTC(), end.UTC()).Scan(&count); err != nil {
		r.logger.Error("Failed to count invoices",
			zap.Time("start", start),
			zap.Time("end", end),
			zap.Error(err))
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}

// FindByStatusDueBefore returns invoices in a status whose due date precedes the cutoff
func (r *InvoiceRepository) FindByStatusDueBefore(ctx context.Context, status entity.InvoiceStatus, before time.Time, limit int) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE status = ? AND due_date < ?
		ORDER BY due_date ASC, id ASC`
	args := []interface{}{string(status), before.UTC()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.list(ctx, query, args...)
}

// FindByDateRange returns invoices created within [start, end], newest first
func (r *InvoiceRepository) FindByDateRange(ctx context.Context, start, end time.Time, status *entity.InvoiceStatus) ([]*entity.Invoice, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + invoiceColumns + ` FROM invoices WHERE created_at >= ? AND created_at <= ?`)
	args := []interface{}{start.UTC(), end.UTC()}
	if status != nil {
		b.WriteString(` AND status = ?`)
		args = append(args, string(*status))
	}
	b.WriteString(` ORDER BY created_at DESC, id DESC`)
	return r.list(ctx, b.String(), args...)
}

// FindByPatient returns a patient's invoices, newest first
func (r *InvoiceRepository) FindByPatient(ctx context.Context, patientRef string) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE patient_ref = ? ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, patientRef)
}

// AggregateByStatus returns count, sum and average of totals per status
func (r *InvoiceRepository) AggregateByStatus(ctx context.Context, start, end time.Time) (entity.InvoiceStatistics, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0), COALESCE(AVG(total), 0)
		FROM invoices
		WHERE created_at >= ? AND created_at <= ?
		GROUP BY status
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		r.logger.Error("Failed to aggregate invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to aggregate invoices: %w", err)
	}
	defer rows.Close()

	stats := make(entity.InvoiceStatistics)
	for rows.Next() {
		var (
			status string
			st     entity.StatusStatistics
		)
		if err := rows.Scan(&status, &st.Count, &st.TotalAmount, &st.AverageAmount); err != nil {
			return nil, fmt.Errorf("failed to scan statistics row: %w", err)
		}
		stats[entity.InvoiceStatus(status)] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate statistics rows: %w", err)
	}
	return stats, nil
}

func (r *InvoiceRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.Invoice, error) {
	exec := r.getExecutor(ctx)
	inv, err := scanInvoice(exec.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice",
			zap.Any("key", arg),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	items, err := r.loadItems(ctx, exec, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

func (r *InvoiceRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Invoice, error) {
	exec := r.getExecutor(ctx)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}

	invoices := make([]*entity.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	rows.Close()

	// Items are loaded after the cursor is closed so a single-connection transaction is not held twice
	for _, inv := range invoices {
		items, err := r.loadItems(ctx, exec, inv.ID)
		if err != nil {
			return nil, err
		}
		inv.Items = items
	}
	return invoices, nil
}

func (r *InvoiceRepository) insertItems(ctx context.Context, exec sqlite.Executor, invoiceID int64, items []entity.LineItem) error {
	query := `
		INSERT INTO invoice_items (invoice_id, position, description, quantity, unit_price, total)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for pos, item := range items {
		if _, err := exec.ExecContext(ctx, query,
			invoiceID, pos, item.Description, item.Quantity, item.UnitPrice, item.Total,
		); err != nil {
			r.logger.Error("Failed to insert invoice item",
				zap.Int64("invoice_id", invoiceID),
				zap.Int("position", pos),
				zap.Error(err))
			return fmt.Errorf("failed to insert invoice item: %w", err)
		}
	}
	return nil
}

func (r *InvoiceRepository) loadItems(ctx context.Context, exec sqlite.Executor, invoiceID int64) ([]entity.LineItem, error) {
	query := `
		SELECT description, quantity, unit_price, total
		FROM invoice_items
		WHERE invoice_id = ?
		ORDER BY position ASC
	`
	rows, err := exec.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	items := make([]entity.LineItem, 0)
	for rows.Next() {
		var item entity.LineItem
		if err := rows.Scan(&item.Description, &item.Quantity, &item.UnitPrice, &item.Total); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(s rowScanner) (*entity.Invoice, error) {
	var (
		inv           entity.Invoice
		status        string
		paymentMethod string
		paymentDate   sql.NullTime
	)
	err := s.Scan(
		&inv.ID,
		&inv.PublicID,
		&inv.InvoiceNumber,
		&inv.PatientRef,
		&inv.AppointmentRef,
		&inv.Subtotal,
		&inv.Tax,
		&inv.Discount,
		&inv.Total,
		&inv.PaidAmount,
		&status,
		&paymentMethod,
		&paymentDate,
		&inv.DueDate,
		&inv.Notes,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Status = entity.InvoiceStatus(status)
	inv.PaymentMethod = entity.PaymentMethod(paymentMethod)
	if paymentDate.Valid {
		pd := paymentDate.Time
		inv.PaymentDate = &pd
	}
	return &inv, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// getExecutor returns the transaction from ctx when present
func (r *InvoiceRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFromContext(ctx, r.db)
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
