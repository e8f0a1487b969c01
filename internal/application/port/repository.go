package port

import (
	"context"
	"time"

	"github.com/garyjia/clinic-billing/internal/domain/entity"
)

// InvoiceRepository defines persistence operations for Invoice.
// Lookups return (nil, nil) when no row matches.
type InvoiceRepository interface {
	// Create inserts the invoice and its line items, setting inv.ID.
	// Returns billing.ErrDuplicateNumber when the invoice number is taken.
	Create(ctx context.Context, inv *entity.Invoice) error

	// GetByID retrieves an invoice by its ID
	GetByID(ctx context.Context, id int64) (*entity.Invoice, error)

	// GetByNumber retrieves an invoice by its invoice number
	GetByNumber(ctx context.Context, number string) (*entity.Invoice, error)

	// Update persists all mutable fields and replaces the line items
	Update(ctx context.Context, inv *entity.Invoice) error

	// CountCreatedBetween counts invoices with start <= created_at < end
	CountCreatedBetween(ctx context.Context, start, end time.Time) (int, error)

	// FindByStatusDueBefore returns invoices in status whose due date is before the cutoff,
	// oldest due first. limit <= 0 means no limit.
	FindByStatusDueBefore(ctx context.Context, status entity.InvoiceStatus, before time.Time, limit int) ([]*entity.Invoice, error)

	// FindByDateRange returns invoices created within [start, end], newest first
	FindByDateRange(ctx context.Context, start, end time.Time, status *entity.InvoiceStatus) ([]*entity.Invoice, error)

	// FindByPatient returns all invoices for a patient, newest first
	FindByPatient(ctx context.Context, patientRef string) ([]*entity.Invoice, error)

	// AggregateByStatus groups invoices created within [start, end] by status
	AggregateByStatus(ctx context.Context, start, end time.Time) (entity.InvoiceStatistics, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
