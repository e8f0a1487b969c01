package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/clinic-billing/internal/application/port"
	"github.com/garyjia/clinic-billing/internal/domain/billing"
	"github.com/garyjia/clinic-billing/internal/domain/entity"
	"github.com/google/uuid"
)

// LineItemInput describes a line item supplied by a caller.
// Total is optional; when given it must match quantity x unit price.
type LineItemInput struct {
	Description string   `json:"description"`
	Quantity    int      `json:"quantity"`
	UnitPrice   float64  `json:"unit_price"`
	Total       *float64 `json:"total,omitempty"`
}

// CreateInvoiceInput carries everything needed to bill a patient encounter
type CreateInvoiceInput struct {
	PatientRef     string
	AppointmentRef string
	Items          []LineItemInput
	Tax            float64
	Discount       float64
	DueDate        *time.Time
	Notes          string
}

// PaymentInput records how and when money was received
type PaymentInput struct {
	Method entity.PaymentMethod
	Date   *time.Time
	Amount float64
}

// InvoiceServiceConfig tunes invoice creation
type InvoiceServiceConfig struct {
	// DefaultDueDays is used when no due date is supplied
	DefaultDueDays int

	// MaxNumberAttempts bounds retries when the invoice number collides
	MaxNumberAttempts int
}

// DefaultInvoiceServiceConfig returns the standard creation settings
func DefaultInvoiceServiceConfig() InvoiceServiceConfig {
	return InvoiceServiceConfig{
		DefaultDueDays:    30,
		MaxNumberAttempts: 5,
	}
}

// InvoiceService manages the invoice lifecycle for the clinic
type InvoiceService interface {
	// CreateInvoice validates items, computes totals and assigns the next invoice number for the month
	CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*entity.Invoice, error)

	// GetInvoice retrieves an invoice by ID
	GetInvoice(ctx context.Context, id int64) (*entity.Invoice, error)

	// GetInvoiceByNumber retrieves an invoice by its INV-YYYYMM-NNNN number
	GetInvoiceByNumber(ctx context.Context, number string) (*entity.Invoice, error)

	// ListByPatient returns a patient's invoices, newest first
	ListByPatient(ctx context.Context, patientRef string) ([]*entity.Invoice, error)

	// MarkPaid settles an invoice in full
	MarkPaid(ctx context.Context, id int64, payment PaymentInput) (*entity.Invoice, error)

	// MarkPartial records a partial payment
	MarkPartial(ctx context.Context, id int64, payment PaymentInput) (*entity.Invoice, error)

	// Cancel voids an unpaid invoice
	Cancel(ctx context.Context, id int64) (*entity.Invoice, error)

	// ApplyDiscount replaces the discount amount
	ApplyDiscount(ctx context.Context, id int64, discount float64) (*entity.Invoice, error)

	// SetTax replaces the tax amount
	SetTax(ctx context.Context, id int64, tax float64) (*entity.Invoice, error)

	// AddItem appends a line item
	AddItem(ctx context.Context, id int64, item LineItemInput) (*entity.Invoice, error)

	// UpdateItem replaces the line item at index
	UpdateItem(ctx context.Context, id int64, index int, item LineItemInput) (*entity.Invoice, error)

	// RemoveItem deletes the line item at index
	RemoveItem(ctx context.Context, id int64, index int) (*entity.Invoice, error)

	// FindOverdue returns pending invoices whose due date is before asOf
	FindOverdue(ctx context.Context, asOf time.Time) ([]*entity.Invoice, error)

	// FindByDateRange returns invoices created in [start, end], newest first
	FindByDateRange(ctx context.Context, start, end time.Time, status *entity.InvoiceStatus) ([]*entity.Invoice, error)

	// GetStatistics aggregates invoices created in [start, end] by status
	GetStatistics(ctx context.Context, start, end time.Time) (entity.InvoiceStatistics, error)

	// RefreshOverdue flips past-due pending invoices to overdue and returns the flipped ones
	RefreshOverdue(ctx context.Context, asOf time.Time, limit int) ([]*entity.Invoice, error)
}

type invoiceServiceImpl struct {
	repo      port.InvoiceRepository
	txManager port.TransactionManager
	clock     billing.Clock
	config    InvoiceServiceConfig
	logger    Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	repo port.InvoiceRepository,
	txManager port.TransactionManager,
	clock billing.Clock,
	config InvoiceServiceConfig,
	logger Logger,
) InvoiceService {
	if clock == nil {
		clock = billing.SystemClock{}
	}
	if config.MaxNumberAttempts < 1 {
		config.MaxNumberAttempts = 1
	}
	return &invoiceServiceImpl{
		repo:      repo,
		txManager: txManager,
		clock:     clock,
		config:    config,
		logger:    logger,
	}
}

// CreateInvoice counts the month's invoices and inserts in one transaction.
// A duplicate number means another creator won the race; the count is taken
// again and the insert retried.
func (s *invoiceServiceImpl) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*entity.Invoice, error) {
	patientRef := strings.TrimSpace(in.PatientRef)
	if patientRef == "" {
		return nil, &billing.ValidationError{Field: "patient_ref", Reason: "is required"}
	}
	if len(in.Items) == 0 {
		return nil, &billing.ValidationError{Field: "items", Reason: "at least one line item is required"}
	}

	items := make([]entity.LineItem, 0, len(in.Items))
	for i, input := range in.Items {
		item, err := buildLineItem(input)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}

	totals, err := billing.ComputeTotals(items, in.Tax, in.Discount)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	dueDate := now.AddDate(0, 0, s.config.DefaultDueDays)
	if in.DueDate != nil {
		dueDate = *in.DueDate
	}
	if dueDate.IsZero() {
		return nil, &billing.ValidationError{Field: "due_date", Reason: "is required"}
	}

	inv := &entity.Invoice{
		PublicID:       uuid.NewString(),
		PatientRef:     patientRef,
		AppointmentRef: strings.TrimSpace(in.AppointmentRef),
		Items:          items,
		Subtotal:       totals.Subtotal,
		Tax:            in.Tax,
		Discount:       in.Discount,
		Total:          totals.Total,
		Status:         billing.DeriveStatus(entity.InvoiceStatusPending, dueDate, now),
		DueDate:        dueDate,
		Notes:          strings.TrimSpace(in.Notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	monthStart, monthEnd := billing.MonthBounds(now)
	var lastNumber string
	for attempt := 1; attempt <= s.config.MaxNumberAttempts; attempt++ {
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			count, err := s.repo.CountCreatedBetween(txCtx, monthStart, monthEnd)
			if err != nil {
				return fmt.Errorf("count invoices for month: %w", err)
			}
			inv.InvoiceNumber = billing.AssignInvoiceNumber(now, count)
			return s.repo.Create(txCtx, inv)
		})
		if err == nil {
			s.logger.Info("Invoice created",
				"invoice_id", inv.ID,
				"invoice_number", inv.InvoiceNumber,
				"patient_ref", inv.PatientRef,
				"total", inv.Total,
				"attempt", attempt)
			return inv, nil
		}

		if !errors.Is(err, billing.ErrDuplicateNumber) {
			s.logger.Error("Failed to create invoice",
				"error", err,
				"patient_ref", inv.PatientRef)
			return nil, fmt.Errorf("create invoice: %w", err)
		}

		lastNumber = inv.InvoiceNumber
		s.logger.Info("Invoice number collision, retrying",
			"invoice_number", lastNumber,
			"attempt", attempt)
		inv.ID = 0
	}

	s.logger.Error("Invoice number assignment exhausted retries",
		"invoice_number", lastNumber,
		"attempts", s.config.MaxNumberAttempts)
	return nil, &billing.ConflictError{InvoiceNumber: lastNumber, Attempts: s.config.MaxNumberAttempts}
}

// GetInvoice retrieves an invoice by ID
func (s *invoiceServiceImpl) GetInvoice(ctx context.Context, id int64) (*entity.Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get invoice", "error", err, "invoice_id", id)
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv == nil {
		return nil, invoiceNotFound(strconv.FormatInt(id, 10))
	}
	return inv, nil
}

// GetInvoiceByNumber retrieves an invoice by number
func (s *invoiceServiceImpl) GetInvoiceByNumber(ctx context.Context, number string) (*entity.Invoice, error) {
	if _, _, _, err := billing.ParseInvoiceNumber(number); err != nil {
		return nil, err
	}
	inv, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		s.logger.Error("Failed to get invoice by number", "error", err, "invoice_number", number)
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv == nil {
		return nil, invoiceNotFound(number)
	}
	return inv, nil
}

// ListByPatient returns a patient's invoices
func (s *invoiceServiceImpl) ListByPatient(ctx context.Context, patientRef string) ([]*entity.Invoice, error) {
	patientRef = strings.TrimSpace(patientRef)
	if patientRef == "" {
		return nil, &billing.ValidationError{Field: "patient_ref", Reason: "is required"}
	}
	invoices, err := s.repo.FindByPatient(ctx, patientRef)
	if err != nil {
		s.logger.Error("Failed to list patient invoices", "error", err, "patient_ref", patientRef)
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// MarkPaid settles an invoice in full
func (s *invoiceServiceImpl) MarkPaid(ctx context.Context, id int64, payment PaymentInput) (*entity.Invoice, error) {
	return s.mutate(ctx, id, "mark_paid", func(inv *entity.Invoice) error {
		return billing.MarkPaid(inv, payment.Method, s.paymentDate(payment))
	})
}

// MarkPartial records a partial payment
func (s *invoiceServiceImpl) MarkPartial(ctx context.Context, id int64, payment PaymentInput) (*entity.Invoice, error) {
	return s.mutate(ctx, id, "mark_partial", func(inv *entity.Invoice) error {
		return billing.MarkPartial(inv, payment.Amount, payment.Method, s.paymentDate(payment))
	})
}

// Cancel voids an unpaid invoice
func (s *invoiceServiceImpl) Cancel(ctx context.Context, id int64) (*entity.Invoice, error) {
	return s.mutate(ctx, id, "cancel", billing.Cancel)
}

// ApplyDiscount replaces the discount amount
func (s *invoiceServiceImpl) ApplyDiscount(ctx context.Context, id int64, discount float64) (*entity.Invoice, error) {
	return s.mutate(ctx, id, "apply_discount", func(inv *entity.Invoice) error {
		return billing.ApplyDiscount(inv, discount)
	})
}

// SetTax replaces the tax amount
func (s *invoiceServiceImpl) SetTax(ctx context.Context, id int64, tax float64) (*entity.Invoice, error) {
	return s.mutate(ctx, id, "set_tax", func(inv *entity.Invoice) error {
		return billing.SetTax(inv, tax)
	})
}

// AddItem appends a line item
func (s *invoiceServiceImpl) AddItem(ctx context.Context, id int64, input LineItemInput) (*entity.Invoice, error) {
	item, err := buildLineItem(input)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, "add_item", func(inv *entity.Invoice) error {
		return billing.AddItem(inv, item)
	})
}

// UpdateItem replaces the line item at index
func (s *invoiceServiceImpl) UpdateItem(ctx context.Context, id int64, index int, input LineItemInput) (*entity.Invoice, error) {
	item, err := buildLineItem(input)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, "update_item", func(inv *entity.Invoice) error {
		return billing.UpdateItem(inv, index, item)
	})
}

// RemoveItem deletes the line item at index
func (s *invoiceServiceImpl) RemoveItem(ctx context.Context, id int64, index int) (*entity.Invoice, error) {
	return s.mutate(ctx, id, "remove_item", func(inv *entity.Invoice) error {
		return billing.RemoveItem(inv, index)
	})
}

// FindOverdue returns pending invoices past due as of asOf.
// Invoices already flipped to overdue are not included.
func (s *invoiceServiceImpl) FindOverdue(ctx context.Context, asOf time.Time) ([]*entity.Invoice, error) {
	invoices, err := s.repo.FindByStatusDueBefore(ctx, entity.InvoiceStatusPending, asOf, 0)
	if err != nil {
		s.logger.Error("Failed to find overdue invoices", "error", err, "as_of", asOf)
		return nil, fmt.Errorf("find overdue invoices: %w", err)
	}
	return invoices, nil
}

// FindByDateRange returns invoices created in [start, end]
func (s *invoiceServiceImpl) FindByDateRange(ctx context.Context, start, end time.Time, status *entity.InvoiceStatus) ([]*entity.Invoice, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, &billing.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *status)}
	}
	invoices, err := s.repo.FindByDateRange(ctx, start, end, status)
	if err != nil {
		s.logger.Error("Failed to find invoices by date range", "error", err)
		return nil, fmt.Errorf("find invoices: %w", err)
	}
	return invoices, nil
}

// GetStatistics aggregates invoices created in [start, end] by status
func (s *invoiceServiceImpl) GetStatistics(ctx context.Context, start, end time.Time) (entity.InvoiceStatistics, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	stats, err := s.repo.AggregateByStatus(ctx, start, end)
	if err != nil {
		s.logger.Error("Failed to aggregate invoice statistics", "error", err)
		return nil, fmt.Errorf("get statistics: %w", err)
	}
	return stats, nil
}

// RefreshOverdue persists the overdue flip for every pending invoice past due
func (s *invoiceServiceImpl) RefreshOverdue(ctx context.Context, asOf time.Time, limit int) ([]*entity.Invoice, error) {
	flipped := make([]*entity.Invoice, 0)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		candidates, err := s.repo.FindByStatusDueBefore(txCtx, entity.InvoiceStatusPending, asOf, limit)
		if err != nil {
			return fmt.Errorf("find pending invoices: %w", err)
		}
		for _, inv := range candidates {
			next := billing.DeriveStatus(inv.Status, inv.DueDate, asOf)
			if next == inv.Status {
				continue
			}
			inv.Status = next
			inv.UpdatedAt = s.clock.Now()
			if err := s.repo.Update(txCtx, inv); err != nil {
				return fmt.Errorf("flag invoice %s overdue: %w", inv.InvoiceNumber, err)
			}
			flipped = append(flipped, inv)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to refresh overdue invoices", "error", err)
		return nil, err
	}

	if len(flipped) > 0 {
		s.logger.Info("Invoices flagged overdue", "count", len(flipped), "as_of", asOf)
	}
	return flipped, nil
}

// mutate loads an invoice, applies fn, re-derives the status and saves, all in one transaction
func (s *invoiceServiceImpl) mutate(ctx context.Context, id int64, op string, fn func(inv *entity.Invoice) error) (*entity.Invoice, error) {
	var result *entity.Invoice
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("load invoice: %w", err)
		}
		if inv == nil {
			return invoiceNotFound(strconv.FormatInt(id, 10))
		}

		if err := fn(inv); err != nil {
			return err
		}

		now := s.clock.Now()
		inv.Status = billing.DeriveStatus(inv.Status, inv.DueDate, now)
		inv.UpdatedAt = now
		if err := s.repo.Update(txCtx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		result = inv
		return nil
	})
	if err != nil {
		s.logger.Error("Invoice operation failed",
			"operation", op,
			"invoice_id", id,
			"error", err)
		return nil, err
	}

	s.logger.Info("Invoice updated",
		"operation", op,
		"invoice_id", result.ID,
		"invoice_number", result.InvoiceNumber,
		"status", string(result.Status),
		"total", result.Total)
	return result, nil
}

func (s *invoiceServiceImpl) paymentDate(p PaymentInput) time.Time {
	if p.Date != nil {
		return *p.Date
	}
	return s.clock.Now()
}

func buildLineItem(in LineItemInput) (entity.LineItem, error) {
	item, err := billing.NewLineItem(in.Description, in.Quantity, in.UnitPrice)
	if err != nil {
		return entity.LineItem{}, err
	}
	if in.Total != nil {
		item.Total = *in.Total
		return billing.NormalizeItem(item)
	}
	return item, nil
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return &billing.ValidationError{Field: "range", Reason: "start and end are required"}
	}
	if end.Before(start) {
		return &billing.ValidationError{Field: "range", Reason: "end is before start"}
	}
	return nil
}

func invoiceNotFound(key string) error {
	return &billing.NotFoundError{Resource: "invoice", Key: key}
}
