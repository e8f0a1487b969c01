package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/clinic-billing/internal/domain/billing"
	"github.com/garyjia/clinic-billing/internal/domain/entity"
)

// mockInvoiceRepo keeps invoices in memory and enforces unique numbers
type mockInvoiceRepo struct {
	mu       sync.Mutex
	nextID   int64
	invoices map[int64]*entity.Invoice

	createFunc func(ctx context.Context, inv *entity.Invoice) error
	countFunc  func(ctx context.Context, start, end time.Time) (int, error)
	updates    int
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{invoices: make(map[int64]*entity.Invoice)}
}

func (m *mockInvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, inv); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return billing.ErrDuplicateNumber
		}
	}
	m.nextID++
	inv.ID = m.nextID
	m.invoices[inv.ID] = inv.Clone()
	return nil
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invoices[id]; ok {
		return inv.Clone(), nil
	}
	return nil, nil
}

func (m *mockInvoiceRepo) GetByNumber(ctx context.Context, number string) (*entity.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.InvoiceNumber == number {
			return inv.Clone(), nil
		}
	}
	return nil, nil
}

func (m *mockInvoiceRepo) Update(ctx context.Context, inv *entity.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[inv.ID]; !ok {
		return &billing.NotFoundError{Resource: "invoice", Key: inv.InvoiceNumber}
	}
	m.updates++
	m.invoices[inv.ID] = inv.Clone()
	return nil
}

func (m *mockInvoiceRepo) CountCreatedBetween(ctx context.Context, start, end time.Time) (int, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, start, end)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, inv := range m.invoices {
		if !inv.CreatedAt.Before(start) && inv.CreatedAt.Before(end) {
			count++
		}
	}
	return count, nil
}

func (m *mockInvoiceRepo) FindByStatusDueBefore(ctx context.Context, status entity.InvoiceStatus, before time.Time, limit int) ([]*entity.Invoice, error) {
	result := m.filter(func(inv *entity.Invoice) bool {
		return inv.Status == status && inv.DueDate.Before(before)
	})
	sort.Slice(result, func(i, j int) bool { return result[i].DueDate.Before(result[j].DueDate) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockInvoiceRepo) FindByDateRange(ctx context.Context, start, end time.Time, status *entity.InvoiceStatus) ([]*entity.Invoice, error) {
	return m.filter(func(inv *entity.Invoice) bool {
		if status != nil && inv.Status != *status {
			return false
		}
		return !inv.CreatedAt.Before(start) && !inv.CreatedAt.After(end)
	}), nil
}

func (m *mockInvoiceRepo) FindByPatient(ctx context.Context, patientRef string) ([]*entity.Invoice, error) {
	return m.filter(func(inv *entity.Invoice) bool { return inv.PatientRef == patientRef }), nil
}

func (m *mockInvoiceRepo) AggregateByStatus(ctx context.Context, start, end time.Time) (entity.InvoiceStatistics, error) {
	stats := make(entity.InvoiceStatistics)
	for _, inv := range m.filter(func(inv *entity.Invoice) bool {
		return !inv.CreatedAt.Before(start) && !inv.CreatedAt.After(end)
	}) {
		s := stats[inv.Status]
		s.Count++
		s.TotalAmount += inv.Total
		s.AverageAmount = s.TotalAmount / float64(s.Count)
		stats[inv.Status] = s
	}
	return stats, nil
}

func (m *mockInvoiceRepo) filter(keep func(inv *entity.Invoice) bool) []*entity.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*entity.Invoice, 0)
	for _, inv := range m.invoices {
		if keep(inv) {
			result = append(result, inv.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result
}

// mockTxManager runs fn directly
type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

// mockLogger discards everything but counts errors
type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}
