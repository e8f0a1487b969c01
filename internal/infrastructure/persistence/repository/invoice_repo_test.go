package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/clinic-billing/internal/domain/billing"
	"github.com/garyjia/clinic-billing/internal/domain/entity"
	"github.com/garyjia/clinic-billing/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/clinic-billing/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)

func setupRepo(t *testing.T) (*InvoiceRepository, *sqlite.TxManager) {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "billing.db"),
		MaxOpenConns: 4,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunEmbedded(context.Background()))
	return NewInvoiceRepository(db.DB, logger), sqlite.NewTxManager(db, logger)
}

func makeInvoice(number string, createdAt time.Time, status entity.InvoiceStatus, total float64) *entity.Invoice {
	return &entity.Invoice{
		PublicID:      "pub-" + number,
		InvoiceNumber: number,
		PatientRef:    "patient-1",
		Items: []entity.LineItem{
			{Description: "Consultation", Quantity: 1, UnitPrice: total, Total: total},
		},
		Subtotal:  total,
		Total:     total,
		Status:    status,
		DueDate:   createdAt.AddDate(0, 0, 30),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestInvoiceRepository_CreateAndGet(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	inv := makeInvoice("INV-202610-0001", baseTime, entity.InvoiceStatusPending, 100)
	inv.AppointmentRef = "appt-9"
	inv.Tax = 10
	inv.Discount = 5
	inv.Total = 105
	inv.Items = append(inv.Items, entity.LineItem{Description: "Dressing", Quantity: 2, UnitPrice: 0, Total: 0})
	require.NoError(t, repo.Create(ctx, inv))
	assert.NotZero(t, inv.ID)

	got, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "INV-202610-0001", got.InvoiceNumber)
	assert.Equal(t, "appt-9", got.AppointmentRef)
	assert.Equal(t, 105.0, got.Total)
	assert.Equal(t, entity.InvoiceStatusPending, got.Status)
	assert.Nil(t, got.PaymentDate)
	assert.True(t, baseTime.Equal(got.CreatedAt))
	assert.True(t, inv.DueDate.Equal(got.DueDate))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Consultation", got.Items[0].Description)
	assert.Equal(t, "Dressing", got.Items[1].Description)

	byNumber, err := repo.GetByNumber(ctx, "INV-202610-0001")
	require.NoError(t, err)
	require.NotNil(t, byNumber)
	assert.Equal(t, inv.ID, byNumber.ID)
}

func TestInvoiceRepository_GetMissingReturnsNil(t *testing.T) {
	repo, _ := setupRepo(t)

	got, err := repo.GetByID(context.Background(), 404)
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.GetByNumber(context.Background(), "INV-209901-0001")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestInvoiceRepository_DuplicateNumber(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, makeInvoice("INV-202610-0001", baseTime, entity.InvoiceStatusPending, 10)))

	dup := makeInvoice("INV-202610-0001", baseTime, entity.InvoiceStatusPending, 20)
	dup.PublicID = "another-public-id"
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, billing.ErrDuplicateNumber)
	assert.ErrorIs(t, err, billing.ErrConflict)
	assert.Zero(t, dup.ID)
}

func TestInvoiceRepository_Update(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	inv := makeInvoice("INV-202610-0001", baseTime, entity.InvoiceStatusPending, 100)
	require.NoError(t, repo.Create(ctx, inv))

	paidAt := baseTime.Add(2 * time.Hour)
	inv.Items = []entity.LineItem{
		{Description: "Consultation", Quantity: 1, UnitPrice: 100, Total: 100},
		{Description: "Vaccine", Quantity: 1, UnitPrice: 30, Total: 30},
	}
	inv.Subtotal = 130
	inv.Total = 130
	inv.Status = entity.InvoiceStatusPaid
	inv.PaidAmount = 130
	inv.PaymentMethod = entity.PaymentMethodCard
	inv.PaymentDate = &paidAt
	inv.UpdatedAt = paidAt
	require.NoError(t, repo.Update(ctx, inv))

	got, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusPaid, got.Status)
	assert.Equal(t, entity.PaymentMethodCard, got.PaymentMethod)
	require.NotNil(t, got.PaymentDate)
	assert.True(t, paidAt.Equal(*got.PaymentDate))
	assert.Len(t, got.Items, 2)
	assert.Equal(t, 130.0, got.Total)

	missing := makeInvoice("INV-202610-0099", baseTime, entity.InvoiceStatusPending, 1)
	missing.ID = 9999
	assert.ErrorIs(t, repo.Update(ctx, missing), billing.ErrNotFound)
}

func TestInvoiceRepository_CountCreatedBetween(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	sep := time.Date(2026, time.September, 30, 23, 59, 59, 0, time.UTC)
	oct1 := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	nov1 := time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, makeInvoice("INV-202609-0001", sep, entity.InvoiceStatusPending, 1)))
	require.NoError(t, repo.Create(ctx, makeInvoice("INV-202610-0001", oct1, entity.InvoiceStatusPending, 1)))
	require.NoError(t, repo.Create(ctx, makeInvoice("INV-202610-0002", baseTime.Add(123*time.Millisecond), entity.InvoiceStatusPending, 1)))
	require.NoError(t, repo.Create(ctx, makeInvoice("INV-202611-0001", nov1, entity.InvoiceStatusPending, 1)))

	start, end := billing.MonthBounds(baseTime)
	count, err := repo.CountCreatedBetween(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInvoiceRepository_FindByStatusDueBefore(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	for i, tc := range []struct {
		status entity.InvoiceStatus
		due    time.Time
	}{
		{entity.InvoiceStatusPending, baseTime.AddDate(0, 0, -2)},
		{entity.InvoiceStatusPending, baseTime.AddDate(0, 0, -5)},
		{entity.InvoiceStatusPending, baseTime.AddDate(0, 0, 1)},
		{entity.InvoiceStatusOverdue, baseTime.AddDate(0, 0, -9)},
		{entity.InvoiceStatusPaid, baseTime.AddDate(0, 0, -9)},
		{entity.InvoiceStatusCancelled, baseTime.AddDate(0, 0, -9)},
	} {
		inv := makeInvoice(fmt.Sprintf("INV-202610-%04d", i+1), baseTime.AddDate(0, 0, -40), tc.status, 10)
		inv.DueDate = tc.due
		require.NoError(t, repo.Create(ctx, inv))
	}

	found, err := repo.FindByStatusDueBefore(ctx, entity.InvoiceStatusPending, baseTime, 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "INV-202610-0002", found[0].InvoiceNumber, "oldest due first")
	assert.Equal(t, "INV-202610-0001", found[1].InvoiceNumber)
	assert.Len(t, found[0].Items, 1)

	limited, err := repo.FindByStatusDueBefore(ctx, entity.InvoiceStatusPending, baseTime, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestInvoiceRepository_FindByDateRange(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, makeInvoice("INV-202610-0001", baseTime.AddDate(0, 0, -3), entity.InvoiceStatusPending, 10)))
	require.NoError(t, repo.Create(ctx, makeInvoice("INV-202610-0002", baseTime.AddDate(0, 0, -2), entity.InvoiceStatusPaid, 20)))
	require.NoError(t, repo.Create(ctx, makeInvoice("INV-202610-0003", baseTime.AddDate(0, 0, -1), entity.InvoiceStatusPending, 30)))
	require.NoError(t, repo.Create(ctx, makeInvoice("INV-202610-0004", baseTime.AddDate(0, 0, 5), entity.InvoiceStatusPending, 40)))

	all, err := repo.FindByDateRange(ctx, baseTime.AddDate(0, 0, -3), baseTime, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "INV-202610-0003", all[0].InvoiceNumber, "newest first")
	assert.Equal(t, "INV-202610-0001", all[2].InvoiceNumber, "start bound is inclusive")

	pending := entity.InvoiceStatusPending
	filtered, err := repo.FindByDateRange(ctx, baseTime.AddDate(0, 0, -3), baseTime, &pending)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	for _, inv := range filtered {
		assert.Equal(t, entity.InvoiceStatusPending, inv.Status)
	}

	empty, err := repo.FindByDateRange(ctx, baseTime.AddDate(1, 0, 0), baseTime.AddDate(1, 1, 0), nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestInvoiceRepository_FindByPatient(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	a := makeInvoice("INV-202610-0001", baseTime, entity.InvoiceStatusPending, 10)
	b := makeInvoice("INV-202610-0002", baseTime.Add(time.Hour), entity.InvoiceStatusPending, 10)
	other := makeInvoice("INV-202610-0003", baseTime, entity.InvoiceStatusPending, 10)
	other.PatientRef = "patient-2"
	for _, inv := range []*entity.Invoice{a, b, other} {
		require.NoError(t, repo.Create(ctx, inv))
	}

	found, err := repo.FindByPatient(ctx, "patient-1")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, b.ID, found[0].ID)
}

func TestInvoiceRepository_AggregateByStatus(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	fixtures := []struct {
		status entity.InvoiceStatus
		total  float64
	}{
		{entity.InvoiceStatusPending, 100},
		{entity.InvoiceStatusPending, 50},
		{entity.InvoiceStatusPaid, 80},
		{entity.InvoiceStatusCancelled, 20},
	}
	for i, f := range fixtures {
		require.NoError(t, repo.Create(ctx, makeInvoice(fmt.Sprintf("INV-202610-%04d", i+1), baseTime.Add(time.Duration(i)*time.Minute), f.status, f.total)))
	}
	require.NoError(t, repo.Create(ctx, makeInvoice("INV-202601-0001", baseTime.AddDate(0, -9, 0), entity.InvoiceStatusPaid, 999)))

	stats, err := repo.AggregateByStatus(ctx, baseTime.AddDate(0, 0, -1), baseTime.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, entity.StatusStatistics{Count: 2, TotalAmount: 150, AverageAmount: 75}, stats[entity.InvoiceStatusPending])
	assert.Equal(t, entity.StatusStatistics{Count: 1, TotalAmount: 80, AverageAmount: 80}, stats[entity.InvoiceStatusPaid])
	assert.Equal(t, 4, stats.Overall().Count)
}

func TestInvoiceRepository_TransactionRollback(t *testing.T) {
	repo, txm := setupRepo(t)
	ctx := context.Background()

	err := txm.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, makeInvoice("INV-202610-0001", baseTime, entity.InvoiceStatusPending, 10)); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	got, err := repo.GetByNumber(ctx, "INV-202610-0001")
	require.NoError(t, err)
	assert.Nil(t, got)
}
