package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/garyjia/clinic-billing/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTxManager(t *testing.T) (*TxManager, *database.DB) {
	t.Helper()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "billing.db"),
		MaxOpenConns: 4,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(context.Background(), "CREATE TABLE counters (n INTEGER)")
	require.NoError(t, err)
	return NewTxManager(db, zap.NewNop()), db
}

func countRows(t *testing.T, db *database.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM counters").Scan(&n))
	return n
}

func TestTxManager_CarriesTransactionInContext(t *testing.T) {
	txm, db := setupTxManager(t)
	ctx := context.Background()
	assert.False(t, InTransaction(ctx))
	assert.Equal(t, Executor(db.DB), ExecutorFromContext(ctx, db.DB))

	err := txm.WithTransaction(ctx, func(txCtx context.Context) error {
		assert.True(t, InTransaction(txCtx))
		exec := ExecutorFromContext(txCtx, db.DB)
		assert.NotEqual(t, Executor(db.DB), exec)

		_, err := exec.ExecContext(txCtx, "INSERT INTO counters (n) VALUES (1)")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db))
}

func TestTxManager_NestedCallsJoinOuterTransaction(t *testing.T) {
	txm, db := setupTxManager(t)
	ctx := context.Background()

	err := txm.WithTransaction(ctx, func(outer context.Context) error {
		if _, err := ExecutorFromContext(outer, db.DB).ExecContext(outer, "INSERT INTO counters (n) VALUES (1)"); err != nil {
			return err
		}
		// a nested BEGIN IMMEDIATE on another connection would block on the outer lock
		if err := txm.WithTransaction(outer, func(inner context.Context) error {
			assert.Equal(t, ExecutorFromContext(outer, db.DB), ExecutorFromContext(inner, db.DB))
			_, err := ExecutorFromContext(inner, db.DB).ExecContext(inner, "INSERT INTO counters (n) VALUES (2)")
			return err
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, countRows(t, db))
}

func TestTxManager_SerializesReadThenInsert(t *testing.T) {
	txm, db := setupTxManager(t)
	ctx := context.Background()

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			errs <- txm.WithTransaction(ctx, func(txCtx context.Context) error {
				exec := ExecutorFromContext(txCtx, db.DB)
				var n int
				if err := exec.QueryRowContext(txCtx, "SELECT COUNT(*) FROM counters").Scan(&n); err != nil {
					return err
				}
				_, err := exec.ExecContext(txCtx, "INSERT INTO counters (n) VALUES (?)", n+1)
				return err
			})
		}()
	}
	for i := 0; i < workers; i++ {
		require.NoError(t, <-errs)
	}

	var distinct int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT n) FROM counters").Scan(&distinct))
	assert.Equal(t, workers, distinct)
}
