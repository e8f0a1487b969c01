package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/garyjia/clinic-billing/internal/application/port"
	"github.com/garyjia/clinic-billing/pkg/database"
	"go.uber.org/zap"
)

type txKeyType struct{}

var txKey txKeyType

// Executor is the statement surface repositories run queries on
type Executor = database.Executor

// TxManager runs application units of work as SQLite write transactions.
// Every unit starts with BEGIN IMMEDIATE: invoice numbering counts the
// month's invoices and then inserts, and the count must still hold at insert
// time. Nested calls join the transaction already carried by ctx.
type TxManager struct {
	db     *database.DB
	logger *zap.Logger
}

// NewTxManager creates the transaction manager for db
func NewTxManager(db *database.DB, logger *zap.Logger) *TxManager {
	return &TxManager{
		db:     db,
		logger: logger,
	}
}

// WithTransaction implements port.TransactionManager
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	start := time.Now()
	err := m.db.RunInTx(ctx, database.TxImmediate, func(ctx context.Context, exec database.Executor) error {
		return fn(context.WithValue(ctx, txKey, exec))
	})
	m.logger.Debug("Write transaction finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("committed", err == nil))
	return err
}

// InTransaction reports whether ctx carries an open transaction
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey).(database.Executor)
	return ok
}

// ExecutorFromContext returns the transaction carried by ctx, or fallback when there is none
func ExecutorFromContext(ctx context.Context, fallback *sql.DB) Executor {
	if exec, ok := ctx.Value(txKey).(database.Executor); ok {
		return exec
	}
	return fallback
}

var _ port.TransactionManager = (*TxManager)(nil)
