package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Config holds database configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// DB wraps sql.DB with additional functionality
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// New opens the SQLite database.
// The lock mode of each transaction is chosen by the caller of RunInTx.
func New(cfg Config, logger *zap.Logger) (*DB, error) {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, busy.Milliseconds())

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), busy)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		DB:     sqlDB,
		logger: logger,
	}

	logger.Info("Database connection established", zap.String("path", cfg.Path))
	return db, nil
}

// TxMode is the SQLite locking mode a transaction starts with
type TxMode string

const (
	// TxDeferred takes locks lazily on first read or write
	TxDeferred TxMode = "DEFERRED"

	// TxImmediate takes the write lock at BEGIN, so a read-then-insert
	// cannot interleave with another writer
	TxImmediate TxMode = "IMMEDIATE"
)

// Executor covers the statement methods shared by *sql.DB, *sql.Tx and *sql.Conn
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// RunInTx runs fn inside one transaction on a dedicated connection.
// database/sql cannot pick the SQLite lock mode per transaction, so BEGIN,
// COMMIT and ROLLBACK are issued on the connection directly.
func (db *DB) RunInTx(ctx context.Context, mode TxMode, fn func(ctx context.Context, exec Executor) error) error {
	if mode != TxDeferred && mode != TxImmediate {
		return fmt.Errorf("unsupported transaction mode %q", mode)
	}

	conn, err := db.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN "+string(mode)); err != nil {
		db.logger.Error("Failed to begin transaction", zap.String("mode", string(mode)), zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// COMMIT and ROLLBACK must run even after ctx is cancelled
	endCtx := context.WithoutCancel(ctx)

	defer func() {
		if p := recover(); p != nil {
			db.rollback(endCtx, conn)
			panic(p)
		}
	}()

	if err := fn(ctx, conn); err != nil {
		db.rollback(endCtx, conn)
		return err
	}

	if _, err := conn.ExecContext(endCtx, "COMMIT"); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		db.rollback(endCtx, conn)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rollback ends the transaction; a connection left inside one is discarded
// instead of going back to the pool.
func (db *DB) rollback(ctx context.Context, conn *sql.Conn) {
	if _, err := conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		db.logger.Error("Failed to rollback transaction", zap.Error(err))
		_ = conn.Raw(func(interface{}) error { return driver.ErrBadConn })
	}
}

// Close closes the database connection
func (db *DB) Close() error {
	db.logger.Info("Closing database connection")
	return db.DB.Close()
}
