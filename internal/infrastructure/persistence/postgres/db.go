package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/pkg/database"
)

// PoolConfig holds connection pool settings
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// NewPool constructs a pgx connection pool using the provided connection string
func NewPool(ctx context.Context, connString string, cfg PoolConfig) (*pgxpool.Pool, error) {
	if connString == "" {
		return nil, fmt.Errorf("postgres: empty connection string")
	}

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

type txKeyType struct{}

var txKey = txKeyType{}

// DB wraps a pgx pool and implements TransactionManager
type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ port.TransactionManager = (*DB)(nil)

// NewDB creates a new database wrapper
func NewDB(pool *pgxpool.Pool, logger *zap.Logger) *DB {
	return &DB{pool: pool, logger: logger}
}

// Pool returns the underlying pool
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// WithTransaction runs fn in a transaction carried by the context.
// Nested calls join the outer transaction.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("postgres: begin transaction: %w", err)
	}
	defer func() {
		// Rollback after commit is a no-op returning ErrTxClosed
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("postgres: commit transaction: %w", err)
	}
	return nil
}

// querier covers both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *DB) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	return db.pool
}

// Migrate applies pending migrations from dir in fsys, tracked in schema_migrations
func (db *DB) Migrate(ctx context.Context, fsys fs.FS, dir string) error {
	if _, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("postgres: create migrations table: %w", err)
	}

	migrations, err := database.LoadMigrations(fsys, dir)
	if err != nil {
		return fmt.Errorf("postgres: load migrations: %w", err)
	}

	for _, m := range migrations {
		err := db.WithTransaction(ctx, func(txCtx context.Context) error {
			q := db.conn(txCtx)

			// Serialize concurrent migrators
			if _, err := q.Exec(txCtx, "SELECT pg_advisory_xact_lock(724101)"); err != nil {
				return err
			}

			var applied bool
			if err := q.QueryRow(txCtx,
				"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version,
			).Scan(&applied); err != nil {
				return err
			}
			if applied {
				return nil
			}

			db.logger.Info("Applying migration", zap.Int("version", m.Version), zap.String("name", m.Name))
			if _, err := q.Exec(txCtx, m.SQL); err != nil {
				return fmt.Errorf("execute migration SQL: %w", err)
			}
			_, err := q.Exec(txCtx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.Version, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("postgres: apply migration %d: %w", m.Version, err)
		}
	}

	return nil
}
