// Package repository implements the match collaborators on PostgreSQL.
package repository

import (
	"context"
	"embed"
	nativeerrors "errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/config"
	"github.com/lotusgame/duel-server-go/internal/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// dialect builds every query of the package. Queries are prepared so values
// travel as arguments.
var dialect = goqu.Dialect("postgres")

// querier is implemented by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps the connection pool.
type DB struct {
	*pgxpool.Pool
	logger *zap.Logger
}

// NewDB connects to PostgreSQL, verifies the connection and applies pending
// migrations.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Pool: pool, logger: logger.Named("db")}
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

type migration struct {
	version string
	up      string
}

// loadMigrations returns the embedded migrations ordered by file name.
func loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	migrations := make([]migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		body, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, migration{
			version: strings.TrimSuffix(entry.Name(), ".sql"),
			up:      string(body),
		})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}

// Migrate applies every migration that is not recorded in schema_migrations.
// Each migration runs in its own transaction.
func (db *DB) Migrate(ctx context.Context) error {
	const createTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.Exec(ctx, createTable); err != nil {
		return errors.NewDBError(err, "create schema_migrations", createTable)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		db.logger.Info("applying migration", zap.String("version", m.version))
		err := withTx(ctx, db.Pool, db.logger, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.up); err != nil {
				return errors.NewDBError(err, "apply migration", "")
			}
			q, args, err := dialect.Insert("schema_migrations").Prepared(true).
				Rows(goqu.Record{"version": m.version}).ToSQL()
			if err != nil {
				return errors.NewQueryToSQLError(err, errors.Details{"version": m.version})
			}
			if _, err := tx.Exec(ctx, q, args...); err != nil {
				return errors.NewDBError(err, "record migration", q)
			}
			return nil
		})
		if err != nil {
			return errors.Wrap(err, "migrate", errors.Details{"version": m.version})
		}
	}
	return nil
}

func (db *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	q, args, err := dialect.From("schema_migrations").Prepared(true).Select("version").ToSQL()
	if err != nil {
		return nil, errors.NewQueryToSQLError(err, nil)
	}
	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.NewDBError(err, "query applied migrations", q)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.NewDBError(err, "scan applied migrations", q)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// withTx runs fn in a transaction and commits when it returns nil.
func withTx(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.NewDBError(err, "begin tx", "")
	}
	if err := fn(tx); err != nil {
		rollbackTx(ctx, tx, logger, err.Error())
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.NewDBError(err, "commit tx", "")
	}
	return nil
}

// rollbackTx rolls back tx. A failed rollback is logged together with the
// reason it was attempted.
func rollbackTx(ctx context.Context, tx pgx.Tx, logger *zap.Logger, reason string) {
	if err := tx.Rollback(ctx); err != nil && !nativeerrors.Is(err, pgx.ErrTxClosed) {
		errors.Log(logger, errors.Error{
			Code:    errors.ErrInternal,
			Kind:    errors.KindDB,
			Err:     err,
			Message: "rollback tx",
			Details: errors.Details{"rollbackReason": reason},
		})
	}
}
