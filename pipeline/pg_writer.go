package pipeline

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/logger"
	"github.com/aluiziolira/go-scrape-listings/models"
)

var pgColumnTypes = []string{
	"TEXT", "TEXT", "TEXT", "DOUBLE PRECISION", "TEXT", "TEXT",
	"TEXT", "INTEGER", "TEXT", "TEXT", "TEXT", "TEXT",
}

// PostgresWriter stores the snapshot in PostgreSQL, swapping the table inside
// one transaction and loading rows with COPY.
type PostgresWriter struct {
	pool  *pgxpool.Pool
	table string
	log   zerolog.Logger
}

// NewPostgresWriter connects to dsn and checks the connection.
func NewPostgresWriter(ctx context.Context, dsn, table string) (*PostgresWriter, error) {
	if table == "" {
		table = DefaultTable
	}
	if !config.ValidTable(table) {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidTable, table)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresWriter{pool: pool, table: table, log: logger.For("pg_writer")}, nil
}

// quotedTable keeps the table name's case in DDL, matching the quoted
// identifier COPY uses.
func (w *PostgresWriter) quotedTable() string {
	return pgx.Identifier{w.table}.Sanitize()
}

// Replace drops, recreates and fills the table in one transaction.
func (w *PostgresWriter) Replace(ctx context.Context, items []models.Item) error {
	ctx, span := tracer.Start(ctx, "pipeline.PostgresWriter.Replace")
	defer span.End()

	rows := make([][]any, len(items))
	for i, item := range items {
		rows[i] = item.Values()
	}

	err := runInTx(ctx, w.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+w.quotedTable()); err != nil {
			return fmt.Errorf("drop table %s: %w", w.table, err)
		}
		if _, err := tx.Exec(ctx, createTableSQL(w.quotedTable(), pgColumnTypes)); err != nil {
			return fmt.Errorf("create table %s: %w", w.table, err)
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{w.table}, models.Columns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy rows: %w", err)
		}
		if int(n) != len(rows) {
			return fmt.Errorf("copy rows: wrote %d of %d", n, len(rows))
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.log.Debug().Str("table", w.table).Int("rows", len(items)).Msg("table replaced")
	return nil
}

// Validate checks that the snapshot table is readable.
func (w *PostgresWriter) Validate() error {
	var n int64
	if err := w.pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+w.quotedTable()).Scan(&n); err != nil {
		return fmt.Errorf("count %s: %w", w.table, err)
	}
	return nil
}

// Close releases the pool.
func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}

func runInTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
