package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/logger"
	"github.com/aluiziolira/go-scrape-listings/models"
)

// Database drivers accepted by OpenSQLWriter.
const (
	DriverSQLite = "sqlite"
	DriverLibSQL = "libsql"
)

// DefaultTable is the snapshot table name.
const DefaultTable = "mercadolivre_items"

// columnTypes maps Columns to SQL types in the same order.
var columnTypes = []string{
	"TEXT", "TEXT", "TEXT", "REAL", "TEXT", "TEXT",
	"TEXT", "INTEGER", "TEXT", "TEXT", "TEXT", "TEXT",
}

// Loader reads the stored snapshot back.
type Loader interface {
	Load(ctx context.Context) ([]models.Item, error)
}

// SQLWriter stores the snapshot in a SQLite-compatible database.
type SQLWriter struct {
	db    *sql.DB
	table string
	log   zerolog.Logger
}

// OpenSQLWriter opens dsn with driver ("sqlite" or "libsql").
func OpenSQLWriter(driver, dsn, table string) (*SQLWriter, error) {
	if driver == DriverSQLite && isFilePath(dsn) {
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	w, err := NewSQLWriter(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

// NewSQLWriter wraps an open database handle.
func NewSQLWriter(db *sql.DB, table string) (*SQLWriter, error) {
	if table == "" {
		table = DefaultTable
	}
	if !config.ValidTable(table) {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidTable, table)
	}
	return &SQLWriter{db: db, table: table, log: logger.For("sql_writer")}, nil
}

func isFilePath(dsn string) bool {
	return dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}

func createTableSQL(table string, types []string) string {
	defs := make([]string, len(models.Columns))
	for i, col := range models.Columns {
		defs[i] = col + " " + types[i]
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
}

// Replace drops and recreates the table with items in one transaction.
func (w *SQLWriter) Replace(ctx context.Context, items []models.Item) error {
	ctx, span := tracer.Start(ctx, "pipeline.SQLWriter.Replace")
	defer span.End()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+w.table); err != nil {
		return fmt.Errorf("drop table %s: %w", w.table, err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(w.table, columnTypes)); err != nil {
		return fmt.Errorf("create table %s: %w", w.table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(models.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		w.table, strings.Join(models.Columns, ", "), placeholders,
	))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		if _, err := stmt.ExecContext(ctx, item.Values()...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	w.log.Debug().Str("table", w.table).Int("rows", len(items)).Msg("table replaced")
	return nil
}

// Load returns the stored rows in insertion order.
func (w *SQLWriter) Load(ctx context.Context) ([]models.Item, error) {
	rows, err := w.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY rowid", strings.Join(models.Columns, ", "), w.table,
	))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", w.table, err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", w.table, err)
	}
	return items, nil
}

// Validate checks that the snapshot table is readable.
func (w *SQLWriter) Validate() error {
	var n int
	if err := w.db.QueryRow("SELECT COUNT(*) FROM " + w.table).Scan(&n); err != nil {
		return fmt.Errorf("count %s: %w", w.table, err)
	}
	return nil
}

// Close closes the database handle.
func (w *SQLWriter) Close() error {
	return w.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (models.Item, error) {
	var (
		id, name, seller, permalink sql.NullString
		price                       sql.NullFloat64
		rating, reviews             sql.NullString
		isAd                        sql.NullInt64
		source, query, at, date     sql.NullString
	)
	if err := row.Scan(&id, &name, &seller, &price, &permalink, &rating, &reviews, &isAd, &source, &query, &at, &date); err != nil {
		return models.Item{}, fmt.Errorf("scan row: %w", err)
	}
	item := models.Item{
		ItemID:      nullStr(id),
		Name:        nullStr(name),
		Seller:      nullStr(seller),
		Permalink:   nullStr(permalink),
		Rating:      rating.String,
		ReviewCount: reviews.String,
		IsAd:        int(isAd.Int64),
		Source:      source.String,
		SearchQuery: query.String,
		ScrapedAt:   at.String,
		ScrapDate:   date.String,
	}
	if price.Valid {
		v := price.Float64
		item.Price = &v
	}
	return item, nil
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
