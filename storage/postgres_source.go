package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/lib/pq"

	"credit-analytics/models"
	"credit-analytics/utils"
)

// PostgresSource reads country/year/amount rows from a PostgreSQL table.
// It never writes.
type PostgresSource struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// NewPostgresSource opens a connection, retrying the initial ping, and
// returns a source bound to table.
func NewPostgresSource(ctx context.Context, dsn, table string, retries int, logger *slog.Logger) (*PostgresSource, error) {
	if logger == nil {
		logger = utils.NopLogger()
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("postgres: table name is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{
		MaxAttempts: retries,
		BaseDelay:   time.Second,
		Logger:      logger,
	}
	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &PostgresSource{
		db:     db,
		table:  table,
		logger: logger.With(slog.String("component", "postgres_source")),
	}, nil
}

// Name identifies the source in dataset metadata.
func (ps *PostgresSource) Name() string {
	return "postgres:" + ps.table
}

// Fetch reads every row of the table in physical order. Rows with a blank
// country or year, a NULL amount or a non-finite amount are skipped.
func (ps *PostgresSource) Fetch(ctx context.Context) ([]models.Record, int, error) {
	rows, err := ps.db.QueryContext(ctx, selectQuery(ps.table))
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: fetch: %w", err)
	}
	defer rows.Close()

	var (
		records []models.Record
		skipped int
	)
	for rows.Next() {
		var (
			country, year sql.NullString
			amount        sql.NullFloat64
		)
		if err := rows.Scan(&country, &year, &amount); err != nil {
			return nil, 0, fmt.Errorf("postgres: scan row: %w", err)
		}
		rec, ok := recordFromColumns(country, year, amount)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: iterate rows: %w", err)
	}

	ps.logger.Info("records fetched",
		slog.String("table", ps.table),
		slog.Int("records", len(records)),
		slog.Int("skipped", skipped))
	return records, skipped, nil
}

// Close releases the connection pool.
func (ps *PostgresSource) Close() error {
	return ps.db.Close()
}

func selectQuery(table string) string {
	return fmt.Sprintf(
		`SELECT country::text, year::text, amount::float8 FROM %s ORDER BY ctid`,
		quoteTable(table))
}

// quoteTable quotes an optionally schema-qualified table name.
func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

func recordFromColumns(country, year sql.NullString, amount sql.NullFloat64) (models.Record, bool) {
	if !country.Valid || !year.Valid || !amount.Valid {
		return models.Record{}, false
	}
	if math.IsNaN(amount.Float64) || math.IsInf(amount.Float64, 0) {
		return models.Record{}, false
	}
	c := strings.TrimSpace(country.String)
	y := strings.TrimSpace(year.String)
	if c == "" || y == "" {
		return models.Record{}, false
	}
	return models.Record{Country: c, Year: y, Amount: amount.Float64}, true
}
