package storage

import (
	"context"

	"credit-analytics/models"
)

// RecordWriter is the interface any export backend must satisfy.
type RecordWriter interface {
	WriteRecords(records []models.Record) error
	Close() error
}

// RecordSource yields already-normalised records from an external system.
// skipped counts source rows that failed record validation.
type RecordSource interface {
	Fetch(ctx context.Context) (records []models.Record, skipped int, err error)
	Name() string
	Close() error
}

var (
	_ RecordWriter = (*CSVWriter)(nil)
	_ RecordSource = (*PostgresSource)(nil)
)
