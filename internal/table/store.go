// Package table is the header-driven row store the scan pass appends to and
// the enricher reads from. The header row is the single source of truth for
// column existence: new columns are added through ExtendHeader before any row
// referencing them is appended.
package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/staffingops/ordersync/internal/fields"
)

// ErrNotFound is returned by FindRow/UpdateRow when no row carries the
// requested order number.
var ErrNotFound = errors.New("order number not found")

// Row maps column names to string values. Column order is imposed by the
// store's header at append time, not by the map.
type Row map[string]string

// OrderNumber returns the row's join key.
func (r Row) OrderNumber() string {
	return r[string(fields.OrderNumber)]
}

// Store abstracts the spreadsheet-like table backend.
type Store interface {
	// Header returns the current column set in order.
	Header(ctx context.Context) ([]string, error)

	// ExtendHeader appends new columns to the header, preserving the given
	// order. Columns that already exist are ignored.
	ExtendHeader(ctx context.Context, cols []string) error

	// AppendRow appends one row. Values for columns missing from the row
	// render as empty cells.
	AppendRow(ctx context.Context, row Row) error

	// FindRow returns the row with the given order number.
	FindRow(ctx context.Context, orderNumber string) (Row, error)

	// UpdateRow merges values into the row with the given order number.
	UpdateRow(ctx context.Context, orderNumber string, values map[string]string) error

	// OrderNumbers returns the set of order numbers present in the table.
	OrderNumbers(ctx context.Context) (map[string]bool, error)

	// Close releases any resources.
	Close() error
}

// Config configures the table backend.
type Config struct {
	Backend string // "csv" | "postgres" | "memory"

	// CSV-on-blob
	CSVBucketURL string // e.g. file:///var/lib/ordersync, gs://bucket
	CSVKey       string // object key of the sheet, e.g. "commandes.csv"

	// Postgres
	PostgresDSN string
}

// NewStore creates a table store based on configuration.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "csv":
		if cfg.CSVBucketURL == "" {
			return nil, fmt.Errorf("CSVBucketURL required for csv backend")
		}
		key := cfg.CSVKey
		if key == "" {
			key = "commandes.csv"
		}
		return NewCSVStore(ctx, cfg.CSVBucketURL, key)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("PostgresDSN required for postgres backend")
		}
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown table backend: %s", cfg.Backend)
	}
}
