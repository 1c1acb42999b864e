package table

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffingops/ordersync/internal/fields"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore implements Store on PostgreSQL. Rows are keyed by order
// number with the remaining cells in a jsonb column, so header extension
// never needs DDL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings, and initializes the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	// Seed the canonical header on an empty table.
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM order_columns`).Scan(&count); err != nil {
		return fmt.Errorf("count columns: %w", err)
	}
	if count == 0 {
		return s.insertColumns(ctx, fields.CanonicalHeader())
	}
	return nil
}

func (s *PostgresStore) Header(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM order_columns ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	defer rows.Close()

	var header []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan header: %w", err)
		}
		header = append(header, name)
	}
	return header, rows.Err()
}

func (s *PostgresStore) ExtendHeader(ctx context.Context, cols []string) error {
	if len(cols) == 0 {
		return nil
	}

	header, err := s.Header(ctx)
	if err != nil {
		return err
	}
	existing := make(map[string]bool, len(header))
	for _, c := range header {
		existing[c] = true
	}

	var toAdd []string
	for _, c := range cols {
		if !existing[c] {
			toAdd = append(toAdd, c)
			existing[c] = true
		}
	}
	if len(toAdd) == 0 {
		return nil
	}
	return s.insertColumns(ctx, toAdd)
}

// insertColumns appends columns after the current highest position.
func (s *PostgresStore) insertColumns(ctx context.Context, cols []string) error {
	var max int
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(position), 0) FROM order_columns`).Scan(&max); err != nil {
		return fmt.Errorf("max column position: %w", err)
	}
	for i, c := range cols {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO order_columns (position, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			max+1+i, c,
		); err != nil {
			return fmt.Errorf("insert column %q: %w", c, err)
		}
	}
	return nil
}

func (s *PostgresStore) AppendRow(ctx context.Context, row Row) error {
	orderNumber := row.OrderNumber()
	cells := make(map[string]string, len(row))
	for col, v := range row {
		if col == string(fields.OrderNumber) {
			continue
		}
		cells[col] = v
	}
	data, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("marshal cells: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO order_rows (numero_commande, cells) VALUES ($1, $2)`,
		orderNumber, data,
	); err != nil {
		return fmt.Errorf("append row %s: %w", orderNumber, err)
	}
	return nil
}

func (s *PostgresStore) FindRow(ctx context.Context, orderNumber string) (Row, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT cells FROM order_rows WHERE numero_commande = $1`,
		orderNumber,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find row %s: %w", orderNumber, err)
	}

	cells := make(map[string]string)
	if err := json.Unmarshal(data, &cells); err != nil {
		return nil, fmt.Errorf("decode row %s: %w", orderNumber, err)
	}

	row := make(Row, len(cells)+1)
	row[string(fields.OrderNumber)] = orderNumber
	for col, v := range cells {
		row[col] = v
	}
	return row, nil
}

func (s *PostgresStore) UpdateRow(ctx context.Context, orderNumber string, values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE order_rows SET cells = cells || $2::jsonb, updated_at = NOW() WHERE numero_commande = $1`,
		orderNumber, data,
	)
	if err != nil {
		return fmt.Errorf("update row %s: %w", orderNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) OrderNumbers(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT numero_commande FROM order_rows`)
	if err != nil {
		return nil, fmt.Errorf("read order numbers: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan order number: %w", err)
		}
		out[n] = true
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var _ Store = (*PostgresStore)(nil)
