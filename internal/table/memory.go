package table

import (
	"context"
	"sync"

	"github.com/staffingops/ordersync/internal/fields"
)

// MemoryStore is the in-process Store used by tests.
type MemoryStore struct {
	mu     sync.Mutex
	header []string
	rows   []Row
}

// NewMemoryStore returns a store seeded with the canonical header.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{header: fields.CanonicalHeader()}
}

func (s *MemoryStore) Header(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.header))
	copy(out, s.header)
	return out, nil
}

func (s *MemoryStore) ExtendHeader(ctx context.Context, cols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := make(map[string]bool, len(s.header))
	for _, c := range s.header {
		existing[c] = true
	}
	for _, c := range cols {
		if !existing[c] {
			s.header = append(s.header, c)
			existing[c] = true
		}
	}
	return nil
}

func (s *MemoryStore) AppendRow(ctx context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(Row, len(row))
	for k, v := range row {
		cp[k] = v
	}
	s.rows = append(s.rows, cp)
	return nil
}

func (s *MemoryStore) FindRow(ctx context.Context, orderNumber string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.OrderNumber() == orderNumber {
			cp := make(Row, len(row))
			for k, v := range row {
				cp[k] = v
			}
			return cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateRow(ctx context.Context, orderNumber string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.OrderNumber() == orderNumber {
			for k, v := range values {
				row[k] = v
			}
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) OrderNumbers(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.rows))
	for _, row := range s.rows {
		if n := row.OrderNumber(); n != "" {
			out[n] = true
		}
	}
	return out, nil
}

// RowCount returns the number of appended rows. Test helper.
func (s *MemoryStore) RowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
