package table

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
	"gocloud.dev/gcerrors"

	"github.com/staffingops/ordersync/internal/fields"
)

// CSVStore keeps the table as a single CSV object in a bucket, the stand-in
// for the hosted spreadsheet. Every mutation is a read-modify-write of the
// whole object; the system assumes a single concurrent writer.
type CSVStore struct {
	mu     sync.Mutex
	bucket *blob.Bucket
	key    string
}

// NewCSVStore opens the bucket and binds the store to one object key. The
// object is created with the canonical header on first append.
func NewCSVStore(ctx context.Context, bucketURL, key string) (*CSVStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open table bucket %s: %w", bucketURL, err)
	}
	return &CSVStore{bucket: bucket, key: key}, nil
}

func (s *CSVStore) Header(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	header, _, err := s.load(ctx)
	return header, err
}

func (s *CSVStore) ExtendHeader(ctx context.Context, cols []string) error {
	if len(cols) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	header, rows, err := s.load(ctx)
	if err != nil {
		return err
	}

	existing := make(map[string]bool, len(header))
	for _, c := range header {
		existing[c] = true
	}

	changed := false
	for _, c := range cols {
		if existing[c] {
			continue
		}
		header = append(header, c)
		existing[c] = true
		changed = true
	}
	if !changed {
		return nil
	}

	// Pad existing rows to the new width so the sheet stays rectangular.
	for i := range rows {
		for len(rows[i]) < len(header) {
			rows[i] = append(rows[i], "")
		}
	}
	return s.save(ctx, header, rows)
}

func (s *CSVStore) AppendRow(ctx context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, rows, err := s.load(ctx)
	if err != nil {
		return err
	}

	cells := make([]string, len(header))
	for i, col := range header {
		cells[i] = row[col]
	}
	rows = append(rows, cells)
	return s.save(ctx, header, rows)
}

func (s *CSVStore) FindRow(ctx context.Context, orderNumber string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, rows, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	idx := columnIndex(header, string(fields.OrderNumber))
	if idx < 0 {
		return nil, ErrNotFound
	}
	for _, cells := range rows {
		if idx < len(cells) && cells[idx] == orderNumber {
			return rowFromCells(header, cells), nil
		}
	}
	return nil, ErrNotFound
}

func (s *CSVStore) UpdateRow(ctx context.Context, orderNumber string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, rows, err := s.load(ctx)
	if err != nil {
		return err
	}

	idx := columnIndex(header, string(fields.OrderNumber))
	if idx < 0 {
		return ErrNotFound
	}
	for i, cells := range rows {
		if idx >= len(cells) || cells[idx] != orderNumber {
			continue
		}
		for col, v := range values {
			ci := columnIndex(header, col)
			if ci < 0 {
				return fmt.Errorf("update %s: column %q not in header", orderNumber, col)
			}
			for len(rows[i]) <= ci {
				rows[i] = append(rows[i], "")
			}
			rows[i][ci] = v
		}
		return s.save(ctx, header, rows)
	}
	return ErrNotFound
}

func (s *CSVStore) OrderNumbers(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, rows, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(rows))
	idx := columnIndex(header, string(fields.OrderNumber))
	if idx < 0 {
		return out, nil
	}
	for _, cells := range rows {
		if idx < len(cells) && cells[idx] != "" {
			out[cells[idx]] = true
		}
	}
	return out, nil
}

func (s *CSVStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

// load reads and parses the sheet object. A missing object yields the
// canonical header and no rows.
func (s *CSVStore) load(ctx context.Context) ([]string, [][]string, error) {
	r, err := s.bucket.NewReader(ctx, s.key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fields.CanonicalHeader(), nil, nil
		}
		return nil, nil, fmt.Errorf("read sheet %s: %w", s.key, err)
	}
	defer r.Close()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("parse sheet %s: %w", s.key, err)
	}
	if len(records) == 0 {
		return fields.CanonicalHeader(), nil, nil
	}
	return records[0], records[1:], nil
}

// save writes the sheet object back in full.
func (s *CSVStore) save(ctx context.Context, header []string, rows [][]string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, cells := range rows {
		if err := cw.Write(cells); err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("encode sheet: %w", err)
	}

	w, err := s.bucket.NewWriter(ctx, s.key, nil)
	if err != nil {
		return fmt.Errorf("write sheet %s: %w", s.key, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return fmt.Errorf("write sheet %s: %w", s.key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close sheet writer: %w", err)
	}
	return nil
}

func columnIndex(header []string, name string) int {
	for i, c := range header {
		if c == name {
			return i
		}
	}
	return -1
}

func rowFromCells(header []string, cells []string) Row {
	row := make(Row, len(header))
	for i, col := range header {
		if i < len(cells) {
			row[col] = cells[i]
		} else {
			row[col] = ""
		}
	}
	return row
}

var _ Store = (*CSVStore)(nil)
