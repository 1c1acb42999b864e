// Package reconcile decides how one extracted record lands in the table
// store. It is a pure decision layer: the scanner supplies the current
// header and the known order numbers, and gets back either a fully built
// row plus any columns the header is missing, or a skip.
package reconcile

import (
	"time"

	"github.com/staffingops/ordersync/internal/extract"
	"github.com/staffingops/ordersync/internal/fields"
	"github.com/staffingops/ordersync/internal/mailbox"
	"github.com/staffingops/ordersync/internal/table"
)

// Outcome classifies the reconciliation decision.
type Outcome int

const (
	// OutcomeAppend means the record is new and the row should be appended.
	OutcomeAppend Outcome = iota
	// OutcomeDuplicate means a row with this order number already exists.
	// Duplicates are a counted no-op, not an error.
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppend:
		return "append"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Result is the reconciliation decision for one record.
type Result struct {
	Outcome Outcome

	// NewColumns lists record fields absent from the current header, in
	// registry order. The caller must extend the header with these before
	// appending Row.
	NewColumns []string

	// Row is the full row to append, one cell per header column plus the
	// new columns. Fields the extractor did not capture are empty strings.
	Row table.Row
}

// Reconcile builds the append decision for rec against the current sheet
// state. ref and now fill the provenance cells.
func Reconcile(rec extract.Record, ref mailbox.ItemRef, now time.Time, header []string, orders map[string]bool) Result {
	if orders[rec.OrderNumber()] {
		return Result{Outcome: OutcomeDuplicate}
	}

	known := make(map[string]bool, len(header))
	for _, c := range header {
		known[c] = true
	}

	var newCols []string
	for _, f := range rec.Fields() {
		if !known[string(f)] {
			newCols = append(newCols, string(f))
		}
	}

	row := make(table.Row, len(header)+len(newCols))
	for _, c := range header {
		row[c] = ""
	}
	row[fields.ColExtractedAt] = now.UTC().Format(time.RFC3339)
	row[fields.ColSourceFile] = ref.Name
	row[fields.ColFileID] = fileID(ref)
	for _, f := range rec.Fields() {
		v, _ := rec.Get(f)
		row[string(f)] = v
	}

	return Result{Outcome: OutcomeAppend, NewColumns: newCols, Row: row}
}

// fileID prefers the content fingerprint so a renamed copy of the same
// source stays traceable to the same identity.
func fileID(ref mailbox.ItemRef) string {
	if ref.Fingerprint != "" {
		return ref.Fingerprint
	}
	return ref.Name
}
