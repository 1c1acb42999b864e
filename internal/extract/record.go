package extract

import (
	"fmt"
	"strings"

	"github.com/staffingops/ordersync/internal/fields"
)

// Record holds the fields extracted from one source document. A field that no
// rule matched is absent from the record, which callers must distinguish from
// a field extracted with an empty value.
type Record struct {
	values map[fields.Field]string
}

// NewRecord returns an empty record.
func NewRecord() Record {
	return Record{values: make(map[fields.Field]string)}
}

// Set stores a value for a field. Setting a field twice keeps the first
// value: extraction is first-occurrence-wins.
func (r Record) Set(f fields.Field, v string) {
	if _, ok := r.values[f]; ok {
		return
	}
	r.values[f] = v
}

// Get returns the value for a field and whether it was extracted.
func (r Record) Get(f fields.Field) (string, bool) {
	v, ok := r.values[f]
	return v, ok
}

// OrderNumber returns the join key, or "" if it was not extracted.
func (r Record) OrderNumber() string {
	return r.values[fields.OrderNumber]
}

// Valid reports whether the record carries the mandatory join key.
func (r Record) Valid() bool {
	return r.values[fields.OrderNumber] != ""
}

// Len returns the number of extracted fields.
func (r Record) Len() int {
	return len(r.values)
}

// Fields returns the extracted fields in registry order.
func (r Record) Fields() []fields.Field {
	out := make([]fields.Field, 0, len(r.values))
	for _, f := range fields.All {
		if _, ok := r.values[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Summary returns a one-line description for logs.
func (r Record) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "commande #%s", r.OrderNumber())
	if v, ok := r.Get(fields.AgencyCode); ok {
		fmt.Fprintf(&b, " agence=%s", v)
	}
	if v, ok := r.Get(fields.UnitCode); ok {
		fmt.Fprintf(&b, " unite=%s", v)
	}
	if v, ok := r.Get(fields.Status); ok {
		fmt.Fprintf(&b, " statut=%s", v)
	}
	return b.String()
}
