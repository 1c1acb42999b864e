// Package enrich writes extracted order fields back into HR-XML order
// documents. The document's own structure, declaration, and unrelated tags
// are left untouched; enrichment lives in a dedicated HREnrichment section
// under the root element.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/beevik/etree"

	"github.com/staffingops/ordersync/internal/fields"
	"github.com/staffingops/ordersync/internal/logging"
	"github.com/staffingops/ordersync/internal/table"
)

var (
	// ErrOrderIDMissing means the document carries no usable order
	// identifier, so there is nothing to join on.
	ErrOrderIDMissing = errors.New("document has no OrderId")

	// ErrOrderNotFound means the document's order number has no row in the
	// table store.
	ErrOrderNotFound = errors.New("order not found in table")
)

// sectionTag is the element under the document root that holds every value
// this system writes.
const sectionTag = "HREnrichment"

// Metadata tags written alongside the field values. Both are deterministic
// for a given row so re-enrichment is byte-identical.
const (
	metaSourceTag = "EnrichmentSource"
	metaCountTag  = "EnrichedFieldCount"
	metaSource    = "ordersync"
)

// OverwritePolicy controls what happens when an enrichment tag already
// carries a non-empty value.
type OverwritePolicy int

const (
	// OverwriteWithLatest replaces existing values with the table's. This
	// is the default and is destructive for hand-edited documents.
	OverwriteWithLatest OverwritePolicy = iota
	// PreserveExisting keeps non-empty values already in the document and
	// only fills absent or empty tags.
	PreserveExisting
)

func (p OverwritePolicy) String() string {
	if p == PreserveExisting {
		return "preserve-existing"
	}
	return "overwrite-with-latest"
}

// Lookup resolves an order number to its table row. *table.CSVStore,
// *table.PostgresStore, and *table.MemoryStore all satisfy it.
type Lookup interface {
	FindRow(ctx context.Context, orderNumber string) (table.Row, error)
}

// Enricher applies table rows to XML documents.
type Enricher struct {
	policy OverwritePolicy
	log    *slog.Logger
}

// New returns an enricher with the given overwrite policy.
func New(policy OverwritePolicy) *Enricher {
	return &Enricher{
		policy: policy,
		log:    logging.Component("enrich"),
	}
}

// Enrich joins doc against the table by order number and returns the
// enriched document. On any error the original document is untouched and no
// partial output is returned.
func (e *Enricher) Enrich(ctx context.Context, doc []byte, lookup Lookup) ([]byte, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	root := tree.Root()
	if root == nil {
		return nil, fmt.Errorf("parse document: no root element")
	}

	orderID := findOrderID(root)
	if orderID == "" {
		return nil, ErrOrderIDMissing
	}

	row, err := lookup.FindRow(ctx, orderID)
	if err != nil {
		if errors.Is(err, table.ErrNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("lookup order %s: %w", orderID, err)
	}

	written := e.applyRow(root, row)
	e.log.Debug("document enriched",
		"order_number", orderID,
		"fields_written", written,
		"policy", e.policy.String(),
	)

	out, err := tree.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	return out, nil
}

// applyRow upserts the enrichable field values and the metadata block, and
// returns how many field tags ended up carrying a value.
func (e *Enricher) applyRow(root *etree.Element, row table.Row) int {
	section := childByTag(root, sectionTag)
	if section == nil {
		section = root.CreateElement(sectionTag)
	}

	written := 0
	for _, f := range fields.Enrichable() {
		v := row[string(f)]
		if v == "" {
			continue
		}
		tag := fields.XMLTag(f)
		el := childByTag(section, tag)
		if el == nil {
			el = section.CreateElement(tag)
		}
		if el.Text() != "" && e.policy == PreserveExisting {
			written++
			continue
		}
		el.SetText(v)
		written++
	}

	setChildText(section, metaSourceTag, metaSource)
	setChildText(section, metaCountTag, strconv.Itoa(written))
	return written
}

// findOrderID walks the document in order and returns the first order
// identifier it can see. Three shapes are recognized, all namespace
// agnostic: a plain <OrderId> leaf, the HR-XML
// ReferenceInformation/OrderId/IdValue nesting, and an OrderId attribute.
func findOrderID(el *etree.Element) string {
	if el.Tag == "OrderId" {
		if idv := childByTag(el, "IdValue"); idv != nil {
			return trimmedText(idv)
		}
		return trimmedText(el)
	}
	for _, a := range el.Attr {
		if a.Key == "OrderId" && a.Value != "" {
			return a.Value
		}
	}
	for _, child := range el.ChildElements() {
		if id := findOrderID(child); id != "" {
			return id
		}
	}
	return ""
}

// childByTag returns the first direct child with the given local tag name,
// ignoring namespace prefixes.
func childByTag(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

func setChildText(el *etree.Element, tag, text string) {
	child := childByTag(el, tag)
	if child == nil {
		child = el.CreateElement(tag)
	}
	child.SetText(text)
}

func trimmedText(el *etree.Element) string {
	s := el.Text()
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}
