// Package extract turns semi-structured order-confirmation text into records
// of labeled fields. Matching is case- and accent-insensitive; per field an
// ordered rule list is applied and the first match wins. A record without an
// order number is invalid and must not reach reconciliation.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/staffingops/ordersync/internal/fields"
)

// maxValueRunes bounds a single extracted value; longer values are truncated
// with a trailing ellipsis.
const maxValueRunes = 100

// Extract applies the rule table to text and returns the extracted record.
// It never fails: unmatched fields are simply absent, and callers check
// Record.Valid before using the result.
func Extract(text string) Record {
	ft := foldText(text)
	rec := NewRecord()

	for _, f := range fields.All {
		for _, re := range rules[f] {
			loc := re.FindStringSubmatchIndex(ft.folded)
			if loc == nil || loc[2] < 0 {
				continue
			}
			v, ok := cleanValue(f, ft.original(loc[2], loc[3]))
			if !ok {
				continue
			}
			rec.Set(f, v)
			break
		}
	}
	return rec
}

// cleanValue normalizes a captured value. It reports false when the value is
// empty after trimming or is a textual null, in which case the field stays
// absent rather than recorded as empty.
func cleanValue(f fields.Field, raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	v = strings.Trim(v, ".,;:!*\"'")
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}

	switch strings.ToLower(v) {
	case "nan", "none", "null":
		return "", false
	}

	v = collapseSpaces(v)

	if utf8.RuneCountInString(v) > maxValueRunes {
		r := []rune(v)
		v = string(r[:maxValueRunes]) + "..."
	}
	return v, true
}

// collapseSpaces reduces interior whitespace runs to single spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
