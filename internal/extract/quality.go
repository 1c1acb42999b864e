package extract

import "github.com/staffingops/ordersync/internal/fields"

// Quality grades an extraction result.
type Quality string

const (
	// QualitySuccess: join key present, at least one of the agency/unit
	// codes, and at least half of the known fields extracted.
	QualitySuccess Quality = "success"
	// QualityPartial: the critical fields are present but the record is
	// sparse. Still appended.
	QualityPartial Quality = "partial"
	// QualityFailed: the order number or both codes are missing. The record
	// is excluded from reconciliation and counted as a parse failure.
	QualityFailed Quality = "failed"
)

// Grade evaluates a record against the critical-field rules.
func Grade(rec Record) Quality {
	if !rec.Valid() {
		return QualityFailed
	}

	_, hasAgency := rec.Get(fields.AgencyCode)
	_, hasUnit := rec.Get(fields.UnitCode)
	if !hasAgency && !hasUnit {
		return QualityFailed
	}

	if rec.Len()*2 >= len(fields.All) {
		return QualitySuccess
	}
	return QualityPartial
}
