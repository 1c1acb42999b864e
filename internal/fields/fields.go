// Package fields is the canonical registry of extracted order fields.
//
// The registry pins three things that must stay in sync across the system:
// the field identifiers used by the extractor, the column names of the table
// store, and the XML tags written by the enricher. Column order for freshly
// created sheets is fixed here; an existing header row remains authoritative
// once a sheet exists.
package fields

// Field identifies one of the extracted order fields. The identifier doubles
// as the table column name.
type Field string

const (
	OrderNumber     Field = "numero_commande"
	AgencyCode      Field = "code_agence"
	UnitCode        Field = "code_unite"
	Status          Field = "statut"
	CollectiveLevel Field = "niveau_convention_collective"
	Classification  Field = "classification_interimaire"
	AbsentPerson    Field = "personne_absente"
)

// All lists the extracted fields in canonical column order.
var All = []Field{
	OrderNumber,
	AgencyCode,
	UnitCode,
	Status,
	CollectiveLevel,
	Classification,
	AbsentPerson,
}

// Provenance columns recorded ahead of the extracted fields on every row.
const (
	ColExtractedAt = "date_extraction"
	ColSourceFile  = "fichier_source"
	ColFileID      = "file_id"
)

// ProvenanceColumns lists the bookkeeping columns in canonical order.
var ProvenanceColumns = []string{ColExtractedAt, ColSourceFile, ColFileID}

// xmlTags maps each field to the tag written into the enrichment section of
// an order document.
var xmlTags = map[Field]string{
	OrderNumber:     "OrderId",
	AgencyCode:      "AgencyCode",
	UnitCode:        "UnitCode",
	Status:          "TempStatus",
	CollectiveLevel: "CollectiveLevel",
	Classification:  "TempClassification",
	AbsentPerson:    "AbsenteeName",
}

// XMLTag returns the enrichment tag for a field, or "" if the field has no
// XML counterpart.
func XMLTag(f Field) string {
	return xmlTags[f]
}

// Enrichable lists the fields written by the XML enricher, in registry order.
// The order number itself is excluded: it is the join key, never a target.
func Enrichable() []Field {
	out := make([]Field, 0, len(All)-1)
	for _, f := range All {
		if f == OrderNumber {
			continue
		}
		out = append(out, f)
	}
	return out
}

// CanonicalHeader returns the full header row for a freshly created table:
// provenance columns followed by the extracted fields.
func CanonicalHeader() []string {
	out := make([]string, 0, len(ProvenanceColumns)+len(All))
	out = append(out, ProvenanceColumns...)
	for _, f := range All {
		out = append(out, string(f))
	}
	return out
}

// Known reports whether name is a registered field column.
func Known(name string) bool {
	for _, f := range All {
		if string(f) == name {
			return true
		}
	}
	return false
}
