package extract

import (
	"regexp"

	"github.com/staffingops/ordersync/internal/fields"
)

// Label rules are matched against the folded (lowercased, accent-stripped)
// text, so they are written in plain ASCII. Per field the list is ordered:
// the first rule that matches wins and later rules are never consulted.
// Same-line separators covered are ":", "-" and "#"; most fields also accept
// the value on the line following the label.
//
// Exactly one capture group per rule; the group is mapped back to the
// original text so accented values are preserved.

const (
	// token values: order numbers and agency/unit codes
	tok = `([a-z0-9][a-z0-9/_.-]*)`
	// free-text values: rest of the line
	line = `([^\r\n]+)`
	// separator between label and value on the same line
	sep = `[ \t]*[:#-][ \t]*`
	// label terminated at end of line, value on the next line
	nl = `[ \t]*[:#-]?[ \t]*\r?\n[ \t]*`
)

var rules = map[fields.Field][]*regexp.Regexp{
	fields.OrderNumber: {
		regexp.MustCompile(`numero\s+de\s+commande` + sep + tok),
		regexp.MustCompile(`numero\s+de\s+commande[ \t]+` + tok),
		regexp.MustCompile(`commande\s*n[°o]?` + sep + tok),
		regexp.MustCompile(`order\s*id` + sep + tok),
		regexp.MustCompile(`commande[^\r\n:#]*#[ \t]*` + tok),
		regexp.MustCompile(`reference(?:\s+commande)?` + sep + tok),
		regexp.MustCompile(`numero\s+de\s+commande` + nl + tok),
	},
	fields.AgencyCode: {
		regexp.MustCompile(`code\s+agence` + sep + tok),
		regexp.MustCompile(`code\s+agence` + nl + tok),
		regexp.MustCompile(`agence` + sep + tok),
	},
	fields.UnitCode: {
		regexp.MustCompile(`code\s+unite` + sep + tok),
		regexp.MustCompile(`code\s+unite` + nl + tok),
		regexp.MustCompile(`unite` + sep + tok),
	},
	fields.Status: {
		regexp.MustCompile(`statut` + sep + line),
		regexp.MustCompile(`status` + sep + line),
		regexp.MustCompile(`statut` + nl + line),
	},
	fields.CollectiveLevel: {
		regexp.MustCompile(`niveau\s+(?:de\s+la\s+)?convention\s+collective` + sep + line),
		regexp.MustCompile(`niveau\s+cc` + sep + line),
		regexp.MustCompile(`convention\s+collective` + sep + line),
		regexp.MustCompile(`niveau\s+(?:de\s+la\s+)?convention\s+collective` + nl + line),
	},
	fields.Classification: {
		regexp.MustCompile(`classification\s+de\s+l['’][ \t]*interimaire` + sep + line),
		regexp.MustCompile(`classification\s+interimaire` + sep + line),
		regexp.MustCompile(`classification` + sep + line),
	},
	fields.AbsentPerson: {
		regexp.MustCompile(`personne\s+absente` + sep + line),
		regexp.MustCompile(`remplace(?:ment\s+de)?` + sep + line),
		regexp.MustCompile(`personne\s+absente` + nl + line),
	},
}
