package enrich

import "github.com/beevik/etree"

// Report describes the enrichment-relevant state of one document.
type Report struct {
	WellFormed bool              `json:"well_formed"`
	ParseError string            `json:"parse_error,omitempty"`
	OrderID    string            `json:"order_id,omitempty"`
	HasSection bool              `json:"has_enrichment_section"`
	Values     map[string]string `json:"values,omitempty"`
}

// Validate inspects a document without modifying it: well-formedness,
// presence of an order identifier, and the contents of the enrichment
// section if one exists.
func Validate(doc []byte) Report {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(doc); err != nil {
		return Report{ParseError: err.Error()}
	}
	root := tree.Root()
	if root == nil {
		return Report{ParseError: "no root element"}
	}

	rep := Report{
		WellFormed: true,
		OrderID:    findOrderID(root),
	}
	if section := childByTag(root, sectionTag); section != nil {
		rep.HasSection = true
		rep.Values = make(map[string]string)
		for _, child := range section.ChildElements() {
			rep.Values[child.Tag] = trimmedText(child)
		}
	}
	return rep
}
