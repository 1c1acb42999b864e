package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// foldedText is a lowercased, diacritic-stripped view of a source string that
// remembers where every folded byte came from. Label patterns are written in
// plain ASCII and matched against the folded form; captured values are read
// back from the original text so accents survive into the record
// ("Confirmée" stays "Confirmée" even though the rule matched "confirmee").
type foldedText struct {
	folded string
	// srcStart[i] is the byte offset in the original text of the source rune
	// that produced folded byte i; srcEnd[i] is the offset just past it.
	srcStart []int
	srcEnd   []int
	src      string
}

// foldText builds the folded view. Each source rune is NFD-decomposed, its
// combining marks dropped, and the remaining runes lowercased, so the
// byte-offset mapping stays exact per source rune.
func foldText(s string) *foldedText {
	var b strings.Builder
	b.Grow(len(s))

	ft := &foldedText{src: s}
	for i, r := range s {
		next := i + utf8.RuneLen(r)
		for _, d := range norm.NFD.String(string(r)) {
			if unicode.Is(unicode.Mn, d) {
				continue
			}
			d = unicode.ToLower(d)
			n := utf8.RuneLen(d)
			b.WriteRune(d)
			for k := 0; k < n; k++ {
				ft.srcStart = append(ft.srcStart, i)
				ft.srcEnd = append(ft.srcEnd, next)
			}
		}
	}
	ft.folded = b.String()
	return ft
}

// original maps a [start,end) byte range of the folded text back to the
// corresponding substring of the source text.
func (ft *foldedText) original(start, end int) string {
	if start >= end || start < 0 || end > len(ft.folded) {
		return ""
	}
	return ft.src[ft.srcStart[start]:ft.srcEnd[end-1]]
}
