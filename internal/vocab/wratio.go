package vocab

import (
	"strings"
	"unicode"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lowerFR    = cases.Lower(language.French)
)

// normalize lower-cases s, strips accents, turns every non letter/digit into
// a space and trims the result.
func normalize(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = lowerFR.String(folded)
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.TrimSpace(mapped)
}

// WRatio scores the similarity of a and b on a 0-100 scale with the
// fuzzywuzzy weighted ratio. Accents are stripped first: the scorer drops
// non-ASCII runes, which would otherwise erase "é" instead of matching "e".
func WRatio(a, b string) int {
	p1, p2 := normalize(a), normalize(b)
	if p1 == "" || p2 == "" {
		return 0
	}
	return fuzzy.WRatio(p1, p2)
}
