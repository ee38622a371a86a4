package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// letters that do not decompose into a base letter plus a combining mark
var extraFold = strings.NewReplacer(
	"ı", "i", "ß", "ss", "æ", "ae", "ø", "o", "đ", "d", "ł", "l", "œ", "oe",
)

// Generate creates an ASCII, hyphen-separated slug from the given name.
// Accented letters are folded to their base letter.
//
// Examples:
//   - "Kadın Giyim" → "kadin-giyim"
//   - "Crème Brûlée Set" → "creme-brulee-set"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = extraFold.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
