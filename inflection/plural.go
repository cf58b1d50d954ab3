// Package inflection provides English noun pluralization for deriving
// default table names from entity type names.
package inflection

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// exceptions are returned unchanged, matched against the whole word.
var exceptions = map[string]struct{}{
	"aircraft":    {},
	"bison":       {},
	"chassis":     {},
	"corps":       {},
	"deer":        {},
	"equipment":   {},
	"information": {},
	"jeans":       {},
	"moose":       {},
	"offspring":   {},
	"police":      {},
	"rice":        {},
	"salmon":      {},
	"swine":       {},
	"trout":       {},
}

// irregular maps a singular ending to its plural ending. Entries marked whole
// only match a complete word, either the entire input or its last CamelCase
// segment (SalesPerson -> SalesPeople).
var irregular = []struct {
	singular string
	plural   string
	whole    bool
}{
	{"is", "es", false},
	{"ix", "ices", false},
	{"eau", "eaux", false},
	{"quiz", "quizzes", false},
	{"alf", "alves", false},
	{"elf", "elves", false},
	{"ife", "ives", false},
	{"tooth", "teeth", false},
	{"foot", "feet", false},
	{"goose", "geese", false},
	{"child", "children", true},
	{"person", "people", true},
	{"man", "men", true},
	{"woman", "women", true},
	{"mouse", "mice", true},
	{"louse", "lice", true},
	{"ox", "oxen", true},
	{"index", "indices", true},
	{"vertex", "vertices", true},
	{"codex", "codices", true},
	{"cactus", "cacti", true},
	{"fungus", "fungi", true},
	{"nucleus", "nuclei", true},
	{"radius", "radii", true},
	{"criterion", "criteria", true},
	{"phenomenon", "phenomena", true},
	// consonant + o words that take a plain -s
	{"photo", "photos", true},
	{"piano", "pianos", true},
	{"halo", "halos", true},
	{"memo", "memos", true},
	{"logo", "logos", true},
	{"auto", "autos", true},
	{"kilo", "kilos", true},
	{"euro", "euros", true},
	{"demo", "demos", true},
	{"typo", "typos", true},
	{"combo", "combos", true},
	{"promo", "promos", true},
	{"solo", "solos", true},
	{"tempo", "tempos", true},
	{"zero", "zeros", true},
	{"disco", "discos", true},
	{"macro", "macros", true},
	{"info", "info", true},
}

// invariant endings whose plural equals the singular.
var invariant = []string{
	"sheep",
	"fish",
	"data",
	"series",
	"species",
	"news",
	"media",
	"metadata",
	"money",
	"music",
	"software",
	"hardware",
	"feedback",
	"traffic",
	"staff",
	"cattle",
}

// Pluralize returns the English plural of a singular noun. Rules are checked
// in order: pass-through exceptions, irregular endings (longest match wins),
// invariant endings, trailing digits, -y, -o, already -ies, sibilants, and
// finally a plain -s. The casing of the input is preserved.
func Pluralize(word string) string {
	if word == "" {
		return word
	}
	lower := fold(word)
	if _, ok := exceptions[lower]; ok {
		return word
	}
	if p, ok := pluralizeIrregular(word, lower); ok {
		return p
	}
	for _, end := range invariant {
		if strings.HasSuffix(lower, end) {
			return word
		}
	}
	last, _ := utf8.DecodeLastRuneInString(word)
	if unicode.IsDigit(last) {
		return word
	}
	switch {
	case strings.HasSuffix(lower, "y"):
		if len(lower) > 1 && isVowel(lower[len(lower)-2]) {
			return word + suffix(word, "s")
		}
		return word[:len(word)-1] + suffix(word, "ies")
	case strings.HasSuffix(lower, "o"):
		if len(lower) > 1 && !isVowel(lower[len(lower)-2]) {
			return word + suffix(word, "es")
		}
		return word + suffix(word, "s")
	case strings.HasSuffix(lower, "ies"):
		return word
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"), strings.HasSuffix(lower, "z"),
		strings.HasSuffix(lower, "ch"), strings.HasSuffix(lower, "sh"):
		return word + suffix(word, "es")
	default:
		return word + suffix(word, "s")
	}
}

// pluralizeIrregular applies the longest matching irregular ending.
func pluralizeIrregular(word, lower string) (string, bool) {
	best := -1
	for i, ir := range irregular {
		if !strings.HasSuffix(lower, ir.singular) {
			continue
		}
		if ir.whole && !wordBoundary(word, len(word)-len(ir.singular)) {
			continue
		}
		if best == -1 || len(ir.singular) > len(irregular[best].singular) {
			best = i
		}
	}
	if best == -1 {
		return "", false
	}
	ir := irregular[best]
	at := len(word) - len(ir.singular)
	return word[:at] + matchCase(word[at:], ir.plural), true
}

// wordBoundary reports whether a word starts at byte offset i of s: either the
// start of the string or an upper-case letter following a lower-case one.
func wordBoundary(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	prev, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsUpper(r) && !unicode.IsUpper(prev)
}

// matchCase renders plural in the case style of the replaced text.
func matchCase(replaced, plural string) string {
	switch {
	case isUpper(replaced):
		return strings.ToUpper(plural)
	case replaced != "" && unicode.IsUpper([]rune(replaced)[0]):
		// Casers carry state and are not shared between goroutines.
		return cases.Title(language.English, cases.NoLower).String(plural)
	default:
		return plural
	}
}

// suffix returns s upper-cased when the word ends in an upper-case letter.
func suffix(word, s string) string {
	last, _ := utf8.DecodeLastRuneInString(word)
	if unicode.IsUpper(last) && isUpper(word) {
		return strings.ToUpper(s)
	}
	return s
}

func fold(s string) string {
	f := cases.Fold().String(s)
	if len(f) != len(s) {
		// Folding changed byte offsets (e.g. ß); offsets must stay aligned.
		return strings.ToLower(s)
	}
	return f
}

func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
