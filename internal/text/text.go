// Package text holds stand-alone utilities for manipulating the
// parliament site's text: date parsing, whitespace cleanup, Greek glyph
// repair and slug generation.
package text

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// unaccenter strips combining marks after NFD decomposition.
var unaccenter = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Unaccent removes diacritics and downcases the input.
func Unaccent(s string) string {
	out, _, err := transform.String(unaccenter, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

// greekMonths maps unaccented, downcased Greek month names, in both the
// nominative and the genitive, to month numbers.
var greekMonths = map[string]int{
	"ιανουαριος": 1, "ιανουαριου": 1,
	"φεβρουαριος": 2, "φεβρουαριου": 2,
	"μαρτιος": 3, "μαρτιου": 3,
	"απριλιος": 4, "απριλιου": 4,
	"μαιος": 5, "μαιου": 5,
	"ιουνιος": 6, "ιουνιου": 6,
	"ιουλιος": 7, "ιουλιου": 7,
	"αυγουστος": 8, "αυγουστου": 8,
	"σεπτεμβριος": 9, "σεπτεμβριου": 9,
	"οκτωβριος": 10, "οκτωβριου": 10,
	"νοεμβριος": 11, "νοεμβριου": 11,
	"δεκεμβριος": 12, "δεκεμβριου": 12,
}

var longDateRe = regexp.MustCompile(`(\d{1,2})(?:ης?)?[\s\p{Zs}]+(\p{L}+)[\s\p{Zs}]+(\d{4})`)

// plenaryDateExceptions covers agenda headings that never carried a
// parsable date on the site.
var plenaryDateExceptions = map[string]string{
	"Συμπληρωματική ημερήσια διάταξη 40-11072013":     "2013-07-11",
	"Συμπληρωματική Η.Δ. 17ης Συνεδρίας - 12 12 2013": "2013-12-12",
}

// ParseLongDate converts a "long" date in Greek into an ISO date.
// Plenary agenda headings get an extra exception table.
func ParseLongDate(s string, plenary bool) (string, error) {
	if plenary {
		if date, ok := plenaryDateExceptions[strings.TrimSpace(s)]; ok {
			return date, nil
		}
	}
	m := longDateRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("unable to disassemble date in %q", s)
	}
	month, ok := greekMonths[Unaccent(m[2])]
	if !ok {
		return "", fmt.Errorf("malformed month in date %q", s)
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%d-%02d-%02d", year, month, day), nil
}

var shortDateRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})[\\/]{0,2}(\d{4})`)

// ParseShortDate converts a slash-delimited date into an ISO date.
func ParseShortDate(s string) (string, error) {
	m := shortDateRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("unable to disassemble date in %q", s)
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%d-%02d-%02d", year, month, day), nil
}

var transcriptDateRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})(?:-(\d))?`)

// transcriptDateExceptions: the 2014-01-30 sitting's transcript was
// uploaded under the wrong date.
var transcriptDateExceptions = map[string][2]string{
	"http://www2.parliament.cy/parliamentgr/008_01/008_02_IC/praktiko2013-12-30.pdf": {
		"2014-01-30", "2014-01-30"},
}

// ParseTranscriptDate extracts the sitting date and a sitting id (date
// plus an optional same-day counter) from a transcript URL.
func ParseTranscriptDate(s string) (date, id string, ok bool) {
	if exc, found := transcriptDateExceptions[s]; found {
		return exc[0], exc[1], true
	}
	m := transcriptDateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", "", false
	}
	date = m[1]
	id = date
	if m[2] != "" {
		id = date + "_" + m[2]
	}
	return date, id, true
}

var spacesRe = regexp.MustCompile(`[ \t\p{Zs}]+`)

// CleanSpaces tidies up whitespace, preserving single newlines unless
// medialNewlines is set.
func CleanSpaces(s string, medialNewlines bool) string {
	if medialNewlines {
		return strings.Join(strings.Fields(s), " ")
	}
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = spacesRe.ReplaceAllString(strings.TrimSpace(line), " ")
	}
	return strings.Join(lines, "\n")
}

// latinToGreek repairs Latin characters the site mixes into Greek
// lexemes with their visual Greek equivalents.
var latinToGreek = strings.NewReplacer(
	"’", "Ά", "A", "Α", "B", "Β", "E", "Ε", "Z", "Ζ", "H", "Η",
	"I", "Ι", "K", "Κ", "M", "Μ", "N", "Ν", "O", "Ο", "P", "Ρ",
	"T", "Τ", "Y", "Υ", "X", "Χ", "v", "ν", "o", "ο",
)

// UngarbleGreek indiscriminately replaces Latin characters with Greek
// lookalikes. Question headings need this before any pattern matching.
func UngarbleGreek(s string) string {
	return latinToGreek.Replace(s)
}

// greekDigraphs rewrites the vowel digraphs ahead of the per-letter
// pass: ου becomes ou, while the υ of αυ and ευ becomes f before a
// voiceless consonant or at word end and v elsewhere, per ELOT 743.
// Operates on unaccented, downcased input.
func greekDigraphs(s string) string {
	in := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(in); i++ {
		r := in[i]
		if i+1 < len(in) && in[i+1] == 'υ' {
			switch r {
			case 'ο':
				b.WriteString("ou")
				i++
				continue
			case 'α', 'ε':
				b.WriteRune(r)
				if voicelessFollows(in, i+2) {
					b.WriteByte('f')
				} else {
					b.WriteByte('v')
				}
				i++
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func voicelessFollows(in []rune, i int) bool {
	if i >= len(in) || !unicode.IsLetter(in[i]) {
		return true
	}
	switch in[i] {
	case 'θ', 'κ', 'ξ', 'π', 'σ', 'ς', 'τ', 'φ', 'χ', 'ψ':
		return true
	}
	return false
}

// greekToLatin transliterates Greek letters for slug generation.
var greekToLatin = strings.NewReplacer(
	"α", "a", "β", "v", "γ", "g", "δ", "d", "ε", "e", "ζ", "z",
	"η", "i", "θ", "th", "ι", "i", "κ", "k", "λ", "l", "μ", "m",
	"ν", "n", "ξ", "x", "ο", "o", "π", "p", "ρ", "r", "σ", "s",
	"ς", "s", "τ", "t", "υ", "y", "φ", "f", "χ", "ch", "ψ", "ps",
	"ω", "o",
)

// TransliterateLatin renders a Greek name in Latin characters, one
// capitalized word per source word.
func TransliterateLatin(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		latin := greekToLatin.Replace(greekDigraphs(Unaccent(word)))
		if latin == "" {
			continue
		}
		runes := []rune(latin)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts Greek (or any) text into a hyphenated ASCII slug
// suitable for record ids and filenames.
func Slugify(s string) string {
	s = greekToLatin.Replace(greekDigraphs(Unaccent(s)))
	s = nonSlugRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// TruncateSlug shortens a slug to maxLength without splitting words.
func TruncateSlug(slug string, maxLength int) (string, error) {
	orig := slug
	for len(slug) > maxLength {
		i := strings.LastIndex(slug, "-")
		if i < 0 {
			slug = ""
			break
		}
		slug = slug[:i]
	}
	if slug == "" {
		return "", fmt.Errorf("initial component of slug %q is longer than %d", orig, maxLength)
	}
	return slug, nil
}
