// Package normalize holds the display and search-key normalization rules
// shared by the build pipeline and the schema backfill. Search
// compatibility depends on these rules staying in one place.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	tagRE   = regexp.MustCompile(`<[^>]+>`)
	spaceRE = regexp.MustCompile(`\s+`)

	// stripMarks decomposes to NFD and removes combining marks
	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
)

// searchKeyReplacements maps characters that NFD decomposition alone does
// not fold to their ASCII search forms.
var searchKeyReplacements = strings.NewReplacer(
	"ä", "a",
	"ö", "o",
	"ü", "u",
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ø", "o",
	"å", "a",
	"ç", "c",
	"ñ", "n",
	"á", "a",
	"à", "a",
	"â", "a",
	"ã", "a",
	"é", "e",
	"è", "e",
	"ê", "e",
	"ë", "e",
	"í", "i",
	"ì", "i",
	"î", "i",
	"ï", "i",
	"ó", "o",
	"ò", "o",
	"ô", "o",
	"õ", "o",
	"ú", "u",
	"ù", "u",
	"û", "u",
	"ý", "y",
	"ÿ", "y",
)

// TextageString normalizes an upstream string for display: HTML entities
// unescaped, markup stripped, whitespace collapsed.
func TextageString(s string) string {
	value := html.UnescapeString(s)
	value = tagRE.ReplaceAllString(value, "")
	value = spaceRE.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// TitleSearchKey derives the normalized lookup key for a title.
//
// Fixed order:
//  1. lowercase
//  2. trim
//  3. replacement table
//  4. NFD decomposition + combining mark removal
//  5. whitespace collapse
func TitleSearchKey(title string) string {
	value := strings.ToLower(title)
	value = strings.TrimSpace(value)
	value = searchKeyReplacements.Replace(value)

	if folded, _, err := transform.String(stripMarks, value); err == nil {
		value = folded
	}

	return spaceRE.ReplaceAllString(value, " ")
}
