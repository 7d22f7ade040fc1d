package textage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/iidx-tools/songmaster/internal/util"
)

// The upstream tables are JS source, not JSON: single-quoted keys, bare
// hex tokens, named constants, markup decorations and line comments. The
// extraction below normalizes one `varname = {...}` object into JSON and
// decodes it; anything that still does not fit the expected shape is a
// structured parse error, never an index panic downstream.

var (
	constDefRE     = regexp.MustCompile(`([A-Z_][A-Z0-9_]*)\s*=\s*([0-9]+)\s*;`)
	fontColorRE    = regexp.MustCompile(`\.fontcolor\([^)]*\)`)
	quotedKeyRE    = regexp.MustCompile(`'([^']*?)'(\s*):`)
	titleEntryRE   = regexp.MustCompile(`(?s)['"]([^'"]+)['"]\s*:\s*(\[[^\]]*\])`)
	identifierHead = "ABCDEFGHIJKLMNOPQRSTUVWXYZ_"
)

// ParseTitleTable extracts titletbl from JS source
func ParseTitleTable(js string) (map[string]TitleRow, error) {
	objText, err := extractObjectText(js, "titletbl")
	if err != nil {
		return nil, err
	}
	objText = preprocess(objText, tableConstants(js))

	rows := make(map[string]TitleRow)
	for _, match := range titleEntryRE.FindAllStringSubmatch(objText, -1) {
		tag, arrText := match[1], match[2]

		var raw []any
		if err := json.Unmarshal([]byte(escapeControlChars(arrText)), &raw); err != nil {
			// decoration-only entries that resist normalization are
			// not song rows
			util.DebugLog("titletbl[%s]: skipping undecodable entry", tag)
			continue
		}

		row, err := parseTitleRow(tag, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrParse, err)
		}
		rows[tag] = row
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: titletbl has no entries", util.ErrParse)
	}
	return rows, nil
}

// ParseDataTable extracts datatbl from JS source
func ParseDataTable(js string) (map[string]DataRow, error) {
	raw, err := decodeObject(js, "datatbl")
	if err != nil {
		return nil, err
	}

	rows := make(map[string]DataRow, len(raw))
	for tag, arr := range raw {
		row, err := parseDataRow(tag, arr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrParse, err)
		}
		rows[tag] = row
	}
	return rows, nil
}

// ParseActTable extracts actbl from JS source
func ParseActTable(js string) (map[string]ActRow, error) {
	raw, err := decodeObject(js, "actbl")
	if err != nil {
		return nil, err
	}

	rows := make(map[string]ActRow, len(raw))
	for tag, arr := range raw {
		row, err := parseActRow(tag, arr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrParse, err)
		}
		rows[tag] = row
	}
	return rows, nil
}

func decodeObject(js, varname string) (map[string][]any, error) {
	objText, err := extractObjectText(js, varname)
	if err != nil {
		return nil, err
	}
	objText = preprocess(objText, tableConstants(js))
	objText = escapeControlChars(objText)

	var decoded map[string][]any
	if err := json.Unmarshal([]byte(objText), &decoded); err != nil {
		return nil, fmt.Errorf("%w: json decode failed for %s: %v", util.ErrParse, varname, err)
	}
	return decoded, nil
}

// tableConstants collects `NAME = 123;` definitions so occurrences inside
// the object can be replaced with the negative-value convention that
// keeps them distinguishable from plain version numbers.
func tableConstants(js string) map[string]string {
	consts := make(map[string]string)
	for _, match := range constDefRE.FindAllStringSubmatch(js, -1) {
		consts[match[1]] = "-" + match[2]
	}
	return consts
}

// extractObjectText returns the balanced `{...}` assigned to varname,
// tracking string literals so braces inside titles do not end the scan.
func extractObjectText(js, varname string) (string, error) {
	assignRE := regexp.MustCompile(varname + `\s*=\s*\{`)
	loc := assignRE.FindStringIndex(js)
	if loc == nil {
		return "", fmt.Errorf("%w: %s not found in JS", util.ErrParse, varname)
	}

	start := strings.Index(js[loc[0]:], "{") + loc[0]
	depth := 0
	inStr := false
	escaped := false
	var strChar byte

	for i := start; i < len(js); i++ {
		ch := js[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == strChar:
				inStr = false
			}
			continue
		}
		switch ch {
		case '"', '\'':
			inStr = true
			strChar = ch
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return js[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: closing brace for %s not found", util.ErrParse, varname)
}

// preprocess walks the object text outside string literals, stripping
// line comments, substituting named constants and quoting bare A-F hex
// tokens, then applies the markup and key-quoting rewrites.
func preprocess(objText string, consts map[string]string) string {
	var out strings.Builder
	out.Grow(len(objText))

	inStr := false
	escaped := false
	var strChar byte

	for i := 0; i < len(objText); i++ {
		ch := objText[i]

		if inStr {
			out.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == strChar:
				inStr = false
			}
			continue
		}

		switch {
		case ch == '"' || ch == '\'':
			inStr = true
			strChar = ch
			out.WriteByte(ch)

		case ch == '/' && i+1 < len(objText) && objText[i+1] == '/':
			for i < len(objText) && objText[i] != '\n' {
				i++
			}
			if i < len(objText) {
				out.WriteByte('\n')
			}

		case strings.IndexByte(identifierHead, ch) >= 0:
			end := i + 1
			for end < len(objText) && isIdentByte(objText[end]) {
				end++
			}
			token := objText[i:end]
			switch {
			case consts[token] != "":
				out.WriteString(consts[token])
			case len(token) == 1 && token[0] >= 'A' && token[0] <= 'F' &&
				delimitedHexToken(objText, i, end):
				out.WriteByte('"')
				out.WriteString(token)
				out.WriteByte('"')
			default:
				out.WriteString(token)
			}
			i = end - 1

		default:
			out.WriteByte(ch)
		}
	}

	text := fontColorRE.ReplaceAllString(out.String(), "")
	return quotedKeyRE.ReplaceAllString(text, `"$1"$2:`)
}

func isIdentByte(ch byte) bool {
	return ch == '_' ||
		(ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
}

// delimitedHexToken reports whether the token at [start,end) sits alone
// between array delimiters, which is how actbl writes hex level digits.
func delimitedHexToken(text string, start, end int) bool {
	before := byte(0)
	for i := start - 1; i >= 0; i-- {
		if text[i] == ' ' || text[i] == '\t' || text[i] == '\n' || text[i] == '\r' {
			continue
		}
		before = text[i]
		break
	}
	after := byte(0)
	for i := end; i < len(text); i++ {
		if text[i] == ' ' || text[i] == '\t' || text[i] == '\n' || text[i] == '\r' {
			continue
		}
		after = text[i]
		break
	}
	return (before == ',' || before == '[') && (after == ',' || after == ']')
}

// escapeControlChars rewrites raw control characters inside double-quoted
// literals as \uXXXX so the JSON decoder accepts them.
func escapeControlChars(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	inStr := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if !inStr {
			if ch == '"' {
				inStr = true
			}
			out.WriteByte(ch)
			continue
		}

		switch {
		case escaped:
			escaped = false
			out.WriteByte(ch)
		case ch == '\\':
			escaped = true
			out.WriteByte(ch)
		case ch == '"':
			inStr = false
			out.WriteByte(ch)
		case ch < 0x20:
			fmt.Fprintf(&out, `\u%04x`, ch)
		default:
			out.WriteByte(ch)
		}
	}
	return out.String()
}
