package util

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var charsetRE = regexp.MustCompile(`(?i)charset\s*=\s*([A-Za-z0-9._-]+)`)

// CharsetFromContentType extracts the charset token from a Content-Type
// header value, or "" when absent.
func CharsetFromContentType(contentType string) string {
	match := charsetRE.FindStringSubmatch(contentType)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

type charsetCandidate struct {
	name string
	enc  encoding.Encoding
}

// DecodeJapaneseBytes decodes upstream bytes deterministically. The
// endpoints usually omit charset and HTTP-layer guessing is wrong for
// Japanese text, so candidates are tried in fixed order and the first
// that decodes without replacement characters wins. The fallback decodes
// as cp932 with replacements counted.
func DecodeJapaneseBytes(raw []byte, contentType string) (text string, encodingName string, replacements int) {
	candidates := []charsetCandidate{}

	if name := CharsetFromContentType(contentType); name != "" {
		if enc, err := htmlindex.Get(name); err == nil {
			candidates = append(candidates, charsetCandidate{strings.ToLower(name), enc})
		}
	}
	candidates = append(candidates,
		charsetCandidate{"cp932", japanese.ShiftJIS},
		charsetCandidate{"shift_jis", japanese.ShiftJIS},
		charsetCandidate{"utf-8", unicode.UTF8},
		charsetCandidate{"euc_jp", japanese.EUCJP},
	)

	seen := make(map[string]bool)
	for _, candidate := range candidates {
		if seen[candidate.name] {
			continue
		}
		seen[candidate.name] = true

		decoded, err := decodeWith(candidate.enc, raw)
		if err != nil {
			continue
		}
		if count := strings.Count(decoded, "�"); count == 0 {
			return decoded, candidate.name, 0
		}
	}

	decoded, err := decodeWith(japanese.ShiftJIS, raw)
	if err != nil {
		// undecodable even with replacements; hand back raw bytes
		return string(raw), "binary", strings.Count(string(raw), "�")
	}
	return decoded, "cp932", strings.Count(decoded, "�")
}

func decodeWith(enc encoding.Encoding, raw []byte) (string, error) {
	if enc == unicode.UTF8 {
		if !utf8.Valid(raw) {
			return "", transform.ErrShortSrc
		}
		return string(raw), nil
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
