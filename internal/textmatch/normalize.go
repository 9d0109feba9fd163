package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Stop words stripped during normalization: brand and marketing noise that
// would otherwise corrupt similarity scoring.
var stopWords = map[string]bool{
	"boni":     true,
	"bio":      true,
	"everyday": true,
}

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a raw item description into a comparable form:
// lowercase, trimmed, whitespace collapsed, diacritics stripped, and with
// purely numeric tokens and known noise words removed.
func Normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))

	if stripped, _, err := transform.String(stripDiacritics, text); err == nil {
		text = stripped
	}

	tokens := strings.Fields(text)
	kept := tokens[:0]
	for _, token := range tokens {
		if stopWords[token] || isNumeric(token) {
			continue
		}
		kept = append(kept, token)
	}

	return strings.Join(kept, " ")
}

// isNumeric reports whether the token consists solely of digits and numeric
// punctuation (e.g. "2", "0.5", "1,5"). Mixed alphanumerics are kept.
func isNumeric(token string) bool {
	hasDigit := false
	for _, r := range token {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case r == '.' || r == ',' || r == '%':
			// allowed in numeric tokens
		default:
			return false
		}
	}
	return hasDigit
}
