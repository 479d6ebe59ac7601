package generator

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fallbackName is used when a base name sanitizes to nothing.
const fallbackName = "book"

// OutputName builds "<base>[_PartN][_FORMAT].pdf". The part suffix is added
// only when the format produced several parts, the format suffix only when
// several formats were requested.
func OutputName(base string, part int, multiPart bool, format string, multiFormat bool) string {
	name := sanitize(base)
	if multiPart {
		name += "_Part" + strconv.Itoa(part)
	}
	if multiFormat {
		name += "_" + sanitize(format)
	}
	return name + ".pdf"
}

// sanitize strips accents and keeps letters, digits, spaces, '-' and '_'.
func sanitize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return fallbackName
	}
	return out
}
