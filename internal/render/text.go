package render

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// applyCase transforms s according to a style's case setting.
func applyCase(mode, s string) string {
	switch strings.ToLower(mode) {
	case "upper":
		return cases.Upper(language.Und).String(s)
	case "lower":
		return cases.Lower(language.Und).String(s)
	case "title":
		return cases.Title(language.English).String(s)
	}
	return s
}

type rgb struct{ R, G, B int }

// parseColor reads "#RRGGBB", "RRGGBB" or "#RGB". Anything else is def.
func parseColor(s string, def rgb) rgb {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return def
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return def
	}
	return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}
}

// splitFirstLine breaks text after as many words as fit in width according
// to measure. The first word is always taken so progress is guaranteed.
func splitFirstLine(text string, width float64, measure func(string) float64) (first, rest string) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return "", ""
	}
	n := 1
	for n < len(words) && measure(strings.Join(words[:n+1], " ")) <= width {
		n++
	}
	return strings.Join(words[:n], " "), strings.Join(words[n:], " ")
}

// folio renders a page-number format.
func folio(format string, current, total int) string {
	return strings.NewReplacer(
		"{current}", strconv.Itoa(current),
		"{total}", strconv.Itoa(total),
	).Replace(format)
}

// cellAlign maps a paragraph alignment to one CellFormat accepts.
func cellAlign(a string) string {
	if a == "J" {
		return "L"
	}
	return a
}
