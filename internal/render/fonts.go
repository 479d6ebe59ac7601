package render

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"bookpress/internal/logger"
	"bookpress/internal/style"
)

// fallbackFamily is used for unknown or unreadable fonts.
const fallbackFamily = "Helvetica"

// coreFamilies are the PDF base fonts fpdf ships metrics for.
var coreFamilies = map[string]string{
	"courier":      "Courier",
	"helvetica":    "Helvetica",
	"arial":        "Helvetica",
	"times":        "Times",
	"symbol":       "Symbol",
	"zapfdingbats": "ZapfDingbats",
}

// fontFace is an fpdf family plus style ("", "B", "I", "BI").
type fontFace struct {
	Family string
	Style  string
	UTF8   bool
}

// fontSet resolves the font references used by a style: keys of the
// style's fonts map, or standard names such as "Times-Bold".
type fontSet struct {
	faces map[string]fontFace
}

// newFontSet registers the style's custom TrueType families with pdf.
// Families whose files are missing fall back to Helvetica with a warning.
func newFontSet(pdf *fpdf.Fpdf, cfg *style.Config, fontsDir string) *fontSet {
	fs := &fontSet{faces: make(map[string]fontFace)}
	for key, spec := range cfg.Fonts {
		if !spec.IsFamily() {
			fs.faces[key] = parseStandardFont(spec.Standard)
			continue
		}
		face, ok := registerFamily(pdf, key, spec, fontsDir)
		if !ok {
			logger.Warn("custom font unavailable, using fallback",
				logger.String("font", key),
				logger.String("fallback", fallbackFamily))
			face = fontFace{Family: fallbackFamily}
		}
		fs.faces[key] = face
	}
	return fs
}

func registerFamily(pdf *fpdf.Fpdf, key string, spec style.FontSpec, fontsDir string) (fontFace, bool) {
	normal := fontPath(fontsDir, spec.Normal)
	if normal == "" {
		return fontFace{}, false
	}
	family := "bp-" + strings.ToLower(key)
	pdf.AddUTF8Font(family, "", normal)

	// Missing variants reuse the regular face.
	variants := []struct{ style, file string }{
		{"B", spec.Bold},
		{"I", spec.Italic},
		{"BI", spec.BoldItalic},
	}
	for _, v := range variants {
		file := fontPath(fontsDir, v.file)
		if file == "" {
			file = normal
		}
		pdf.AddUTF8Font(family, v.style, file)
	}
	if pdf.Err() {
		pdf.ClearError()
		return fontFace{}, false
	}
	return fontFace{Family: family, UTF8: true}, true
}

// fontPath resolves a font file against dir, or returns "" when it does not
// exist.
func fontPath(dir, name string) string {
	if name == "" {
		return ""
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(dir, name)
	}
	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		return ""
	}
	return name
}

// parseStandardFont maps names like "Helvetica-BoldOblique" or "Times-Roman"
// to an fpdf core family and style.
func parseStandardFont(name string) fontFace {
	base, mods, _ := strings.Cut(strings.TrimSpace(name), "-")
	family, ok := coreFamilies[strings.ToLower(base)]
	if !ok {
		return fontFace{Family: fallbackFamily}
	}

	mods = strings.ToLower(mods)
	face := fontFace{Family: family}
	if strings.Contains(mods, "bold") {
		face.Style += "B"
	}
	if strings.Contains(mods, "italic") || strings.Contains(mods, "oblique") {
		face.Style += "I"
	}
	return face
}

// roleDefaults back the conventional font keys when a style omits them.
var roleDefaults = map[string]string{
	"body":    "Times-Roman",
	"heading": "Helvetica-Bold",
	"mono":    "Courier",
}

// resolve returns the face for a TextStyle.Font reference, def when empty.
func (fs *fontSet) resolve(ref, def string) fontFace {
	if ref == "" {
		ref = def
	}
	if face, ok := fs.faces[ref]; ok {
		return face
	}
	if std, ok := roleDefaults[ref]; ok {
		return parseStandardFont(std)
	}
	return parseStandardFont(ref)
}

// withStyle merges extra ("B", "I") into a face's style.
func (f fontFace) withStyle(extra string) fontFace {
	bold := strings.Contains(f.Style, "B") || strings.Contains(extra, "B")
	italic := strings.Contains(f.Style, "I") || strings.Contains(extra, "I")
	f.Style = ""
	if bold {
		f.Style += "B"
	}
	if italic {
		f.Style += "I"
	}
	return f
}
