// Package style holds the typed book style template: page geometry, font
// mappings and per-element typography. Templates are loaded by name from a
// directory of JSON or YAML files.
package style

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is a complete style template. All lengths are in points.
// A zero numeric field means "not supplied"; readers use the *Or accessors.
type Config struct {
	Name            string              `json:"name" yaml:"name"`
	Description     string              `json:"description,omitempty" yaml:"description,omitempty"`
	Page            Page                `json:"page" yaml:"page"`
	Fonts           map[string]FontSpec `json:"fonts,omitempty" yaml:"fonts,omitempty"`
	TitlePage       TitlePage           `json:"title_page" yaml:"title_page"`
	PageNumbers     PageNumbers         `json:"page_numbers" yaml:"page_numbers"`
	TableOfContents TableOfContents     `json:"table_of_contents" yaml:"table_of_contents"`
	ChapterHeading  ChapterHeading      `json:"chapter_heading" yaml:"chapter_heading"`
	SectionHeading  SectionHeading      `json:"section_heading" yaml:"section_heading"`
	Paragraph       TextStyle           `json:"paragraph" yaml:"paragraph"`
	CodeBlock       TextStyle           `json:"code_block" yaml:"code_block"`
	Table           Table               `json:"table" yaml:"table"`
	Image           Image               `json:"image" yaml:"image"`
}

// Page describes the sheet. Size is a named size from the page table or
// "CUSTOM", in which case Width and Height are required.
type Page struct {
	Size    string  `json:"size" yaml:"size"`
	Width   float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Height  float64 `json:"height,omitempty" yaml:"height,omitempty"`
	Margins Margins `json:"margins" yaml:"margins"`
}

// Margins in points.
type Margins struct {
	Left   float64 `json:"left" yaml:"left"`
	Right  float64 `json:"right" yaml:"right"`
	Top    float64 `json:"top" yaml:"top"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
}

// FontSpec is either a standard PDF font name ("Times-Roman") or a custom
// family given as TrueType file names relative to the fonts directory.
type FontSpec struct {
	Standard   string
	Normal     string
	Bold       string
	Italic     string
	BoldItalic string
}

type fontFamily struct {
	Normal     string `json:"normal" yaml:"normal"`
	Bold       string `json:"bold,omitempty" yaml:"bold,omitempty"`
	Italic     string `json:"italic,omitempty" yaml:"italic,omitempty"`
	BoldItalic string `json:"bold_italic,omitempty" yaml:"bold_italic,omitempty"`
}

// IsFamily reports whether f references font files rather than a standard font.
func (f FontSpec) IsFamily() bool {
	return f.Standard == "" && f.Normal != ""
}

func (f *FontSpec) setFamily(fam fontFamily) {
	*f = FontSpec{Normal: fam.Normal, Bold: fam.Bold, Italic: fam.Italic, BoldItalic: fam.BoldItalic}
}

func (f FontSpec) family() fontFamily {
	return fontFamily{Normal: f.Normal, Bold: f.Bold, Italic: f.Italic, BoldItalic: f.BoldItalic}
}

// UnmarshalJSON accepts a string or a family object.
func (f *FontSpec) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*f = FontSpec{Standard: name}
		return nil
	}
	var fam fontFamily
	if err := json.Unmarshal(data, &fam); err != nil {
		return err
	}
	f.setFamily(fam)
	return nil
}

// MarshalJSON writes the same shape UnmarshalJSON reads.
func (f FontSpec) MarshalJSON() ([]byte, error) {
	if f.Standard != "" {
		return json.Marshal(f.Standard)
	}
	return json.Marshal(f.family())
}

// UnmarshalYAML accepts a scalar or a family mapping.
func (f *FontSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*f = FontSpec{Standard: value.Value}
		return nil
	}
	var fam fontFamily
	if err := value.Decode(&fam); err != nil {
		return err
	}
	f.setFamily(fam)
	return nil
}

// MarshalYAML writes the same shape UnmarshalYAML reads.
func (f FontSpec) MarshalYAML() (interface{}, error) {
	if f.Standard != "" {
		return f.Standard, nil
	}
	return f.family(), nil
}

// TextStyle is the typography and spacing record shared by every section.
type TextStyle struct {
	Font            string  `json:"font,omitempty" yaml:"font,omitempty"`
	Size            float64 `json:"size,omitempty" yaml:"size,omitempty"`
	Leading         float64 `json:"leading,omitempty" yaml:"leading,omitempty"`
	Color           string  `json:"color,omitempty" yaml:"color,omitempty"`
	Background      string  `json:"background,omitempty" yaml:"background,omitempty"`
	Alignment       string  `json:"alignment,omitempty" yaml:"alignment,omitempty"`
	Case            string  `json:"case,omitempty" yaml:"case,omitempty"`
	SpaceBefore     float64 `json:"space_before,omitempty" yaml:"space_before,omitempty"`
	SpaceAfter      float64 `json:"space_after,omitempty" yaml:"space_after,omitempty"`
	Indent          float64 `json:"indent,omitempty" yaml:"indent,omitempty"`
	FirstLineIndent float64 `json:"first_line_indent,omitempty" yaml:"first_line_indent,omitempty"`
	Padding         float64 `json:"padding,omitempty" yaml:"padding,omitempty"`
	BorderWidth     float64 `json:"border_width,omitempty" yaml:"border_width,omitempty"`
}

// SizeOr returns the font size or def when unset.
func (t TextStyle) SizeOr(def float64) float64 {
	if t.Size > 0 {
		return t.Size
	}
	return def
}

// LeadingOr returns the line height. Without an explicit leading it is
// 1.2 times the font size (or def's size when that is unset too).
func (t TextStyle) LeadingOr(defSize float64) float64 {
	if t.Leading > 0 {
		return t.Leading
	}
	return t.SizeOr(defSize) * 1.2
}

// FontOr returns the font reference or def when unset.
func (t TextStyle) FontOr(def string) string {
	if t.Font != "" {
		return t.Font
	}
	return def
}

// ColorOr returns the color or def when unset.
func (t TextStyle) ColorOr(def string) string {
	if t.Color != "" {
		return t.Color
	}
	return def
}

// AlignOr returns the fpdf alignment letter (L, C, R, J) for the style.
func (t TextStyle) AlignOr(def string) string {
	switch strings.ToLower(t.Alignment) {
	case "left":
		return "L"
	case "center", "centre":
		return "C"
	case "right":
		return "R"
	case "justify", "justified":
		return "J"
	default:
		return def
	}
}

// TitlePage styles the optional first page. Top and Between are fractions of
// the page height, not lengths.
type TitlePage struct {
	Show    bool       `json:"show" yaml:"show"`
	Title   TitleText  `json:"title" yaml:"title"`
	Author  AuthorText `json:"author" yaml:"author"`
	Top     float64    `json:"top,omitempty" yaml:"top,omitempty"`
	Between float64    `json:"between,omitempty" yaml:"between,omitempty"`
}

// TitleText is the book title. Layout "words" puts every word on its own
// line; any other value wraps normally.
type TitleText struct {
	TextStyle `yaml:",inline"`
	Layout    string `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// AuthorText is the author line with an optional prefix line ("By").
type AuthorText struct {
	TextStyle `yaml:",inline"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// PageNumbers controls folios. Format understands {current} and {total}.
// Position is "<top|bottom>-<left|center|right>". Pages before StartPage are
// left unnumbered.
type PageNumbers struct {
	TextStyle `yaml:",inline"`
	Show      bool   `json:"show" yaml:"show"`
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Position  string `json:"position,omitempty" yaml:"position,omitempty"`
	StartPage int    `json:"start_page,omitempty" yaml:"start_page,omitempty"`
}

// FormatOr returns the folio format or "{current}".
func (p PageNumbers) FormatOr() string {
	if p.Format != "" {
		return p.Format
	}
	return "{current}"
}

// TableOfContents styles the contents page. Levels[0] styles chapter entries,
// Levels[1] section entries.
type TableOfContents struct {
	Show   bool        `json:"show" yaml:"show"`
	Title  TitleLine   `json:"title" yaml:"title"`
	Levels []TextStyle `json:"levels,omitempty" yaml:"levels,omitempty"`
}

// TitleLine is a styled fixed text such as "Contents".
type TitleLine struct {
	TextStyle `yaml:",inline"`
	Text      string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Level returns the style for depth i, falling back to the deepest defined.
func (t TableOfContents) Level(i int) TextStyle {
	if len(t.Levels) == 0 {
		return TextStyle{}
	}
	if i >= len(t.Levels) {
		i = len(t.Levels) - 1
	}
	return t.Levels[i]
}

// ChapterHeading styles chapter openings.
type ChapterHeading struct {
	Number    ChapterNumber `json:"number" yaml:"number"`
	Title     TextStyle     `json:"title" yaml:"title"`
	Divider   Divider       `json:"divider" yaml:"divider"`
	PageBreak PageBreak     `json:"page_break" yaml:"page_break"`
	// TopSpace is a fraction of the usable height left blank above the heading.
	TopSpace float64 `json:"top_space,omitempty" yaml:"top_space,omitempty"`
}

// ChapterNumber is the "CHAPTER 3" line; an empty Prefix hides it.
type ChapterNumber struct {
	TextStyle `yaml:",inline"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// PageBreak forces new pages around a heading.
type PageBreak struct {
	Before bool `json:"before" yaml:"before"`
	After  bool `json:"after" yaml:"after"`
}

// Divider is a horizontal rule. Type is "solid", "dotted" or "none".
type Divider struct {
	Type        string  `json:"type,omitempty" yaml:"type,omitempty"`
	Width       float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Color       string  `json:"color,omitempty" yaml:"color,omitempty"`
	SpaceBefore float64 `json:"space_before,omitempty" yaml:"space_before,omitempty"`
	SpaceAfter  float64 `json:"space_after,omitempty" yaml:"space_after,omitempty"`
}

// Visible reports whether the divider draws anything.
func (d Divider) Visible() bool {
	t := strings.ToLower(d.Type)
	return t == "solid" || t == "dotted"
}

// SectionHeading styles headings inside a chapter.
type SectionHeading struct {
	TextStyle `yaml:",inline"`
	Divider   Divider `json:"divider" yaml:"divider"`
}

// Table styles tabular blocks.
type Table struct {
	Header      TextStyle `json:"header" yaml:"header"`
	Cell        TextStyle `json:"cell" yaml:"cell"`
	BorderWidth float64   `json:"border_width,omitempty" yaml:"border_width,omitempty"`
	BorderColor string    `json:"border_color,omitempty" yaml:"border_color,omitempty"`
	SpaceBefore float64   `json:"space_before,omitempty" yaml:"space_before,omitempty"`
	SpaceAfter  float64   `json:"space_after,omitempty" yaml:"space_after,omitempty"`
}

// Image styles figures. MaxWidth is a fraction of the usable width (0..1].
type Image struct {
	MaxWidth    float64   `json:"max_width,omitempty" yaml:"max_width,omitempty"`
	SpaceBefore float64   `json:"space_before,omitempty" yaml:"space_before,omitempty"`
	SpaceAfter  float64   `json:"space_after,omitempty" yaml:"space_after,omitempty"`
	Caption     TextStyle `json:"caption" yaml:"caption"`
}

// MaxWidthOr returns the width fraction or def.
func (i Image) MaxWidthOr(def float64) float64 {
	if i.MaxWidth > 0 && i.MaxWidth <= 1 {
		return i.MaxWidth
	}
	return def
}
