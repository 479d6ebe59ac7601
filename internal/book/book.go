// Package book defines the parsed content model (chapters made of typed
// blocks) and the loaders that build it from sections JSON, Markdown and HTML.
package book

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"unicode/utf8"
)

// BlockType tags a content block.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockList      BlockType = "list"
	BlockQuote     BlockType = "quote"
	BlockCode      BlockType = "code"
	BlockTable     BlockType = "table"
	BlockImage     BlockType = "image"
	BlockRule      BlockType = "horizontal_rule"
)

// Block is one unit of chapter content. Which fields are set depends on Type.
type Block struct {
	Type     BlockType  `json:"type"`
	Level    int        `json:"level,omitempty"`    // heading
	Text     string     `json:"text,omitempty"`     // heading, paragraph, quote, code
	Language string     `json:"language,omitempty"` // code
	Items    []string   `json:"items,omitempty"`    // list
	Ordered  bool       `json:"ordered,omitempty"`  // list
	Headers  []string   `json:"headers,omitempty"`  // table
	Rows     [][]string `json:"rows,omitempty"`     // table
	Path     string     `json:"path,omitempty"`     // image
	Alt      string     `json:"alt,omitempty"`      // image
}

// TextLen counts the runes of text the block puts on the page.
func (b Block) TextLen() int {
	n := utf8.RuneCountInString(b.Text)
	for _, it := range b.Items {
		n += utf8.RuneCountInString(it)
	}
	for _, h := range b.Headers {
		n += utf8.RuneCountInString(h)
	}
	for _, row := range b.Rows {
		for _, c := range row {
			n += utf8.RuneCountInString(c)
		}
	}
	n += utf8.RuneCountInString(b.Alt)
	return n
}

// Chapter is an atomic unit of content. Chapters are never mutated after
// loading.
type Chapter struct {
	ID     string  `json:"chapter_id"`
	Title  string  `json:"title"`
	Blocks []Block `json:"blocks"`
	Source string  `json:"source,omitempty"`
}

// CharCount is the rune count of the title plus every block's text.
func (c Chapter) CharCount() int {
	n := utf8.RuneCountInString(c.Title)
	for _, b := range c.Blocks {
		n += b.TextLen()
	}
	return n
}

// ImageCount is the number of image blocks.
func (c Chapter) ImageCount() int {
	n := 0
	for _, b := range c.Blocks {
		if b.Type == BlockImage {
			n++
		}
	}
	return n
}

// Fingerprint is a SHA-256 over the chapter's content, stable across runs.
func (c Chapter) Fingerprint() string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	// Encoding a struct of strings and slices cannot fail.
	_ = enc.Encode(c.ID)
	_ = enc.Encode(c.Title)
	_ = enc.Encode(c.Blocks)
	return hex.EncodeToString(h.Sum(nil))
}

// Headings returns the text of headings at level, in order.
func (c Chapter) Headings(level int) []string {
	var out []string
	for _, b := range c.Blocks {
		if b.Type == BlockHeading && b.Level == level {
			out = append(out, b.Text)
		}
	}
	return out
}

// Meta is book-level information for the title page and PDF metadata.
type Meta struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Author   string `json:"author,omitempty"`
	// FrontMatter is optional Markdown rendered before the contents page,
	// typically a copyright notice.
	FrontMatter string `json:"front_matter,omitempty"`
}

// Key is a JSON value that may be written as a string or a number
// ("chapter_id": 3 and "chapter_id": "3" are equivalent).
type Key string

// UnmarshalJSON accepts strings, numbers and null.
func (k *Key) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*k = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = Key(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*k = Key(n.String())
	return nil
}

// Float parses the key as a number.
func (k Key) Float() (float64, bool) {
	if k == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(string(k), 64)
	return f, err == nil
}

// Section is one flat record of the sections JSON format, also produced by
// the extractor and the LLM writer.
type Section struct {
	ChapterID     Key    `json:"chapter_id"`
	ChapterName   string `json:"chapter_name"`
	SectionNumber Key    `json:"section_number"`
	SectionName   string `json:"section_name"`
	Text          string `json:"text"`
}
