package book

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"bookpress/internal/logger"
	"bookpress/internal/types"
)

// InputKind identifies how a content source is loaded.
type InputKind string

const (
	InputSections    InputKind = "sections"
	InputMarkdownDir InputKind = "markdown_dir"
	InputMarkdown    InputKind = "markdown"
	InputHTML        InputKind = "html"
)

// DetectInput inspects path and determines its kind.
//
// Rules:
//   - a directory is a folder of Markdown chapters
//   - .json is a sections file (flat array, writer output or nested export)
//   - .md / .markdown is a single Markdown chapter
//   - .html / .htm is an HTML document split at level-1 headings
func DetectInput(path string) (InputKind, error) {
	logger.Debug("detecting input", logger.String("path", path))

	path = strings.TrimSpace(path)
	if path == "" {
		return "", types.NewAppError(types.ErrInvalidInput, "input path is empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrFileNotFound, "input not found", path, err)
	}
	if info.IsDir() {
		return InputMarkdownDir, nil
	}

	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".json":
		return InputSections, nil
	case IsMarkdown(path):
		return InputMarkdown, nil
	case ext == ".html" || ext == ".htm":
		return InputHTML, nil
	}

	logger.Warn("unsupported input format", logger.String("path", path))
	return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "unsupported input format", path, nil)
}

// Load detects the input kind and loads chapters. The returned Meta carries
// whatever the source itself declares; callers overlay user-provided values.
func Load(path string) (Meta, []Chapter, error) {
	kind, err := DetectInput(path)
	if err != nil {
		return Meta{}, nil, err
	}
	logger.Info("loading input", logger.String("path", path), logger.String("kind", string(kind)))

	meta := Meta{Title: titleFromFileName(path)}
	var chapters []Chapter
	switch kind {
	case InputMarkdownDir:
		chapters, err = LoadMarkdownDir(path)
	case InputMarkdown:
		var ch Chapter
		ch, err = LoadMarkdownFile(path, "1")
		chapters = []Chapter{ch}
		if err == nil {
			meta.Title = ch.Title
		}
	case InputSections:
		chapters, err = LoadSections(path)
	case InputHTML:
		meta, chapters, err = LoadHTML(path)
	}
	if err != nil {
		return Meta{}, nil, err
	}
	return meta, chapters, nil
}

// LoadHTML splits an HTML document into chapters at every level-1 heading.
// Content before the first heading forms a chapter titled after the
// document's <title>, or the file name.
func LoadHTML(path string) (Meta, []Chapter, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to open HTML file", path, err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return Meta{}, nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "failed to parse HTML", path, err)
	}

	meta := Meta{Title: documentTitle(doc)}
	if meta.Title == "" {
		meta.Title = titleFromFileName(path)
	}

	var blocks []Block
	collectBlocks(doc, &blocks)
	blocks = resolveImages(blocks, filepath.Dir(path))

	var chapters []Chapter
	for _, b := range blocks {
		if b.Type == BlockHeading && b.Level == 1 {
			chapters = append(chapters, Chapter{
				ID:     strconv.Itoa(len(chapters) + 1),
				Title:  b.Text,
				Source: path,
			})
			continue
		}
		if len(chapters) == 0 {
			chapters = append(chapters, Chapter{ID: "1", Title: meta.Title, Source: path})
		}
		ch := &chapters[len(chapters)-1]
		ch.Blocks = append(ch.Blocks, b)
	}
	return meta, chapters, nil
}

// LoadMeta reads book metadata from a JSON file.
func LoadMeta(path string) (Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to read metadata file", path, err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid metadata JSON", path, err)
	}
	return m, nil
}
