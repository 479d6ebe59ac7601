package book

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/russross/blackfriday/v2"

	"bookpress/internal/logger"
	"bookpress/internal/types"
)

// ParseMarkdown renders Markdown to HTML and parses the result into blocks.
func ParseMarkdown(src []byte) ([]Block, error) {
	return ParseHTML(bytes.NewReader(blackfriday.Run(src)))
}

// IsMarkdown reports whether path has a Markdown extension.
func IsMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// LoadMarkdownFile reads one Markdown file as a chapter. The first level-1
// heading becomes the title; otherwise the file name does. Relative image
// paths are resolved against the file's directory.
func LoadMarkdownFile(path, id string) (Chapter, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Chapter{}, types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to read markdown file", path, err)
	}
	blocks, err := ParseMarkdown(src)
	if err != nil {
		return Chapter{}, types.NewAppErrorWithDetails(types.ErrInvalidInput, "failed to parse markdown", path, err)
	}

	ch := Chapter{ID: id, Source: path}
	for i, b := range blocks {
		if b.Type == BlockHeading && b.Level == 1 {
			ch.Title = b.Text
			blocks = append(blocks[:i:i], blocks[i+1:]...)
			break
		}
	}
	if ch.Title == "" {
		ch.Title = titleFromFileName(path)
	}
	ch.Blocks = resolveImages(blocks, filepath.Dir(path))
	return ch, nil
}

// LoadMarkdownDir loads every Markdown file in dir (not recursive), sorted
// by file name, one chapter per file. Other files are skipped.
func LoadMarkdownDir(dir string) ([]Chapter, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to read markdown directory", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !IsMarkdown(e.Name()) {
			logger.Debug("skipping non-markdown file", logger.String("file", e.Name()))
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	chapters := make([]Chapter, 0, len(files))
	for i, name := range files {
		ch, err := LoadMarkdownFile(filepath.Join(dir, name), strconv.Itoa(i+1))
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}

	logger.Info("markdown chapters loaded", logger.String("dir", dir), logger.Int("chapters", len(chapters)))
	return chapters, nil
}

func titleFromFileName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return collapse(name)
}

func resolveImages(blocks []Block, baseDir string) []Block {
	for i, b := range blocks {
		if b.Type != BlockImage || b.Path == "" || filepath.IsAbs(b.Path) || strings.Contains(b.Path, "://") {
			continue
		}
		blocks[i].Path = filepath.Join(baseDir, filepath.FromSlash(b.Path))
	}
	return blocks
}
