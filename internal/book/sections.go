package book

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bookpress/internal/logger"
	"bookpress/internal/types"
)

// articleFile is the LLM writer's output shape.
type articleFile struct {
	Articles []Section `json:"articles"`
}

// DecodeSections reads sections from a JSON array, a writer output
// ({"articles": [...]}) or a nested chapter export (see Extract).
func DecodeSections(data []byte) ([]Section, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var sections []Section
		if err := json.Unmarshal(data, &sections); err != nil {
			return nil, types.NewAppError(types.ErrInvalidInput, "invalid sections JSON", err)
		}
		return sections, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "invalid sections JSON", err)
	}
	if _, ok := probe["articles"]; ok {
		var af articleFile
		if err := json.Unmarshal(data, &af); err != nil {
			return nil, types.NewAppError(types.ErrInvalidInput, "invalid articles JSON", err)
		}
		return af.Articles, nil
	}
	return ExtractBytes(data)
}

// LoadSections reads a sections file and groups it into chapters.
func LoadSections(path string) ([]Chapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to read sections file", path, err)
	}
	sections, err := DecodeSections(data)
	if err != nil {
		return nil, err
	}
	logger.Info("sections loaded", logger.String("path", path), logger.Int("sections", len(sections)))

	SortSections(sections)
	return GroupSections(sections, filepath.Dir(path))
}

// SaveSections writes sections as an indented JSON array.
func SaveSections(path string, sections []Section) error {
	data, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to marshal sections", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewAppError(types.ErrFileNotFound, "failed to create output directory", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to write sections file", path, err)
	}
	return nil
}

// SortSections orders sections by (chapter_id, section_number), numerically
// when every key parses as a number and lexically otherwise. The sort is
// stable so equal keys keep their input order.
func SortSections(sections []Section) {
	numeric := true
	for _, s := range sections {
		_, okC := s.ChapterID.Float()
		_, okS := s.SectionNumber.Float()
		if !okC || !okS {
			numeric = false
			break
		}
	}

	if numeric {
		sort.SliceStable(sections, func(i, j int) bool {
			ci, _ := sections[i].ChapterID.Float()
			cj, _ := sections[j].ChapterID.Float()
			if ci != cj {
				return ci < cj
			}
			si, _ := sections[i].SectionNumber.Float()
			sj, _ := sections[j].SectionNumber.Float()
			return si < sj
		})
		return
	}

	logger.Debug("numeric section sort not possible, sorting lexically")
	sort.SliceStable(sections, func(i, j int) bool {
		if sections[i].ChapterID != sections[j].ChapterID {
			return sections[i].ChapterID < sections[j].ChapterID
		}
		return sections[i].SectionNumber < sections[j].SectionNumber
	})
}

// GroupSections turns consecutive sections sharing a chapter_id into one
// chapter. Each named section opens with a level-2 heading followed by its
// text parsed as Markdown.
func GroupSections(sections []Section, baseDir string) ([]Chapter, error) {
	var chapters []Chapter
	for _, s := range sections {
		if len(chapters) == 0 || chapters[len(chapters)-1].ID != string(s.ChapterID) {
			title := strings.TrimSpace(s.ChapterName)
			if title == "" {
				title = "Chapter " + string(s.ChapterID)
			}
			chapters = append(chapters, Chapter{ID: string(s.ChapterID), Title: title})
		}
		ch := &chapters[len(chapters)-1]

		if name := strings.TrimSpace(s.SectionName); name != "" {
			ch.Blocks = append(ch.Blocks, Block{Type: BlockHeading, Level: 2, Text: name})
		}
		blocks, err := ParseMarkdown([]byte(strings.TrimSpace(s.Text)))
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "failed to parse section text", s.SectionName, err)
		}
		ch.Blocks = append(ch.Blocks, resolveImages(blocks, baseDir)...)
	}
	return chapters, nil
}
