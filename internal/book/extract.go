package book

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"bookpress/internal/types"
)

type exportFile struct {
	Chapters []exportChapter `json:"chapters"`
}

type exportChapter struct {
	ChapterID   Key             `json:"chapter_id"`
	ChapterName string          `json:"chapter_name"`
	Sections    []exportSection `json:"sections"`
}

type exportSection struct {
	SectionID   Key    `json:"section_id"`
	SectionName string `json:"section_name"`
	Text        string `json:"extracted-text"`
}

// Extract flattens a nested chapter export into sections. The export is
// either {"chapters": [...]} or one or more named wrappers around it, e.g.
// {"New item": {"chapters": [...]}}; wrappers are read in key order.
// Sections without text are dropped and section_number becomes
// "<chapter_id>.<section_id>".
func Extract(r io.Reader) ([]Section, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "failed to read export", err)
	}
	return ExtractBytes(data)
}

// ExtractBytes is Extract over an in-memory document.
func ExtractBytes(data []byte) ([]Section, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "invalid export JSON", err)
	}

	var exports []exportFile
	if raw, ok := top["chapters"]; ok {
		var ef exportFile
		if err := json.Unmarshal(raw, &ef.Chapters); err != nil {
			return nil, types.NewAppError(types.ErrInvalidInput, "invalid chapters list", err)
		}
		exports = append(exports, ef)
	} else {
		keys := make([]string, 0, len(top))
		for k := range top {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			var ef exportFile
			if err := json.Unmarshal(top[k], &ef); err != nil || ef.Chapters == nil {
				continue
			}
			exports = append(exports, ef)
		}
	}
	if len(exports) == 0 {
		return nil, types.NewAppError(types.ErrInvalidInput, "could not find chapters in export", nil)
	}

	var out []Section
	for _, ef := range exports {
		for _, ch := range ef.Chapters {
			name := strings.TrimSpace(ch.ChapterName)
			if name == "" {
				name = "Unnamed Chapter"
			}
			for _, s := range ch.Sections {
				text := strings.TrimSpace(s.Text)
				if text == "" {
					continue
				}
				out = append(out, Section{
					ChapterID:     ch.ChapterID,
					ChapterName:   name,
					SectionNumber: Key(string(ch.ChapterID) + "." + string(s.SectionID)),
					SectionName:   strings.TrimSpace(s.SectionName),
					Text:          text,
				})
			}
		}
	}
	return out, nil
}
