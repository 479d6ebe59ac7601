package render

import (
	"os"
	"path/filepath"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"bookpress/internal/logger"
	"bookpress/internal/types"
)

// textSamplePages is how many leading pages Inspect reads to decide HasText.
const textSamplePages = 3

// Report describes a finished PDF.
type Report struct {
	Path    string `json:"path"`
	Pages   int    `json:"pages"`
	Size    int64  `json:"size"`
	HasText bool   `json:"has_text"`
}

// Inspect validates a PDF's structure with pdfcpu and reads its page count
// and text presence with ledongthuc/pdf.
func Inspect(path string) (*Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "PDF not found", path, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrRenderJob, "PDF is empty", path, nil)
	}

	if err := api.ValidateFile(path, model.NewDefaultConfiguration()); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrRenderJob, "PDF failed validation", path, err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrRenderJob, "cannot open PDF", path, err)
	}
	defer f.Close()

	report := &Report{
		Path:  path,
		Pages: r.NumPage(),
		Size:  info.Size(),
	}
	report.HasText = hasText(r)

	logger.Debug("PDF inspected",
		logger.String("path", filepath.Base(path)),
		logger.Int("pages", report.Pages),
		logger.Bool("hasText", report.HasText))
	return report, nil
}

func hasText(r *pdf.Reader) bool {
	for n := 1; n <= min(r.NumPage(), textSamplePages); n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, c := range content {
			if !unicode.IsSpace(c) {
				return true
			}
		}
	}
	return false
}

// Merge concatenates inputs, in order, into out.
func Merge(inputs []string, out string) error {
	if len(inputs) == 0 {
		return types.NewAppError(types.ErrInvalidInput, "nothing to merge", nil)
	}
	for _, in := range inputs {
		if _, err := os.Stat(in); err != nil {
			return types.NewAppErrorWithDetails(types.ErrFileNotFound, "merge input not found", in, err)
		}
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewAppError(types.ErrFileNotFound, "failed to create output directory", err)
		}
	}

	logger.Info("merging PDFs",
		logger.Int("count", len(inputs)),
		logger.String("output", filepath.Base(out)))
	if err := api.MergeCreateFile(inputs, out, false, nil); err != nil {
		return types.NewAppError(types.ErrRenderJob, "failed to merge PDFs", err)
	}
	return nil
}
