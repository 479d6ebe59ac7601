// Package planner decides how a book is laid out before anything is
// rendered: it adapts a style to each output format, estimates chapter page
// counts and groups chapters into page-bounded parts.
package planner

import (
	"math"

	"github.com/patrickmn/go-cache"

	"bookpress/internal/book"
	"bookpress/internal/logger"
	"bookpress/internal/style"
	"bookpress/internal/types"
)

const (
	// AvgCharWidth is the average glyph width as a fraction of font size.
	AvgCharWidth = 0.5
	// ImagePageWeight is the page fraction charged for every image.
	ImagePageWeight = 0.5
	// DefaultBodySize is the paragraph size assumed when the style sets none.
	DefaultBodySize = 11.0
)

// PageCounter estimates how many pages a chapter occupies.
type PageCounter interface {
	EstimatePages(ch book.Chapter) int
}

// Estimator predicts chapter page counts for one style instance. The
// estimate is a heuristic: it is monotonic in text length, not exact.
// Estimates are memoized; an Estimator is safe for concurrent use.
type Estimator struct {
	charsPerPage int
	extraPages   int
	memo         *cache.Cache
}

// NewEstimator derives the page capacity from cfg's geometry and body text.
func NewEstimator(cfg *style.Config) (*Estimator, error) {
	dims, err := cfg.PageDimensions()
	if err != nil {
		return nil, types.NewAppError(types.ErrConfigParse, "cannot resolve page size", err)
	}

	m := cfg.Page.Margins
	usableW := math.Max(dims.Width-m.Left-m.Right, 1)
	usableH := math.Max(dims.Height-m.Top-m.Bottom, 1)

	size := cfg.Paragraph.SizeOr(DefaultBodySize)
	leading := cfg.Paragraph.LeadingOr(DefaultBodySize)

	charsPerLine := max(int(math.Floor(usableW/(size*AvgCharWidth))), 1)
	linesPerPage := max(int(math.Floor(usableH/leading)), 1)

	e := &Estimator{
		charsPerPage: max(charsPerLine*linesPerPage, 1),
		memo:         cache.New(cache.NoExpiration, 0),
	}
	if cfg.ChapterHeading.PageBreak.Before || cfg.ChapterHeading.PageBreak.After {
		e.extraPages = 1
	}

	logger.Debug("page estimator ready",
		logger.String("style", cfg.Name),
		logger.Int("charsPerLine", charsPerLine),
		logger.Int("linesPerPage", linesPerPage),
		logger.Int("charsPerPage", e.charsPerPage))
	return e, nil
}

// CharsPerPage is the estimated text capacity of one page.
func (e *Estimator) CharsPerPage() int {
	return e.charsPerPage
}

// EstimatePages returns the predicted page count of ch, at least 1.
func (e *Estimator) EstimatePages(ch book.Chapter) int {
	key := ch.ID + ":" + ch.Fingerprint()
	if v, ok := e.memo.Get(key); ok {
		return v.(int)
	}

	chars := ch.CharCount()
	images := ch.ImageCount()

	pages := int(math.Ceil(float64(chars) / float64(e.charsPerPage)))
	pages += int(math.Ceil(float64(images) * ImagePageWeight))
	pages += e.extraPages
	pages = max(pages, 1)

	e.memo.Set(key, pages, cache.DefaultExpiration)
	logger.Debug("estimated chapter pages",
		logger.String("chapter", ch.ID),
		logger.Int("chars", chars),
		logger.Int("images", images),
		logger.Int("pages", pages))
	return pages
}
