package planner

import (
	"math"
	"strconv"

	"bookpress/internal/book"
	"bookpress/internal/logger"
	"bookpress/internal/types"
)

// Unbounded is the page budget used when splitting is off.
const Unbounded = math.MaxInt

// Part is a contiguous run of whole chapters rendered as one document.
type Part struct {
	Number   int            `json:"part_number"` // 1-based
	Chapters []book.Chapter `json:"-"`
	Pages    int            `json:"estimated_pages"`
}

// ChapterIDs lists the IDs of the part's chapters in order.
func (p Part) ChapterIDs() []string {
	ids := make([]string, len(p.Chapters))
	for i, ch := range p.Chapters {
		ids[i] = ch.ID
	}
	return ids
}

// OversizedChapter records a chapter whose estimate alone exceeds the budget.
// It is placed whole in a part of its own.
type OversizedChapter struct {
	ChapterID string `json:"chapter_id"`
	Title     string `json:"title"`
	Pages     int    `json:"pages"`
	Budget    int    `json:"budget"`
}

func (o OversizedChapter) String() string {
	return "chapter " + o.ChapterID + " (" + o.Title + ") needs " + strconv.Itoa(o.Pages) +
		" pages, over the budget of " + strconv.Itoa(o.Budget)
}

// Partitioning is the result of Partition.
type Partitioning struct {
	Parts    []Part
	Warnings []OversizedChapter
}

// Partition groups chapters, in order, into parts of at most maxPages
// estimated pages using a greedy single pass. A chapter is never split or
// reordered; one that exceeds the budget on its own becomes a singleton part
// and is reported in Warnings. No chapters yields no parts.
func Partition(chapters []book.Chapter, est PageCounter, maxPages int) (*Partitioning, error) {
	if maxPages <= 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidBudget,
			"max pages per part must be positive", strconv.Itoa(maxPages), nil)
	}

	result := &Partitioning{}
	var current Part
	closePart := func() {
		current.Number = len(result.Parts) + 1
		result.Parts = append(result.Parts, current)
		current = Part{}
	}

	for _, ch := range chapters {
		pages := est.EstimatePages(ch)

		if len(current.Chapters) > 0 && current.Pages > maxPages-pages {
			closePart()
		}
		current.Chapters = append(current.Chapters, ch)
		current.Pages += pages

		if pages > maxPages && len(current.Chapters) == 1 {
			w := OversizedChapter{ChapterID: ch.ID, Title: ch.Title, Pages: pages, Budget: maxPages}
			result.Warnings = append(result.Warnings, w)
			logger.Warn("oversized chapter placed in its own part",
				logger.String("chapter", ch.ID),
				logger.String("title", ch.Title),
				logger.Int("pages", pages),
				logger.Int("budget", maxPages))
		}
	}
	if len(current.Chapters) > 0 {
		closePart()
	}

	logger.Debug("chapters partitioned",
		logger.Int("chapters", len(chapters)),
		logger.Int("parts", len(result.Parts)),
		logger.Int("oversized", len(result.Warnings)))
	return result, nil
}
