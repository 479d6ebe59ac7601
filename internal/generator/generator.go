// Package generator turns a book and a list of requested formats into render
// jobs, one per (format, part), and runs them with per-job failure isolation.
package generator

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"bookpress/internal/book"
	"bookpress/internal/logger"
	"bookpress/internal/planner"
	"bookpress/internal/render"
	"bookpress/internal/style"
	"bookpress/internal/types"
)

// StyleLoader resolves template names. *style.Store implements it.
type StyleLoader interface {
	Load(name string) (*style.Config, error)
}

// Request describes one generation run.
type Request struct {
	Style    string
	BaseName string
	Meta     book.Meta
	Chapters []book.Chapter
	// Formats are processed in order; empty means A4 only.
	Formats []planner.FormatSpec
	// Split enables parts of at most MaxPagesPerPart estimated pages. When
	// false every format yields a single part.
	Split           bool
	MaxPagesPerPart int
}

// JobKey identifies a render job within a run.
type JobKey struct {
	Format string `json:"format"`
	Part   int    `json:"part"`
}

func (k JobKey) String() string {
	return k.Format + "/part" + strconv.Itoa(k.Part)
}

// RenderJob is one document to produce. Jobs are never modified once planned.
type RenderJob struct {
	Key            JobKey             `json:"key"`
	Format         planner.FormatSpec `json:"format"`
	Style          *style.Config      `json:"-"`
	Chapters       []book.Chapter     `json:"-"`
	ChapterIDs     []string           `json:"chapter_ids"`
	Meta           book.Meta          `json:"-"`
	OutputPath     string             `json:"output_path"`
	EstimatedPages int                `json:"estimated_pages"`
	PartCount      int                `json:"part_count"`
}

// Warning is an oversized chapter found while partitioning one format.
type Warning struct {
	Format  string                   `json:"format"`
	Chapter planner.OversizedChapter `json:"chapter"`
}

func (w Warning) String() string {
	return w.Format + ": " + w.Chapter.String()
}

// Plan is the ordered job list of a run.
type Plan struct {
	RunID    string      `json:"run_id"`
	Style    string      `json:"style"`
	Jobs     []RenderJob `json:"jobs"`
	Warnings []Warning   `json:"warnings,omitempty"`
}

// Generator plans and runs book generation.
type Generator struct {
	styles   StyleLoader
	renderer render.Renderer
	opts     Options
}

// New creates a generator. A zero Options renders sequentially into the
// working directory.
func New(styles StyleLoader, renderer render.Renderer, opts Options) *Generator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Generator{styles: styles, renderer: renderer, opts: opts}
}

// Plan loads the style and, for every format in order, adapts it, estimates
// and partitions the chapters, and emits one job per part. Style, budget and
// format errors are returned before any job is produced.
func (g *Generator) Plan(req Request) (*Plan, error) {
	name := strings.TrimSpace(req.Style)
	if name == "" {
		name = style.DefaultName
	}
	base, err := g.styles.Load(name)
	if err != nil {
		return nil, err
	}

	budget := planner.Unbounded
	if req.Split {
		if req.MaxPagesPerPart <= 0 {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidBudget,
				"max pages per part must be positive", strconv.Itoa(req.MaxPagesPerPart), nil)
		}
		budget = req.MaxPagesPerPart
	}

	formats := req.Formats
	if len(formats) == 0 {
		formats = []planner.FormatSpec{planner.DefaultFormat()}
	}
	seen := make(map[string]bool, len(formats))
	for _, f := range formats {
		if seen[f.Name] {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidFormat, "format requested twice", f.Name, nil)
		}
		seen[f.Name] = true
	}

	plan := &Plan{RunID: uuid.New().String(), Style: name}
	multiFormat := len(formats) > 1
	// Keyed case-insensitively; "Pocket" and "POCKET" share a file on some filesystems.
	owners := make(map[string]string)

	for _, f := range formats {
		adapted, err := planner.Adapt(base, f)
		if err != nil {
			return nil, err
		}
		est, err := planner.NewEstimator(adapted)
		if err != nil {
			return nil, err
		}
		parts, err := planner.Partition(req.Chapters, est, budget)
		if err != nil {
			return nil, err
		}
		for _, w := range parts.Warnings {
			plan.Warnings = append(plan.Warnings, Warning{Format: f.Name, Chapter: w})
		}

		multiPart := len(parts.Parts) > 1
		for _, p := range parts.Parts {
			path := filepath.Join(g.opts.OutputDir, OutputName(req.BaseName, p.Number, multiPart, f.Name, multiFormat))
			key := strings.ToLower(path)
			if other, ok := owners[key]; ok && other != f.Name {
				return nil, types.NewAppErrorWithDetails(types.ErrInvalidFormat,
					"formats write the same file", other+" and "+f.Name+": "+path, nil)
			}
			owners[key] = f.Name
			plan.Jobs = append(plan.Jobs, RenderJob{
				Key:            JobKey{Format: f.Name, Part: p.Number},
				Format:         f,
				Style:          adapted,
				Chapters:       p.Chapters,
				ChapterIDs:     p.ChapterIDs(),
				Meta:           req.Meta,
				OutputPath:     path,
				EstimatedPages: p.Pages,
				PartCount:      len(parts.Parts),
			})
		}
		logger.Debug("format planned",
			logger.String("format", f.Name),
			logger.Int("parts", len(parts.Parts)),
			logger.Int("charsPerPage", est.CharsPerPage()))
	}

	if len(plan.Jobs) == 0 {
		logger.Info("nothing to render", logger.String("runId", plan.RunID))
	}
	logger.Info("generation planned",
		logger.String("runId", plan.RunID),
		logger.String("style", name),
		logger.Int("formats", len(formats)),
		logger.Int("jobs", len(plan.Jobs)),
		logger.Int("warnings", len(plan.Warnings)))
	return plan, nil
}
