package writer

import (
	"context"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"golang.org/x/time/rate"

	"bookpress/internal/book"
	"bookpress/internal/logger"
	"bookpress/internal/types"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 2 * time.Second
)

const systemPrompt = "You are an experienced book author. You turn rough notes into clear, " +
	"well-structured prose. Reply with the finished passage only."

// Options tune a Writer.
type Options struct {
	// RequestsPerMinute paces provider calls; 0 means unlimited.
	RequestsPerMinute int
	MaxAttempts       int
	InitialDelay      time.Duration
	// CheckpointPath is rewritten after every finished article. Sections
	// already present in it are not sent again.
	CheckpointPath string
}

// Stats counts what a Rewrite did.
type Stats struct {
	Written int
	Resumed int
	Skipped int // empty input text
	Failed  int
}

// Writer rewrites sections one at a time.
type Writer struct {
	provider   Provider
	limiter    *rate.Limiter
	retrier    retry.Retry[string]
	checkpoint *Checkpoint
}

// New creates a writer around provider.
func New(provider Provider, opts Options) *Writer {
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = defaultInitialDelay
	}

	return &Writer{
		provider: provider,
		limiter:  rate.NewLimiter(limit, 1),
		retrier: retry.New[string](retry.Config{
			MaxAttempts:   opts.MaxAttempts,
			InitialDelay:  opts.InitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2,
		}),
		checkpoint: NewCheckpoint(opts.CheckpointPath),
	}
}

// Rewrite sends every section with text to the provider and returns the
// rewritten articles in input order. Sections with empty text are skipped,
// sections that keep failing are logged and skipped. Only checkpoint I/O
// and cancellation abort the run.
func (w *Writer) Rewrite(ctx context.Context, sections []book.Section) ([]Article, Stats, error) {
	var stats Stats
	if err := w.checkpoint.Load(); err != nil {
		return nil, stats, err
	}
	w.checkpoint.SetMetadata(w.provider.Name(), w.provider.Model())

	total := len(sections)
	logger.Info("rewriting sections",
		logger.Int("sections", total),
		logger.String("provider", w.provider.Name()),
		logger.Int("checkpointed", w.checkpoint.Size()))

	articles := make([]Article, 0, total)
	for i, s := range sections {
		if strings.TrimSpace(s.Text) == "" {
			logger.Debug("skipping section without text", logger.String("section", string(s.SectionNumber)))
			stats.Skipped++
			continue
		}

		hash := SourceHash(s)
		if a, ok := w.checkpoint.Get(hash); ok {
			articles = append(articles, a)
			stats.Resumed++
			continue
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return articles, stats, err
		}
		prompt := BuildPrompt(s.ChapterName, s.SectionName, s.Text)
		text, err := w.retrier.Do(ctx, func(ctx context.Context) (string, error) {
			return w.provider.Complete(ctx, systemPrompt, prompt)
		})
		if err != nil {
			if ctx.Err() != nil {
				return articles, stats, ctx.Err()
			}
			logger.Error("section rewrite failed", err,
				logger.Int("index", i+1),
				logger.String("chapter", string(s.ChapterID)),
				logger.String("section", string(s.SectionNumber)))
			stats.Failed++
			continue
		}

		a := Article{
			Section: book.Section{
				ChapterID:     s.ChapterID,
				ChapterName:   CleanName(s.ChapterName),
				SectionNumber: s.SectionNumber,
				SectionName:   CleanName(s.SectionName),
				Text:          strings.TrimSpace(text),
			},
			SourceHash: hash,
		}
		w.checkpoint.Add(a)
		if err := w.checkpoint.Save(); err != nil {
			return articles, stats, err
		}
		articles = append(articles, a)
		stats.Written++

		logger.Debug("section rewritten",
			logger.Int("index", i+1),
			logger.Int("total", total),
			logger.Int("chars", len(a.Text)))
	}

	logger.Info("rewrite finished",
		logger.Int("written", stats.Written),
		logger.Int("resumed", stats.Resumed),
		logger.Int("skipped", stats.Skipped),
		logger.Int("failed", stats.Failed))
	if stats.Written == 0 && stats.Resumed == 0 && stats.Failed > 0 {
		return articles, stats, types.NewAppError(types.ErrAPICall, "every section failed", nil)
	}
	return articles, stats, nil
}

// namePrefixes are stripped from chapter and section names.
var namePrefixes = []string{"chapter:", "section:", "chapter", "section"}

// CleanName removes a leading "Chapter:"/"Section:" label and collapses
// whitespace.
func CleanName(name string) string {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)
	for _, p := range namePrefixes {
		if strings.HasPrefix(lower, p) {
			name = strings.TrimSpace(name[len(p):])
			break
		}
	}
	return collapseSpace(name)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// BuildPrompt asks for one flowing passage from a section's notes.
func BuildPrompt(chapter, section, text string) string {
	var b strings.Builder
	b.WriteString("<instruction>\nTransform this text into a well-written article passage.\n\n<context>\n")
	b.WriteString("Chapter: " + CleanName(chapter) + "\n")
	b.WriteString("Section: " + CleanName(section) + "\n\n")
	b.WriteString("Input Text:\n" + collapseSpace(text) + "\n</context>\n\n")
	b.WriteString(`<scratchpad>
First list the key concepts, relationships and components the text discusses as short bullet points.
</scratchpad>

<writing_guidelines>
1. Write directly and clearly
2. Connect the points naturally and in a logical order
3. Maintain an academic tone
4. Avoid meta-references such as "in this context"
</writing_guidelines>

<output_format>
Write the passage in Markdown, without the scratchpad and without a heading.
</output_format>
</instruction>`)
	return b.String()
}
