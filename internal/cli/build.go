package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bookpress/internal/book"
	"bookpress/internal/generator"
	"bookpress/internal/logger"
	"bookpress/internal/planner"
	"bookpress/internal/render"
	"bookpress/internal/results"
	"bookpress/internal/style"
)

// bookOptions holds the flags shared by build and plan.
type bookOptions struct {
	style       string
	formats     []string
	split       bool
	maxPages    int
	title       string
	subtitle    string
	author      string
	metaPath    string
	frontMatter string
	outputDir   string
	name        string
}

func (o *bookOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.style, "style", "s", "", "Style template name (default from config)")
	f.StringArrayVarP(&o.formats, "format", "f", nil, "Output format: A4, A5, LETTER, US_TRADE, CUSTOM:6x9in or Name=CUSTOM:WxH[pt|in|mm]; repeatable or comma-separated")
	f.BoolVar(&o.split, "split", false, "Split into parts using the configured page budget")
	f.IntVar(&o.maxPages, "max-pages", 0, "Maximum estimated pages per part (implies --split)")
	f.StringVar(&o.title, "title", "", "Book title")
	f.StringVar(&o.subtitle, "subtitle", "", "Book subtitle")
	f.StringVar(&o.author, "author", "", "Book author")
	f.StringVar(&o.metaPath, "meta", "", "JSON file with title, subtitle, author and front_matter")
	f.StringVar(&o.frontMatter, "front-matter", "", "Markdown file rendered before the contents page")
	f.StringVarP(&o.outputDir, "output-dir", "o", "", "Output directory (default from config)")
	f.StringVar(&o.name, "name", "", "Base output file name (default: input name)")
}

// request loads the input and turns the flags into a generation request.
func (a *App) request(cmd *cobra.Command, input string, o *bookOptions) (generator.Request, error) {
	cfg := a.cfg.GetConfig()

	meta, chapters, err := book.Load(input)
	if err != nil {
		return generator.Request{}, err
	}
	if o.metaPath != "" {
		m, err := book.LoadMeta(o.metaPath)
		if err != nil {
			return generator.Request{}, err
		}
		meta = overlayMeta(meta, m)
	}
	meta = overlayMeta(meta, book.Meta{Title: o.title, Subtitle: o.subtitle, Author: o.author})
	if o.frontMatter != "" {
		data, err := os.ReadFile(o.frontMatter)
		if err != nil {
			return generator.Request{}, fmt.Errorf("failed to read front matter: %w", err)
		}
		meta.FrontMatter = string(data)
	}

	tokens := o.formats
	if len(tokens) == 0 {
		tokens = cfg.DefaultFormats
	}
	formats, err := planner.ParseFormats(tokens)
	if err != nil {
		return generator.Request{}, err
	}

	req := generator.Request{
		Style:    o.style,
		BaseName: o.name,
		Meta:     meta,
		Chapters: chapters,
		Formats:  formats,
		Split:    o.split,
	}
	if req.Style == "" {
		req.Style = cfg.DefaultStyle
	}
	if req.BaseName == "" {
		req.BaseName = baseName(input)
	}
	if cmd.Flags().Changed("max-pages") {
		req.Split = true
		req.MaxPagesPerPart = o.maxPages
	} else if req.Split {
		req.MaxPagesPerPart = cfg.MaxPagesPerPart
	}
	return req, nil
}

func (a *App) outputDir(o *bookOptions) string {
	if o.outputDir != "" {
		return o.outputDir
	}
	return a.cfg.GetConfig().OutputDir
}

func (a *App) newGenerator(opts generator.Options) *generator.Generator {
	cfg := a.cfg.GetConfig()
	return generator.New(style.NewStore(cfg.StylesDir), render.NewFPDF(cfg.FontsDir), opts)
}

// overlayMeta replaces fields of base with the non-empty fields of top.
func overlayMeta(base, top book.Meta) book.Meta {
	if top.Title != "" {
		base.Title = top.Title
	}
	if top.Subtitle != "" {
		base.Subtitle = top.Subtitle
	}
	if top.Author != "" {
		base.Author = top.Author
	}
	if top.FrontMatter != "" {
		base.FrontMatter = top.FrontMatter
	}
	return base
}

func baseName(input string) string {
	name := filepath.Base(filepath.Clean(input))
	return strings.TrimSuffix(name, filepath.Ext(name))
}

type buildOptions struct {
	bookOptions
	verify      bool
	concurrency int
	noManifest  bool
}

// newBuildCmd creates the build command.
func (a *App) newBuildCmd() *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build <input>",
		Short: "Render a book into one PDF per format and part",
		Long: `Render a book into one PDF per requested format and part.

The input is a sections JSON file, a Markdown file, a directory of Markdown
chapters or an HTML document. Files are named
<name>[_PartN][_FORMAT].pdf: the part suffix appears when a format needs more
than one part, the format suffix when more than one format is requested.

Examples:
  # A4 with the default style
  bookpress build book.json

  # Two formats, parts of at most 300 pages, checked after rendering
  bookpress build chapters/ -f A4 -f A5 --max-pages 300 --verify

  # A custom trim size
  bookpress build book.md -f Trade=CUSTOM:6x9in --style trade`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.build(cmd, args[0], opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "Inspect every written PDF and report its real page count")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", 0, "Documents rendered at once (default from config)")
	cmd.Flags().BoolVar(&opts.noManifest, "no-manifest", false, "Do not store a run manifest")

	return cmd
}

func (a *App) build(cmd *cobra.Command, input string, opts *buildOptions) error {
	req, err := a.request(cmd, input, &opts.bookOptions)
	if err != nil {
		return err
	}

	concurrency := opts.concurrency
	if concurrency <= 0 {
		concurrency = a.cfg.GetConfig().Concurrency
	}
	outDir := a.outputDir(&opts.bookOptions)

	gen := a.newGenerator(generator.Options{
		OutputDir:   outDir,
		Concurrency: concurrency,
		Verify:      opts.verify,
		Progress: func(done, total int, r generator.JobResult) {
			logger.Info("job finished",
				logger.Int("done", done),
				logger.Int("total", total),
				logger.String("job", r.Key.String()),
				logger.Bool("ok", r.OK()))
		},
	})

	summary, err := gen.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	for _, w := range summary.Warnings {
		fmt.Fprintf(a.stderr, "warning: %s\n", w)
	}
	if len(summary.Results) == 0 {
		fmt.Fprintln(a.stdout, "Nothing to render: the book has no chapters.")
	}
	for _, r := range summary.Results {
		if !r.OK() {
			fmt.Fprintf(a.stdout, "✗ %-16s %s\n", r.Key, r.Error)
			continue
		}
		pages := fmt.Sprintf("~%d pages", r.EstimatedPages)
		if r.ActualPages > 0 {
			pages = fmt.Sprintf("%d pages, estimated %d", r.ActualPages, r.EstimatedPages)
		}
		fmt.Fprintf(a.stdout, "✓ %-16s %s (%s)\n", r.Key, r.OutputPath, pages)
	}

	if !opts.noManifest {
		manager, err := results.NewResultManager(outDir)
		if err != nil {
			logger.Warn("run manifest not saved", logger.Err(err))
		} else if err := manager.SaveRun(results.NewRunInfo(summary, input, formatNames(req.Formats))); err != nil {
			logger.Warn("run manifest not saved", logger.Err(err))
		}
	}

	if failed := summary.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(summary.Results))
	}
	return nil
}

func formatNames(formats []planner.FormatSpec) []string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.Name
	}
	return names
}

type planOptions struct {
	bookOptions
	json bool
}

// newPlanCmd creates the plan command.
func (a *App) newPlanCmd() *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan <input>",
		Short: "Show the documents a build would produce",
		Long: `Show the documents a build would produce without rendering anything.

Every format is listed with its parts, the chapters in each part and the
estimated page count. Chapters larger than the page budget are reported.

Examples:
  bookpress plan book.json -f A4,A5 --max-pages 200
  bookpress plan chapters/ --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.plan(cmd, args[0], opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the plan as JSON")

	return cmd
}

func (a *App) plan(cmd *cobra.Command, input string, opts *planOptions) error {
	req, err := a.request(cmd, input, &opts.bookOptions)
	if err != nil {
		return err
	}
	plan, err := a.newGenerator(generator.Options{OutputDir: a.outputDir(&opts.bookOptions)}).Plan(req)
	if err != nil {
		return err
	}

	if opts.json {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		fmt.Fprintln(a.stdout, string(data))
		return nil
	}

	fmt.Fprintf(a.stdout, "Style: %s\n", plan.Style)
	if len(plan.Jobs) == 0 {
		fmt.Fprintln(a.stdout, "Nothing to render: the book has no chapters.")
	}
	for _, job := range plan.Jobs {
		fmt.Fprintf(a.stdout, "%-16s ~%4d pages  chapters %s  -> %s\n",
			job.Key, job.EstimatedPages, strings.Join(job.ChapterIDs, ","), job.OutputPath)
	}
	for _, w := range plan.Warnings {
		fmt.Fprintf(a.stdout, "warning: %s\n", w)
	}
	return nil
}
