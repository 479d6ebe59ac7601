package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bookpress/internal/book"
	"bookpress/internal/writer"
)

// newExtractCmd creates the extract command.
func (a *App) newExtractCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "extract <export.json>",
		Short: "Flatten a nested chapter export into a sections file",
		Long: `Flatten a nested chapter export ({"chapters": [...]}, possibly inside
named wrappers) into the flat sections format read by build and write.

Examples:
  bookpress extract export.json -o sections.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open export: %w", err)
			}
			defer f.Close()

			sections, err := book.Extract(f)
			if err != nil {
				return err
			}
			if err := book.SaveSections(output, sections); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Extracted %d sections to %s\n", len(sections), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "sections.json", "Sections file to write")

	return cmd
}

type writeOptions struct {
	output   string
	provider string
	model    string
}

// newWriteCmd creates the write command.
func (a *App) newWriteCmd() *cobra.Command {
	opts := &writeOptions{}

	cmd := &cobra.Command{
		Use:   "write <sections.json>",
		Short: "Rewrite section notes into prose with an LLM",
		Long: `Send every section to an LLM and collect the rewritten passages.

The output file is updated after every section; running the command again
with the same output skips sections that are already written. The output is
itself a valid input for build.

API keys come from the configuration file or OPENAI_API_KEY, GEMINI_API_KEY
and ANTHROPIC_API_KEY.

Examples:
  bookpress write sections.json -o articles.json
  bookpress write sections.json -o articles.json --provider anthropic`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.write(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "articles.json", "Article file to write")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "LLM provider: openai, gemini or anthropic (default from config)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model name (default from config)")

	return cmd
}

func (a *App) newProvider(cmd *cobra.Command, name, model string) (writer.Provider, error) {
	if name == "" {
		name = a.cfg.GetConfig().LLMProvider
	}
	name = strings.ToLower(name)
	if name == "claude" {
		name = "anthropic"
	}
	if model == "" {
		model = a.cfg.GetModel(name)
	}
	pc := writer.ProviderConfig{
		Name:   name,
		APIKey: a.cfg.GetAPIKey(name),
		Model:  model,
	}
	if name == "openai" {
		pc.BaseURL = a.cfg.GetBaseURL()
	}
	return writer.NewProvider(cmd.Context(), pc)
}

func (a *App) write(cmd *cobra.Command, input string, opts *writeOptions) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read sections: %w", err)
	}
	sections, err := book.DecodeSections(data)
	if err != nil {
		return err
	}

	provider, err := a.newProvider(cmd, opts.provider, opts.model)
	if err != nil {
		return err
	}

	w := writer.New(provider, writer.Options{
		RequestsPerMinute: a.cfg.GetConfig().RequestsPerMinute,
		CheckpointPath:    opts.output,
	})
	_, stats, err := w.Rewrite(cmd.Context(), sections)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Wrote %d sections to %s (%d resumed, %d without text, %d failed)\n",
		stats.Written, opts.output, stats.Resumed, stats.Skipped, stats.Failed)
	return nil
}

type frontMatterOptions struct {
	info     writer.CopyrightInfo
	output   string
	useLLM   bool
	provider string
	model    string
}

// newFrontMatterCmd creates the frontmatter command.
func (a *App) newFrontMatterCmd() *cobra.Command {
	opts := &frontMatterOptions{}

	cmd := &cobra.Command{
		Use:   "frontmatter",
		Short: "Write a copyright page",
		Long: `Write a Markdown copyright page for use with build --front-matter.

Without --llm a standard text is produced. With --llm the configured provider
writes the page; if that fails the standard text is used.

Examples:
  bookpress frontmatter --title "Field Notes" --author "R. Vale" -o copyright.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.frontMatter(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.info.Title, "title", "", "Book title")
	f.StringVar(&opts.info.Author, "author", "", "Author")
	f.StringVar(&opts.info.Publisher, "publisher", "", "Publisher")
	f.IntVar(&opts.info.Year, "year", time.Now().Year(), "Copyright year")
	f.StringVar(&opts.info.Edition, "edition", "", "Edition")
	f.StringVar(&opts.info.ISBN, "isbn", "", "ISBN")
	f.StringVar(&opts.info.Holder, "holder", "", "Copyright holder (default: author)")
	f.StringVarP(&opts.output, "output", "o", "", "File to write (default: stdout)")
	f.BoolVar(&opts.useLLM, "llm", false, "Let the LLM provider write the page")
	f.StringVar(&opts.provider, "provider", "", "LLM provider (default from config)")
	f.StringVar(&opts.model, "model", "", "Model name (default from config)")

	return cmd
}

func (a *App) frontMatter(cmd *cobra.Command, opts *frontMatterOptions) error {
	var provider writer.Provider
	if opts.useLLM {
		p, err := a.newProvider(cmd, opts.provider, opts.model)
		if err != nil {
			return err
		}
		provider = p
	}

	text := writer.Copyright(cmd.Context(), provider, opts.info)
	if opts.output == "" {
		fmt.Fprint(a.stdout, text)
		return nil
	}
	if dir := filepath.Dir(opts.output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(opts.output, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write copyright page: %w", err)
	}
	fmt.Fprintf(a.stdout, "Copyright page written to %s\n", opts.output)
	return nil
}
