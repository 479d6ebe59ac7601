package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bookpress/internal/planner"
	"bookpress/internal/style"
)

type stylesOptions struct {
	init   bool
	format string
}

// newStylesCmd creates the styles command.
func (a *App) newStylesCmd() *cobra.Command {
	opts := &stylesOptions{}

	cmd := &cobra.Command{
		Use:   "styles [name]",
		Short: "List style templates or show one",
		Long: `List the style templates in the configured styles directory together
with the built-in ones. With a name, show that template's page geometry,
optionally adapted to a format.

Examples:
  # List templates, writing the built-in ones to an empty styles directory
  bookpress styles --init

  # Show how the classic template is adapted to A5
  bookpress styles classic -f A5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.showStyle(args[0], opts)
			}
			return a.listStyles(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.init, "init", false, "Write the built-in templates when the styles directory has none")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Adapt the shown template to this format")

	return cmd
}

func (a *App) listStyles(opts *stylesOptions) error {
	cfg := a.cfg.GetConfig()
	store := style.NewStore(cfg.StylesDir)

	if opts.init {
		created, err := store.EnsureDefault()
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(a.stdout, "Created built-in templates in %s\n", store.Dir())
		}
	}

	names, err := store.Names()
	if err != nil {
		return err
	}
	for _, n := range names {
		marker := " "
		if n == cfg.DefaultStyle {
			marker = "*"
		}
		fmt.Fprintf(a.stdout, "%s %s\n", marker, n)
	}
	return nil
}

func (a *App) showStyle(name string, opts *stylesOptions) error {
	cfg, err := style.NewStore(a.cfg.GetConfig().StylesDir).Load(name)
	if err != nil {
		return err
	}
	if opts.format != "" {
		spec, err := planner.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		if cfg, err = planner.Adapt(cfg, spec); err != nil {
			return err
		}
	}

	dims, err := cfg.PageDimensions()
	if err != nil {
		return err
	}
	est, err := planner.NewEstimator(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Name: %s\n", cfg.Name)
	fmt.Fprintf(a.stdout, "Page: %s (%.1f x %.1f pt)\n", cfg.Page.Size, dims.Width, dims.Height)
	fmt.Fprintf(a.stdout, "Margins: top %.1f, bottom %.1f, left %.1f, right %.1f\n",
		cfg.Page.Margins.Top, cfg.Page.Margins.Bottom, cfg.Page.Margins.Left, cfg.Page.Margins.Right)
	size := cfg.Paragraph.SizeOr(planner.DefaultBodySize)
	fmt.Fprintf(a.stdout, "Paragraph: %.1f pt, leading %.1f pt\n", size, cfg.Paragraph.LeadingOr(size))
	fmt.Fprintf(a.stdout, "Characters per page: ~%d\n", est.CharsPerPage())
	return nil
}
