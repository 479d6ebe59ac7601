package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bookpress/internal/render"
	"bookpress/internal/results"
)

// newMergeCmd creates the merge command.
func (a *App) newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <output.pdf> <input.pdf>...",
		Short: "Concatenate PDFs",
		Long: `Concatenate PDFs, for example the parts of one format, into a single file.

Examples:
  bookpress merge book.pdf book_Part1.pdf book_Part2.pdf`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, inputs := args[0], args[1:]
			if err := render.Merge(inputs, out); err != nil {
				return err
			}
			report, err := render.Inspect(out)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Merged %d files into %s (%d pages)\n", len(inputs), out, report.Pages)
			return nil
		},
	}
}

// newInspectCmd creates the inspect command.
func (a *App) newInspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <file.pdf>...",
		Short: "Validate PDFs and report their page counts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reports []*render.Report
			for _, path := range args {
				report, err := render.Inspect(path)
				if err != nil {
					return err
				}
				reports = append(reports, report)
			}

			if asJSON {
				data, err := json.MarshalIndent(reports, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode reports: %w", err)
				}
				fmt.Fprintln(a.stdout, string(data))
				return nil
			}
			for _, r := range reports {
				fmt.Fprintf(a.stdout, "%s: %d pages, %d bytes, text %t\n", r.Path, r.Pages, r.Size, r.HasText)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")

	return cmd
}

// newRunsCmd creates the runs command and its subcommands.
func (a *App) newRunsCmd() *cobra.Command {
	var outputDir string

	manager := func() (*results.ResultManager, error) {
		dir := outputDir
		if dir == "" {
			dir = a.cfg.GetConfig().OutputDir
		}
		return results.NewResultManager(dir)
	}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored build manifests",
		Long: `List the manifests build stores in <output-dir>/.runs, newest first.

Examples:
  bookpress runs
  bookpress runs show <id>
  bookpress runs delete <id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manager()
			if err != nil {
				return err
			}
			runs, err := m.ListRuns()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(a.stdout, "%s  %s  %-8s %d jobs, %d failed  %s\n",
					r.ID, r.CreatedAt.Format(time.DateTime), r.Status, len(r.Jobs), r.Failed(), r.Input)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "", "Output directory holding the manifests (default from config)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print one manifest as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := manager()
				if err != nil {
					return err
				}
				info, err := m.LoadRun(args[0])
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode run: %w", err)
				}
				fmt.Fprintln(a.stdout, string(data))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete one manifest",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := manager()
				if err != nil {
					return err
				}
				if err := m.DeleteRun(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Deleted run %s\n", args[0])
				return nil
			},
		},
	)

	return cmd
}
