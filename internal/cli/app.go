// Package cli provides the bookpress command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bookpress/internal/config"
	"bookpress/internal/logger"
)

// Version information set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logFile    string
	verbose    bool
}

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	opts globalOptions
	cfg  *config.ConfigManager
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "bookpress",
		Short: "Style-adaptive multi-format book generator",
		Long: `bookpress turns chapters into print-ready PDFs.

One style template is adapted to every requested page format, chapters are
split into parts that fit a page budget, and one PDF is written per format
and part. A failed document never stops the others.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.setup,
	}

	flags := app.root.PersistentFlags()
	flags.StringVar(&app.opts.configPath, "config", "", "Path to configuration file (default ~/.config/bookpress/"+config.DefaultConfigFileName+")")
	flags.StringVar(&app.opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&app.opts.logFile, "log-file", "", "Write JSON log lines to this file")
	flags.BoolVarP(&app.opts.verbose, "verbose", "v", false, "Log to stderr")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newBuildCmd(),
		app.newPlanCmd(),
		app.newStylesCmd(),
		app.newExtractCmd(),
		app.newWriteCmd(),
		app.newFrontMatterCmd(),
		app.newMergeCmd(),
		app.newInspectCmd(),
		app.newRunsCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer logger.Close()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// setup loads the configuration and starts the logger before any command.
func (a *App) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewConfigManager(a.opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Load(); err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.GetConfig().LogLevel
	if a.opts.logLevel != "" {
		level = a.opts.logLevel
	}
	if err := logger.Init(&logger.Config{
		LogFilePath:   a.opts.logFile,
		MaxFileSize:   10 * 1024 * 1024,
		MaxBackups:    5,
		Level:         logger.ParseLevel(level),
		EnableConsole: a.opts.verbose,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Debug("configuration ready", logger.String("path", cfg.GetConfigPath()))
	return nil
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "bookpress version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}
