// Package cli provides the operator command line for the approval workflow.
// Every state change goes through the engine and leaves an audit entry.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/garyjia/approval-workflow/internal/config"
	"github.com/garyjia/approval-workflow/internal/container"
	"github.com/garyjia/approval-workflow/pkg/utils"
)

// Version information set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// App represents the CLI application.
type App struct {
	root       *cobra.Command
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	verbose    bool
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "workflowctl",
		Short: "Operate the document approval workflow",
		Long: `workflowctl inspects transition tables and documents, applies transitions
and exports audit trails. Repairs are ordinary transitions: they are validated
against the tables and recorded in the audit log like any other request.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	app.root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "configs/config.yaml", "Path to configuration file")
	app.root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Enable debug logging on stderr")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newTablesCmd(),
		app.newCreateCmd(),
		app.newShowCmd(),
		app.newApplyCmd(),
		app.newHistoryCmd(),
		app.newExportCmd(),
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

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "workflowctl version %s (%s)\n", Version, GitCommit)
		},
	}
}

// withContainer starts the application container, runs fn and closes it again.
func (a *App) withContainer(ctx context.Context, fn func(c *container.Container) error) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewCLILogger(a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}

	runErr := fn(c)
	if closeErr := c.Close(); closeErr != nil && runErr == nil {
		return closeErr
	}
	return runErr
}
