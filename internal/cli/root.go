// Package cli implements the seopipe command-line interface.
//
// Every command is built by a newXCommand(app) constructor sharing a single
// [App], which carries the configuration, the work item store, the step
// executor, the cost aggregator and the output printer. Commands never call
// os.Exit: failures are returned as [ExitError] values and mapped to a
// process exit code by [RunWithConfig].
//
// Exit codes:
//   - 0: success
//   - 1: infrastructure or usage error
//   - 2: a step failed (or a batch had failed blocks)
//   - 3: the operation is not allowed from the current status
//   - 4: the work item or block was not found
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/completion"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/config"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/ledger"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/lifecycle"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/logging"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/manifest"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/output"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/publishing"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/seo"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/store"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

// ItemStore creates and lists work items.
type ItemStore interface {
	Create(ctx context.Context, item *workitem.WorkItem) (*workitem.WorkItem, error)
	Get(ctx context.Context, id string) (*workitem.WorkItem, error)
	List(ctx context.Context) ([]*workitem.WorkItem, error)
}

// App holds the dependencies shared by all commands.
type App struct {
	Config   *config.Config
	Items    ItemStore
	Executor *lifecycle.Executor
	Costs    *ledger.Aggregator
	Printer  *output.Printer
	Logger   *logging.Logger

	closers []func() error
}

// NewApp wires the production dependencies described by cfg.
//
// It opens the bbolt store, validates the SEO rules, builds the step router
// (from the pipeline manifest when one is configured) and the completion
// and publishing services.
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	app := &App{Config: cfg, Printer: output.NewPrinter(), Logger: logger}
	app.closers = append(app.closers, logger.Close)

	if err := seo.Validate(cfg.SEO.Rules); err != nil {
		_ = app.Close()
		return nil, err
	}

	rt, err := buildRouter(cfg.Pipeline)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	ai, err := completion.NewService(cfg.AI)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	repo, err := store.Open(cfg.Store.Path)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.closers = append(app.closers, repo.Close)

	exec := lifecycle.NewExecutor(repo, ai, publishing.NewHTTPService(cfg.Publishing.Timeout), cfg)
	exec.SetRouter(rt)
	exec.SetLogger(logger.Logger)

	app.Items = repo
	app.Executor = exec
	app.Costs = ledger.NewAggregator(repo)
	return app, nil
}

// Close releases the store and the log file, in reverse order of opening.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func buildRouter(cfg config.PipelineConfig) (*router.Router, error) {
	opt := router.WithRefreshTarget(status.Status(cfg.RefreshTarget))
	if cfg.ManifestPath == "" {
		return router.NewRouter(opt)
	}
	m, err := manifest.ReadFromFile(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	return router.NewRouterFromManifest(m, opt)
}

// NewRootCommand creates the root seopipe command with every subcommand
// registered.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "seopipe",
		Short: "SEO content pipeline",
		Long: `seopipe drives SEO articles through a fixed pipeline:
  draft → analyzing → planning → writing → media → seo_check → reviewing → published

Each step calls a language model (or the publishing target), records its
cost in the run ledger and advances the article's status.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newCreateCommand(app),
		newListCommand(app),
		newShowCommand(app),
		newStepCommand(app),
		newWriteAllCommand(app),
		newRunCommand(app),
		newQueueCommand(app),
		newRollbackCommand(app),
		newHistoryCommand(app),
		newStaleCommand(app),
		newApproveCommand(app),
		newAssetCommand(app),
		newCostsCommand(app),
	)
	return rootCmd
}

// ExecuteResult is the outcome of [RunWithConfig].
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// RunWithConfig builds the application from cfg and runs the command line
// in os.Args. It never exits the process.
func RunWithConfig(cfg *config.Config) ExecuteResult {
	app, err := NewApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExecuteResult{ExitCode: ExitFailure, Err: err}
	}
	defer func() { _ = app.Close() }()

	return run(NewRootCommand(app))
}

func run(rootCmd *cobra.Command) ExecuteResult {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return ExecuteResult{ExitCode: ExitFailure, Err: err}
	}
	return ExecuteResult{ExitCode: ExitOK}
}

// Execute loads the configuration, runs the command line and exits the
// process with the resulting code.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(ExitFailure)
	}
	os.Exit(RunWithConfig(cfg).ExitCode)
}

// fail prints err and converts it into an [ExitError] carrying its exit code.
func fail(app *App, err error) error {
	app.Printer.Failure("%v", err)
	return NewExitError(exitCode(err))
}
