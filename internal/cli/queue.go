package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/lifecycle"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
)

type queueResult struct {
	itemID   string
	outcome  string
	duration time.Duration
	err      error
}

func newQueueCommand(app *App) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "queue <item-id> [item-id...]",
		Short: "Run the pipeline on multiple work items",
		Long: `Run the pipeline on multiple work items in sequence, each up to its
review gate. Complete items are skipped. The queue stops on the first
failure.

Example:
  seopipe queue 3f2a 9c1b 77de`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := app.Printer
			results := make([]queueResult, 0, len(args))

			for i, itemID := range args {
				p.Header(fmt.Sprintf("[%d/%d] %s", i+1, len(args), itemID))
				start := time.Now()
				err := app.Executor.Run(ctx, itemID, lifecycle.Options{ModelOverride: model})
				r := queueResult{itemID: itemID, outcome: "✓", duration: time.Since(start), err: err}
				switch {
				case errors.Is(err, router.ErrItemComplete):
					r.outcome, r.err = "skipped", nil
				case err != nil:
					r.outcome = "✗"
				}
				results = append(results, r)
				if r.err != nil {
					printQueueSummary(app, results, args)
					return fail(app, r.err)
				}
			}
			printQueueSummary(app, results, args)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "override the configured model")
	return cmd
}

func printQueueSummary(app *App, results []queueResult, all []string) {
	rows := make([][]string, 0, len(all))
	for _, r := range results {
		rows = append(rows, []string{r.itemID, r.outcome, r.duration.Round(time.Millisecond).String()})
	}
	for _, id := range all[len(results):] {
		rows = append(rows, []string{id, "not run", ""})
	}
	app.Printer.Table([]string{"Item", "Outcome", "Duration"}, rows)
}
