package cli

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/lifecycle"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
)

func newRunCommand(app *App) *cobra.Command {
	var (
		model  string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "run <item-id>",
		Short: "Run the pipeline up to the review gate",
		Long: `Run every remaining automatic step for a work item:
  1. analyze     - Search intent and title candidates
  2. plan        - Block outline and link suggestions
  3. write-block - Every pending block, in order
  4. media       - Alt text and filenames for images
  5. seo-check   - Meta description and rule evaluation

The run stops at the review gate. Run it again from reviewing to publish.
Published and stale items are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			itemID := args[0]
			p := app.Printer

			if dryRun {
				steps, err := app.Executor.GetSteps(ctx, itemID)
				if errors.Is(err, router.ErrItemComplete) {
					p.Muted("Work item is complete, nothing to run")
					return nil
				}
				if err != nil {
					return fail(app, err)
				}
				rows := make([][]string, 0, len(steps))
				for i, s := range steps {
					rows = append(rows, []string{strconv.Itoa(i + 1), string(s.Step), string(s.NextStatus)})
				}
				p.Table([]string{"#", "Step", "Next status"}, rows)
				return nil
			}

			app.Executor.SetProgressCallback(func(i, total int, label string) {
				p.Muted("[%d/%d] %s", i, total, label)
			})
			defer app.Executor.SetProgressCallback(nil)

			err := app.Executor.Run(ctx, itemID, lifecycle.Options{ModelOverride: model})
			if errors.Is(err, router.ErrItemComplete) {
				p.Muted("Work item is complete, nothing to run")
				return nil
			}
			if err != nil {
				return fail(app, err)
			}

			item, err := app.Items.Get(ctx, itemID)
			if err != nil {
				return fail(app, err)
			}
			p.Success("%s is %s", item.ID, status.Label(item.Status))
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "override the configured model")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the steps without executing them")
	return cmd
}
