package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/lifecycle"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
)

func stepNames() string {
	names := make([]string, 0, len(router.Steps()))
	for _, s := range router.Steps() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func newStepCommand(app *App) *cobra.Command {
	var (
		block int
		model string
	)
	cmd := &cobra.Command{
		Use:   "step <item-id> <step>",
		Short: "Execute one pipeline step",
		Long: `Execute one pipeline step on a work item.

Steps: ` + stepNames() + `

Every execution is recorded in the run ledger, successful or not.
write-block requires --block.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			step := router.Step(args[1])
			if !step.IsKnown() {
				return fail(app, fmt.Errorf("%w: %s (known steps: %s)", router.ErrUnknownStep, step, stepNames()))
			}
			opts := lifecycle.Options{ModelOverride: model}
			if cmd.Flags().Changed("block") {
				opts.BlockIndex = &block
			}

			res, err := app.Executor.ExecuteStep(cmd.Context(), args[0], step, opts)
			if err != nil {
				return fail(app, err)
			}
			printStepResult(app, step, res)
			if !res.Success {
				return NewExitError(ExitStepFailed)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&block, "block", 0, "block index for write-block")
	cmd.Flags().StringVar(&model, "model", "", "override the configured model")
	return cmd
}

func printStepResult(app *App, step router.Step, res *lifecycle.StepResult) {
	p := app.Printer
	if res.Success {
		p.Success("%s → %s", step, res.Status)
	} else {
		p.Failure("%s failed: %s", step, res.Error)
	}
	p.KeyValue("Run", res.RunID)
	p.KeyValue("Tokens", fmt.Sprintf("%d in / %d out", res.TokensIn, res.TokensOut))
	p.KeyValue("Cost", formatCost(res.CostUSD))
	p.KeyValue("Duration", fmt.Sprintf("%dms", res.DurationMs))
}

func newWriteAllCommand(app *App) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "write-all <item-id>",
		Short: "Write every pending block",
		Long: `Write every pending block of a work item in order, one write-block
step per block. A failing block does not stop the batch; the command exits
with status 2 when any block failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := app.Printer
			app.Executor.SetProgressCallback(func(i, total int, label string) {
				p.Muted("[%d/%d] %s", i, total, label)
			})
			defer app.Executor.SetProgressCallback(nil)

			res, err := app.Executor.WriteAllPending(cmd.Context(), args[0], lifecycle.Options{ModelOverride: model})
			if err != nil {
				return fail(app, err)
			}

			rows := make([][]string, 0, len(res.Blocks))
			for _, b := range res.Blocks {
				outcome, detail := "✓", ""
				if !b.Success {
					outcome, detail = "✗", b.Error
				}
				cost := ""
				if b.Result != nil {
					cost = formatCost(b.Result.CostUSD)
				}
				rows = append(rows, []string{strconv.Itoa(b.Index), b.Heading, outcome, cost, detail})
			}
			p.Table([]string{"#", "Heading", "", "Cost", "Error"}, rows)
			p.KeyValue("Written", fmt.Sprintf("%d of %d pending", res.WrittenCount, res.PendingBlocks))
			p.KeyValue("Tokens", fmt.Sprintf("%d in / %d out", res.TotalTokensIn, res.TotalTokensOut))
			p.KeyValue("Cost", formatCost(res.TotalCostUSD))

			if res.ErrorCount > 0 {
				p.Failure("%d of %d blocks failed", res.ErrorCount, res.PendingBlocks)
				return NewExitError(ExitStepFailed)
			}
			p.Success("All %d blocks written", res.WrittenCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "override the configured model")
	return cmd
}

func formatCost(usd float64) string {
	return fmt.Sprintf("$%.6f", usd)
}
