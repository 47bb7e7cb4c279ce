package cli

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
)

func newRollbackCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <item-id>",
		Short: "Move a work item back one status",
		Long: `Move a work item back exactly one status in the forward sequence.
A stale (refresh_needed) item returns to published. Draft items cannot be
rolled back. Rollback is not recorded in the run ledger.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := app.Executor.Rollback(cmd.Context(), args[0])
			if err != nil {
				return fail(app, err)
			}
			app.Printer.Success("Rolled back to %s (%s)", status.Label(target), target)
			return nil
		},
	}
}

func newHistoryCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history <item-id>",
		Short: "Show the run ledger of a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := app.Executor.History(cmd.Context(), args[0])
			if err != nil {
				return fail(app, err)
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
					r.Step,
					string(r.Outcome),
					r.Model,
					fmt.Sprintf("%d/%d", r.TokensIn, r.TokensOut),
					formatCost(r.CostUSD),
					fmt.Sprintf("%dms", r.DurationMs),
					r.Error,
				})
			}
			app.Printer.Table([]string{"Time", "Step", "Outcome", "Model", "Tokens", "Cost", "Duration", "Error"}, rows)
			return nil
		},
	}
}

func newStaleCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stale <item-id>",
		Short: "Mark published content as needing a refresh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Executor.MarkStale(cmd.Context(), args[0]); err != nil {
				return fail(app, err)
			}
			app.Printer.Success("Marked %s as %s", args[0], status.StatusRefreshNeeded)
			return nil
		},
	}
}

func newApproveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <item-id>",
		Short: "Approve every written block of a work item under review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Executor.ApproveBlocks(cmd.Context(), args[0])
			if err != nil {
				return fail(app, err)
			}
			app.Printer.Success("Approved %d blocks", n)
			return nil
		},
	}
}

func newAssetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "asset <item-id> <block-index> <file>",
		Short: "Upload an image for an image block",
		Long: `Upload an image file to the publishing target and attach it to an
image block. The content type is taken from the file extension, falling
back to content sniffing.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fail(app, fmt.Errorf("invalid block index %q", args[1]))
			}
			data, err := os.ReadFile(args[2])
			if err != nil {
				return fail(app, err)
			}

			block, err := app.Executor.AttachAsset(cmd.Context(), args[0], idx, data, contentType(args[2], data))
			if err != nil {
				return fail(app, err)
			}
			app.Printer.Success("Uploaded %s", filepath.Base(args[2]))
			app.Printer.KeyValue("Asset", block.AssetID)
			app.Printer.KeyValue("URL", block.ImageURL)
			return nil
		},
	}
}

func contentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
