package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
)

func newShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show a work item and its blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			item, err := app.Items.Get(ctx, args[0])
			if err != nil {
				return fail(app, err)
			}

			p := app.Printer
			p.Header(item.Title)
			p.KeyValue("ID", item.ID)
			p.KeyValue("Keyword", item.Keyword)
			if item.OwnerID != "" {
				p.KeyValue("Owner", item.OwnerID)
			}
			p.KeyValue("Status", fmt.Sprintf("%s (%s)", status.Label(item.Status), item.Status))
			p.KeyValue("Progress", p.ProgressBar(status.Progress(item.Status)))
			p.KeyValue("Words", item.WordCount())
			if item.ExternalURL != "" {
				p.KeyValue("URL", item.ExternalURL)
			}

			steps, err := app.Executor.GetSteps(ctx, item.ID)
			switch {
			case errors.Is(err, router.ErrItemComplete):
				p.KeyValue("Next step", "(complete)")
			case err != nil:
				return fail(app, err)
			case len(steps) > 0:
				p.KeyValue("Next step", steps[0].Step)
			}

			if item.SEO != nil {
				p.KeyValue("SEO score", item.SEO.Score)
				for _, rule := range item.SEO.Failed {
					p.Warning("rule failed: %s", rule)
				}
			}

			rows := make([][]string, 0, len(item.Blocks))
			for i, b := range item.Blocks {
				rows = append(rows, []string{
					strconv.Itoa(i),
					string(b.Type),
					b.Heading,
					string(b.Status),
					strconv.Itoa(b.WordCount),
				})
			}
			p.Table([]string{"#", "Type", "Heading", "Status", "Words"}, rows)
			return nil
		},
	}
}
