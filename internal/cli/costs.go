package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/ledger"
)

func newCostsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Report spend from the run ledger",
	}
	cmd.AddCommand(
		newCostsSummaryCommand(app),
		newCostsDailyCommand(app),
		newCostsTopCommand(app),
		newCostsBudgetCommand(app),
	)
	return cmd
}

func newCostsSummaryCommand(app *App) *cobra.Command {
	var owner, since string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Total spend by model and by step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := ledger.Filter{OwnerID: owner}
			if since != "" {
				from, err := time.Parse(time.DateOnly, since)
				if err != nil {
					return fail(app, fmt.Errorf("invalid --since %q: want YYYY-MM-DD", since))
				}
				f.From = from
			}

			s, err := app.Costs.Summary(cmd.Context(), f)
			if err != nil {
				return fail(app, err)
			}

			p := app.Printer
			p.Header("Cost summary")
			p.KeyValue("Total", formatCost(s.TotalCost))
			p.KeyValue("Runs", fmt.Sprintf("%d (%d successful)", s.TotalRuns, s.SuccessfulRuns))
			p.KeyValue("Tokens", fmt.Sprintf("%d in / %d out", s.TotalTokensIn, s.TotalTokensOut))
			p.KeyValue("Per item", formatCost(s.AvgCostPerItem))

			models := make([][]string, 0, len(s.ByModel))
			for _, m := range s.ByModel {
				name := m.Model
				if name == "" {
					name = "(none)"
				}
				models = append(models, []string{name, formatCost(m.Cost), strconv.Itoa(m.Runs), fmt.Sprintf("%d/%d", m.TokensIn, m.TokensOut)})
			}
			p.Table([]string{"Model", "Cost", "Runs", "Tokens"}, models)

			steps := make([][]string, 0, len(s.ByStep))
			for _, st := range s.ByStep {
				steps = append(steps, []string{st.Step, formatCost(st.Cost), strconv.Itoa(st.Runs), fmt.Sprintf("%.0fms", st.AvgDurationMs)})
			}
			p.Table([]string{"Step", "Cost", "Runs", "Avg duration"}, steps)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only count this owner's work items")
	cmd.Flags().StringVar(&since, "since", "", "only count runs from this UTC date (YYYY-MM-DD)")
	return cmd
}

func newCostsDailyCommand(app *App) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Spend per UTC day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			buckets, err := app.Costs.DailyBuckets(cmd.Context(), days)
			if err != nil {
				return fail(app, err)
			}
			rows := make([][]string, 0, len(buckets))
			for _, b := range buckets {
				rows = append(rows, []string{b.Date, formatCost(b.Cost), strconv.Itoa(b.Runs), fmt.Sprintf("%d/%d", b.TokensIn, b.TokensOut)})
			}
			app.Printer.Table([]string{"Date", "Cost", "Runs", "Tokens"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "number of days, today included")
	return cmd
}

func newCostsTopCommand(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Most expensive work items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			top, err := app.Costs.TopSpenders(cmd.Context(), limit)
			if err != nil {
				return fail(app, err)
			}
			rows := make([][]string, 0, len(top))
			for _, s := range top {
				rows = append(rows, []string{s.WorkItemID, s.Title, s.OwnerID, formatCost(s.TotalCost), strconv.Itoa(s.RunCount)})
			}
			app.Printer.Table([]string{"ID", "Title", "Owner", "Cost", "Runs"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of work items (0 for all)")
	return cmd
}

func newCostsBudgetCommand(app *App) *cobra.Command {
	var budget float64
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Current month's spend against the budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("budget") {
				budget = app.Config.Budget.MonthlyUSD
			}
			b, err := app.Costs.BudgetAlert(cmd.Context(), budget)
			if err != nil {
				return fail(app, err)
			}

			p := app.Printer
			p.KeyValue("Spend", formatCost(b.CurrentSpend))
			if b.Budget <= 0 {
				p.Muted("No monthly budget configured")
				return nil
			}
			p.KeyValue("Budget", fmt.Sprintf("$%.2f", b.Budget))
			p.KeyValue("Used", fmt.Sprintf("%.1f%%", b.PercentUsed))
			if b.IsAlert {
				p.Warning("Spend is at %.1f%% of the monthly budget", b.PercentUsed)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&budget, "budget", 0, "monthly budget in USD (default from config)")
	return cmd
}
