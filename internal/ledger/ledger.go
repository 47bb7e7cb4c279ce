// Package ledger aggregates run records into cost reports.
//
// The [Aggregator] reads the append-only run ledger through a [RunSource]
// and folds the records in memory into totals ([Aggregator.Summary]),
// per-day buckets ([Aggregator.DailyBuckets]), the most expensive work
// items ([Aggregator.TopSpenders]) and the monthly budget status
// ([Aggregator.BudgetAlert]). All dates are UTC.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

// AlertThreshold is the budget usage percentage at which an alert is raised.
const AlertThreshold = 80.0

// RunSource provides run records and the work items they belong to.
type RunSource interface {
	QueryRuns(ctx context.Context, filter workitem.RunFilter) ([]workitem.RunRecord, error)
	Get(ctx context.Context, id string) (*workitem.WorkItem, error)
}

// Filter narrows a [Aggregator.Summary]. Zero fields do not filter.
type Filter struct {
	OwnerID string
	From    time.Time
}

// ModelCost is the spend attributed to one model.
type ModelCost struct {
	Model     string  `json:"model"`
	Cost      float64 `json:"cost_usd"`
	Runs      int     `json:"runs"`
	TokensIn  int     `json:"tokens_in"`
	TokensOut int     `json:"tokens_out"`
}

// StepCost is the spend and mean duration of one step.
type StepCost struct {
	Step          string  `json:"step"`
	Cost          float64 `json:"cost_usd"`
	Runs          int     `json:"runs"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// Summary is the folded view of a set of run records.
type Summary struct {
	TotalCost      float64     `json:"total_cost_usd"`
	TotalTokensIn  int         `json:"total_tokens_in"`
	TotalTokensOut int         `json:"total_tokens_out"`
	TotalRuns      int         `json:"total_runs"`
	SuccessfulRuns int         `json:"successful_runs"`
	AvgCostPerItem float64     `json:"avg_cost_per_item_usd"`
	ByModel        []ModelCost `json:"by_model"`
	ByStep         []StepCost  `json:"by_step"`
}

// DailyBucket is the spend of one UTC day.
type DailyBucket struct {
	Date      string  `json:"date"`
	Cost      float64 `json:"cost_usd"`
	Runs      int     `json:"runs"`
	TokensIn  int     `json:"tokens_in"`
	TokensOut int     `json:"tokens_out"`
}

// Spender is the total spend of one work item.
type Spender struct {
	WorkItemID string  `json:"work_item_id"`
	OwnerID    string  `json:"owner_id,omitempty"`
	Title      string  `json:"title,omitempty"`
	TotalCost  float64 `json:"total_cost_usd"`
	RunCount   int     `json:"run_count"`
}

// Budget is the current month's spend against a budget.
type Budget struct {
	CurrentSpend float64 `json:"current_spend_usd"`
	Budget       float64 `json:"budget_usd"`
	PercentUsed  float64 `json:"percent_used"`
	IsAlert      bool    `json:"is_alert"`
}

// Aggregator computes cost reports from a [RunSource].
type Aggregator struct {
	src RunSource
	now func() time.Time
}

// NewAggregator creates an Aggregator reading from src.
func NewAggregator(src RunSource) *Aggregator {
	return &Aggregator{src: src, now: time.Now}
}

// SetClock overrides the clock used for month and day windows.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
}

// Summary folds the records matching f.
//
// AvgCostPerItem is the total cost divided by the number of distinct work
// items, 0 when there are none. ByModel and ByStep are sorted by cost,
// highest first.
func (a *Aggregator) Summary(ctx context.Context, f Filter) (*Summary, error) {
	runs, err := a.src.QueryRuns(ctx, workitem.RunFilter{OwnerID: f.OwnerID, From: f.From})
	if err != nil {
		return nil, err
	}

	s := &Summary{ByModel: []ModelCost{}, ByStep: []StepCost{}}
	items := make(map[string]struct{})
	models := make(map[string]*ModelCost)
	steps := make(map[string]*StepCost)
	durations := make(map[string]int64)

	for _, r := range runs {
		s.TotalRuns++
		s.TotalCost += r.CostUSD
		s.TotalTokensIn += r.TokensIn
		s.TotalTokensOut += r.TokensOut
		if r.Outcome == workitem.OutcomeSuccess {
			s.SuccessfulRuns++
		}
		items[r.WorkItemID] = struct{}{}

		m, ok := models[r.Model]
		if !ok {
			m = &ModelCost{Model: r.Model}
			models[r.Model] = m
		}
		m.Cost += r.CostUSD
		m.Runs++
		m.TokensIn += r.TokensIn
		m.TokensOut += r.TokensOut

		st, ok := steps[r.Step]
		if !ok {
			st = &StepCost{Step: r.Step}
			steps[r.Step] = st
		}
		st.Cost += r.CostUSD
		st.Runs++
		durations[r.Step] += r.DurationMs
	}

	s.TotalCost = roundCost(s.TotalCost)
	if len(items) > 0 {
		s.AvgCostPerItem = roundCost(s.TotalCost / float64(len(items)))
	}
	for _, m := range models {
		m.Cost = roundCost(m.Cost)
		s.ByModel = append(s.ByModel, *m)
	}
	sort.Slice(s.ByModel, func(i, j int) bool {
		if s.ByModel[i].Cost != s.ByModel[j].Cost {
			return s.ByModel[i].Cost > s.ByModel[j].Cost
		}
		return s.ByModel[i].Model < s.ByModel[j].Model
	})
	for name, st := range steps {
		st.Cost = roundCost(st.Cost)
		st.AvgDurationMs = float64(durations[name]) / float64(st.Runs)
		s.ByStep = append(s.ByStep, *st)
	}
	sort.Slice(s.ByStep, func(i, j int) bool {
		if s.ByStep[i].Cost != s.ByStep[j].Cost {
			return s.ByStep[i].Cost > s.ByStep[j].Cost
		}
		return s.ByStep[i].Step < s.ByStep[j].Step
	})
	return s, nil
}

// DailyBuckets returns one bucket per UTC day with records over the last
// days days, today included, oldest first. Days without records have no
// bucket.
func (a *Aggregator) DailyBuckets(ctx context.Context, days int) ([]DailyBucket, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	from := startOfDay(a.now()).AddDate(0, 0, -(days - 1))
	runs, err := a.src.QueryRuns(ctx, workitem.RunFilter{From: from})
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*DailyBucket)
	for _, r := range runs {
		key := r.CreatedAt.UTC().Format(time.DateOnly)
		b, ok := byDate[key]
		if !ok {
			b = &DailyBucket{Date: key}
			byDate[key] = b
		}
		b.Cost += r.CostUSD
		b.Runs++
		b.TokensIn += r.TokensIn
		b.TokensOut += r.TokensOut
	}

	out := make([]DailyBucket, 0, len(byDate))
	for _, b := range byDate {
		b.Cost = roundCost(b.Cost)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// TopSpenders returns the limit work items with the highest total cost.
// Titles and owners are resolved from the work items; records whose item
// no longer exists keep a blank title.
func (a *Aggregator) TopSpenders(ctx context.Context, limit int) ([]Spender, error) {
	runs, err := a.src.QueryRuns(ctx, workitem.RunFilter{})
	if err != nil {
		return nil, err
	}

	byItem := make(map[string]*Spender)
	for _, r := range runs {
		s, ok := byItem[r.WorkItemID]
		if !ok {
			s = &Spender{WorkItemID: r.WorkItemID}
			byItem[r.WorkItemID] = s
		}
		s.TotalCost += r.CostUSD
		s.RunCount++
	}

	out := make([]Spender, 0, len(byItem))
	for _, s := range byItem {
		s.TotalCost = roundCost(s.TotalCost)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCost != out[j].TotalCost {
			return out[i].TotalCost > out[j].TotalCost
		}
		return out[i].WorkItemID < out[j].WorkItemID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	for i := range out {
		item, err := a.src.Get(ctx, out[i].WorkItemID)
		if errors.Is(err, workitem.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[i].Title = item.Title
		out[i].OwnerID = item.OwnerID
	}
	return out, nil
}

// BudgetAlert compares the spend since the first day of the current UTC
// month with monthlyBudget. A budget of zero or less never alerts.
// PercentUsed is rounded to one decimal for display; the alert uses the
// exact ratio.
func (a *Aggregator) BudgetAlert(ctx context.Context, monthlyBudget float64) (*Budget, error) {
	now := a.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	runs, err := a.src.QueryRuns(ctx, workitem.RunFilter{From: monthStart})
	if err != nil {
		return nil, err
	}

	var spend float64
	for _, r := range runs {
		spend += r.CostUSD
	}
	b := &Budget{CurrentSpend: roundCost(spend), Budget: monthlyBudget}
	if monthlyBudget > 0 {
		percent := spend * 100 / monthlyBudget
		b.PercentUsed = math.Round(percent*10) / 10
		b.IsAlert = percent >= AlertThreshold
	}
	return b, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// roundCost rounds to a millionth of a dollar, the ledger's precision.
func roundCost(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
