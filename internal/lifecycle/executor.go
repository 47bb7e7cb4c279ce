// Package lifecycle orchestrates pipeline steps for work items.
//
// The lifecycle package provides [Executor], which runs a single step
// ([Executor.ExecuteStep]), writes every pending block in sequence
// ([Executor.WriteAllPending]), drives a work item up to the review gate
// ([Executor.Run]) and moves it backwards ([Executor.Rollback]).
//
// Key concepts:
//   - Step legality comes from the [router.Router] step table
//   - Every ExecuteStep call appends exactly one run record, success or not
//   - Domain failures are returned as a [StepResult], never as an error
//   - NotFound and store failures propagate as errors
//   - Work on one item is serialised by a per-item lock
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/completion"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/config"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/publishing"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/store"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

// ErrBlockNotFound indicates the addressed block does not exist. Like a
// missing work item it propagates and leaves no run record.
var ErrBlockNotFound = errors.New("block not found")

// Repository is the persistence the executor needs.
//
// Update must only apply fn when the persisted status equals expected and
// return [workitem.ErrConflict] otherwise.
type Repository interface {
	Get(ctx context.Context, id string) (*workitem.WorkItem, error)
	Update(ctx context.Context, id string, expected status.Status, fn store.MutateFunc) (*workitem.WorkItem, error)
	AppendRun(ctx context.Context, rec workitem.RunRecord) (string, error)
	QueryRuns(ctx context.Context, filter workitem.RunFilter) ([]workitem.RunRecord, error)
}

// StepCommitter is implemented by repositories that can persist a work item
// update and its run record atomically. The executor prefers it when
// available.
type StepCommitter interface {
	CommitStep(ctx context.Context, id string, expected status.Status, fn store.MutateFunc, rec workitem.RunRecord) (*workitem.WorkItem, string, error)
}

// Options carries per-call step options.
type Options struct {
	// BlockIndex addresses the block for write-block.
	BlockIndex *int

	// ModelOverride replaces the configured model for AI steps.
	ModelOverride string
}

// withBlock returns a copy of o addressing block i.
func (o Options) withBlock(i int) Options {
	o.BlockIndex = &i
	return o
}

// StepResult is the outcome of one ExecuteStep call.
type StepResult struct {
	Success    bool          `json:"success"`
	RunID      string        `json:"run_id"`
	Error      string        `json:"error,omitempty"`
	TokensIn   int           `json:"tokens_in"`
	TokensOut  int           `json:"tokens_out"`
	CostUSD    float64       `json:"cost_usd"`
	DurationMs int64         `json:"duration_ms"`
	Status     status.Status `json:"status"`
}

// ProgressCallback is invoked before each unit of work begins.
//
// The callback receives stepIndex (1-based), totalSteps count and a label
// naming the step (or block) about to run.
type ProgressCallback func(stepIndex, totalSteps int, label string)

// Executor runs pipeline steps against work items.
//
// Executor uses dependency injection for testability: the [Repository]
// persists items and runs, a [completion.Service] answers AI calls and a
// [publishing.Service] publishes content. Use [NewExecutor] to create an
// instance.
type Executor struct {
	repo      Repository
	ai        completion.Service
	publisher publishing.Service
	cfg       *config.Config

	router           *router.Router
	pricing          *completion.Pricing
	target           publishing.Target
	locks            ItemLockManager
	log              *slog.Logger
	progressCallback ProgressCallback
	now              func() time.Time

	handlers map[router.Step]handler
}

// NewExecutor creates an Executor.
//
// The default router table, the configured pricing table and the
// configured publishing target are used until replaced with the Set*
// methods.
func NewExecutor(repo Repository, ai completion.Service, publisher publishing.Service, cfg *config.Config) *Executor {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Executor{
		repo:      repo,
		ai:        ai,
		publisher: publisher,
		cfg:       cfg,
		router:    router.Default(),
		pricing:   completion.NewPricing(cfg.Pricing),
		target: publishing.Target{
			BaseURL:     cfg.Publishing.BaseURL,
			Username:    cfg.Publishing.Username,
			AppPassword: cfg.Publishing.AppPassword,
		},
		locks:    NewPerItemLockManager(),
		log:      slog.New(slog.DiscardHandler),
		now:      time.Now,
		handlers: newHandlers(),
	}
}

// SetRouter configures the step table. nil keeps the current router.
func (e *Executor) SetRouter(r *router.Router) {
	if r != nil {
		e.router = r
	}
}

// SetLogger configures the logger.
func (e *Executor) SetLogger(l *slog.Logger) {
	if l != nil {
		e.log = l
	}
}

// SetPricing replaces the pricing table.
func (e *Executor) SetPricing(p *completion.Pricing) {
	e.pricing = p
}

// SetTarget replaces the publishing target.
func (e *Executor) SetTarget(t publishing.Target) {
	e.target = t
}

// SetLockManager replaces the per-item lock manager, e.g. to share one
// between executors.
func (e *Executor) SetLockManager(m ItemLockManager) {
	if m != nil {
		e.locks = m
	}
}

// SetProgressCallback configures an optional progress callback used by
// [Executor.Run] and [Executor.WriteAllPending].
func (e *Executor) SetProgressCallback(cb ProgressCallback) {
	e.progressCallback = cb
}

// SetClock overrides the clock used for durations.
func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

// usage is what a handler consumed before returning.
type usage struct {
	Model     string
	TokensIn  int
	TokensOut int
}

// updatePlan is a handler's successful outcome, applied in one persistence
// operation.
type updatePlan struct {
	// Next is the resulting status. Empty means the step's router target.
	Next status.Status

	// Apply writes the step's fields onto the work item.
	Apply func(item *workitem.WorkItem)
}

// ExecuteStep runs step against the work item itemID.
//
// A missing work item or block, and store failures, are returned as errors
// with no run record. Every other outcome appends exactly one run record:
// an illegal step for the current status or a domain failure inside the
// step yields StepResult{Success: false} and leaves the work item
// untouched; success applies the step's update and its new status.
func (e *Executor) ExecuteStep(ctx context.Context, itemID string, step router.Step, opts Options) (*StepResult, error) {
	unlock := e.locks.Lock(itemID)
	defer unlock()
	return e.executeLocked(ctx, itemID, step, opts)
}

func (e *Executor) executeLocked(ctx context.Context, itemID string, step router.Step, opts Options) (*StepResult, error) {
	item, err := e.repo.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	start := e.now()

	if step == router.StepWriteBlock && opts.BlockIndex != nil {
		if i := *opts.BlockIndex; i < 0 || i >= len(item.Blocks) {
			return nil, fmt.Errorf("%w: index %d of %d", ErrBlockNotFound, i, len(item.Blocks))
		}
	}

	e.log.Info("step started", "item", itemID, "step", step, "status", item.Status)

	if err := e.router.Allows(step, item.Status); err != nil {
		return e.fail(ctx, item, step, opts, usage{}, start, err)
	}
	h, ok := e.handlers[step]
	if !ok {
		return e.fail(ctx, item, step, opts, usage{}, start, fmt.Errorf("%w: %s", router.ErrUnknownStep, step))
	}
	if err := h.check(e, item, opts); err != nil {
		return e.fail(ctx, item, step, opts, usage{}, start, err)
	}

	plan, u, err := h.run(ctx, e, item.Clone(), opts)
	if err != nil {
		return e.fail(ctx, item, step, opts, u, start, err)
	}
	return e.commit(ctx, item, step, opts, u, start, plan)
}

func (e *Executor) record(item *workitem.WorkItem, step router.Step, opts Options, u usage, start time.Time, outcome workitem.Outcome) workitem.RunRecord {
	rec := workitem.RunRecord{
		WorkItemID: item.ID,
		Step:       string(step),
		Outcome:    outcome,
		Model:      u.Model,
		TokensIn:   u.TokensIn,
		TokensOut:  u.TokensOut,
		CostUSD:    e.pricing.Cost(u.Model, u.TokensIn, u.TokensOut),
		DurationMs: e.now().Sub(start).Milliseconds(),
	}
	if step == router.StepWriteBlock && opts.BlockIndex != nil {
		idx := *opts.BlockIndex
		rec.BlockIndex = &idx
	}
	return rec
}

func resultFrom(rec workitem.RunRecord, runID string, s status.Status) *StepResult {
	return &StepResult{
		Success:    rec.Outcome == workitem.OutcomeSuccess,
		RunID:      runID,
		Error:      rec.Error,
		TokensIn:   rec.TokensIn,
		TokensOut:  rec.TokensOut,
		CostUSD:    rec.CostUSD,
		DurationMs: rec.DurationMs,
		Status:     s,
	}
}

// fail records a failed attempt and returns the failure result. Only a
// ledger write failure is returned as an error.
func (e *Executor) fail(ctx context.Context, item *workitem.WorkItem, step router.Step, opts Options, u usage, start time.Time, cause error) (*StepResult, error) {
	rec := e.record(item, step, opts, u, start, workitem.OutcomeError)
	rec.Error = cause.Error()

	runID, err := e.repo.AppendRun(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to record run for %s: %w", step, err)
	}
	e.log.Warn("step failed", "item", item.ID, "step", step, "run", runID, "error", rec.Error)
	return resultFrom(rec, runID, item.Status), nil
}

// commit applies plan under a conditional update keyed on the status the
// step started from, together with the success record.
func (e *Executor) commit(ctx context.Context, item *workitem.WorkItem, step router.Step, opts Options, u usage, start time.Time, plan *updatePlan) (*StepResult, error) {
	next := plan.Next
	if next == "" {
		target, err := e.router.Target(step)
		if err != nil {
			return nil, err
		}
		next = target
	}
	if !e.router.AcceptsResult(step, next) {
		return nil, fmt.Errorf("step %s produced unexpected status %s", step, next)
	}

	mutate := func(w *workitem.WorkItem) error {
		if plan.Apply != nil {
			plan.Apply(w)
		}
		w.Status = next
		return nil
	}
	rec := e.record(item, step, opts, u, start, workitem.OutcomeSuccess)

	var (
		updated *workitem.WorkItem
		runID   string
		err     error
	)
	if c, ok := e.repo.(StepCommitter); ok {
		updated, runID, err = c.CommitStep(ctx, item.ID, item.Status, mutate, rec)
	} else {
		updated, err = e.repo.Update(ctx, item.ID, item.Status, mutate)
		if err == nil {
			var appendErr error
			runID, appendErr = e.repo.AppendRun(ctx, rec)
			if appendErr != nil {
				e.log.Warn("status updated but run record was lost", "item", item.ID, "step", step, "status", next, "error", appendErr)
			}
		}
	}
	if errors.Is(err, workitem.ErrConflict) {
		return e.fail(ctx, item, step, opts, u, start, err)
	}
	if err != nil {
		return nil, err
	}

	e.log.Info("step succeeded", "item", item.ID, "step", step, "run", runID, "status", updated.Status,
		"tokens_in", rec.TokensIn, "tokens_out", rec.TokensOut, "cost_usd", rec.CostUSD)
	return resultFrom(rec, runID, updated.Status), nil
}

// modelFor returns the model for step: the override, else the configured one.
func (e *Executor) modelFor(step router.Step, opts Options) string {
	if opts.ModelOverride != "" {
		return opts.ModelOverride
	}
	return e.cfg.ModelFor(string(step))
}

// complete issues the step's single AI call with the configured prompts.
func (e *Executor) complete(ctx context.Context, step router.Step, opts Options, data config.PromptData, jsonOut bool) (*completion.Response, usage, error) {
	model := e.modelFor(step, opts)
	u := usage{Model: model}
	if e.ai == nil {
		return nil, u, errors.New("no completion service configured")
	}

	system, err := e.cfg.GetSystemPrompt(string(step), data)
	if err != nil {
		return nil, u, err
	}
	prompt, err := e.cfg.GetPrompt(string(step), data)
	if err != nil {
		return nil, u, err
	}

	resp, err := e.ai.Complete(ctx, completion.Request{
		Task:     string(step),
		System:   system,
		Messages: []completion.Message{{Role: "user", Content: prompt}},
		Model:    model,
		JSON:     jsonOut,
	})
	if err != nil {
		return nil, u, err
	}
	if resp.Model != "" {
		u.Model = resp.Model
	}
	u.TokensIn, u.TokensOut = resp.TokensIn, resp.TokensOut
	return resp, u, nil
}
