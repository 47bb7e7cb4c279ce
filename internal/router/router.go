// Package router provides step routing based on work item status.
//
// The router holds the fixed step table: for each [Step] the statuses it may
// run from and the status it moves the work item to on success. It serves as
// the central legality check for the step orchestrator and derives the
// forward step for a status ([Router.NextStep]) and the remaining automatic
// sequence ([Router.GetLifecycle]).
//
// Routing can be driven by the built-in table ([NewRouter]) or by a pipeline
// manifest ([NewRouterFromManifest]).
//
// Package-level functions [NextStep] and [GetLifecycle] use the default
// router.
package router

import (
	"errors"
	"fmt"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/manifest"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
)

// Sentinel errors for step routing.
var (
	// ErrItemComplete indicates the work item is published (or stale) and no
	// forward step applies. Callers should skip rather than fail.
	ErrItemComplete = errors.New("work item is complete, no forward step")

	// ErrUnknownStatus indicates the status value is not recognized.
	ErrUnknownStatus = errors.New("unknown status value")

	// ErrUnknownStep indicates the step name is not part of the step table.
	ErrUnknownStep = errors.New("unknown step")

	// ErrIllegalTransition indicates the step may not run from the current
	// status.
	ErrIllegalTransition = errors.New("illegal transition")
)

// Step names a unit of pipeline work.
type Step string

// Pipeline steps.
const (
	StepAnalyze    Step = "analyze"
	StepPlan       Step = "plan"
	StepWriteBlock Step = "write-block"
	StepMedia      Step = "media"
	StepSEOCheck   Step = "seo-check"
	StepPublish    Step = "publish"
	StepRefresh    Step = "refresh"
)

// Steps returns every step in pipeline order.
func Steps() []Step {
	return []Step{StepAnalyze, StepPlan, StepWriteBlock, StepMedia, StepSEOCheck, StepPublish, StepRefresh}
}

// IsKnown returns true if s is one of the pipeline steps.
func (s Step) IsKnown() bool {
	for _, k := range Steps() {
		if k == s {
			return true
		}
	}
	return false
}

// DefaultRefreshTarget is where the refresh step sends a work item unless
// configured otherwise.
const DefaultRefreshTarget = status.StatusAnalyzing

// route is an internal row of the step table.
type route struct {
	Step   Step
	From   []status.Status
	Target status.Status

	// Manual routes are never inferred as the forward step of a status.
	Manual bool
}

func (r *route) allows(s status.Status) bool {
	for _, f := range r.From {
		if f == s {
			return true
		}
	}
	return false
}

// Router routes work item statuses to steps.
//
// Create with [NewRouter] for the built-in table or [NewRouterFromManifest]
// for a manifest-driven table.
type Router struct {
	// order is the step order used when inferring forward steps.
	order []Step

	// routes maps step → its table row.
	routes map[Step]*route
}

// Option configures a [Router].
type Option func(*Router) error

// WithRefreshTarget sets the status the refresh step moves a work item to.
// The target must be a forward state strictly before published.
func WithRefreshTarget(target status.Status) Option {
	return func(r *Router) error {
		if target == "" {
			return nil
		}
		if status.Index(target) < 0 || !status.Before(target, status.StatusPublished) {
			return fmt.Errorf("invalid refresh target %q: must be a forward state before %s", target, status.StatusPublished)
		}
		rt, ok := r.routes[StepRefresh]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownStep, StepRefresh)
		}
		rt.Target = target
		return nil
	}
}

// NewRouter creates a [Router] with the built-in step table.
//
// The table is:
//   - analyze: draft, analyzing → analyzing
//   - plan: draft, analyzing, planning → planning
//   - write-block: planning, writing → writing
//   - media: writing → media
//   - seo-check: media, seo_check → reviewing (seo_check when rules fail)
//   - publish: reviewing, publishing, published → published
//   - refresh: published, refresh_needed → refresh target (default analyzing)
func NewRouter(opts ...Option) (*Router, error) {
	r := &Router{routes: make(map[Step]*route)}
	r.add(&route{Step: StepAnalyze, From: []status.Status{status.StatusDraft, status.StatusAnalyzing}, Target: status.StatusAnalyzing})
	r.add(&route{Step: StepPlan, From: []status.Status{status.StatusDraft, status.StatusAnalyzing, status.StatusPlanning}, Target: status.StatusPlanning})
	r.add(&route{Step: StepWriteBlock, From: []status.Status{status.StatusPlanning, status.StatusWriting}, Target: status.StatusWriting})
	r.add(&route{Step: StepMedia, From: []status.Status{status.StatusWriting}, Target: status.StatusMedia})
	r.add(&route{Step: StepSEOCheck, From: []status.Status{status.StatusMedia, status.StatusSEOCheck}, Target: status.StatusReviewing})
	r.add(&route{Step: StepPublish, From: []status.Status{status.StatusReviewing, status.StatusPublishing, status.StatusPublished}, Target: status.StatusPublished})
	r.add(&route{Step: StepRefresh, From: []status.Status{status.StatusPublished, status.StatusRefreshNeeded}, Target: DefaultRefreshTarget, Manual: true})

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewRouterFromManifest creates a [Router] from a pipeline manifest.
//
// Each manifest row adds trigger_status to the step's allowed statuses and
// sets its target to next_status. Steps keep the order of their first
// appearance. Every step must be known and every status valid; refresh is
// always treated as a manual step.
func NewRouterFromManifest(m *manifest.Manifest, opts ...Option) (*Router, error) {
	r := &Router{routes: make(map[Step]*route)}

	for i, entry := range m.Entries {
		step := Step(entry.Step)
		if !step.IsKnown() {
			return nil, fmt.Errorf("manifest entry %d: %w: %s", i+1, ErrUnknownStep, entry.Step)
		}
		next := status.Status(entry.NextStatus)
		if !next.IsValid() {
			return nil, fmt.Errorf("manifest entry %d: %w: %s", i+1, ErrUnknownStatus, entry.NextStatus)
		}

		rt, seen := r.routes[step]
		if !seen {
			rt = &route{Step: step, Target: next, Manual: step == StepRefresh}
			r.add(rt)
		}
		if rt.Target != next {
			return nil, fmt.Errorf("manifest entry %d: step %s has conflicting targets %s and %s", i+1, step, rt.Target, next)
		}

		if entry.TriggerStatus != "" {
			trigger := status.Status(entry.TriggerStatus)
			if !trigger.IsValid() {
				return nil, fmt.Errorf("manifest entry %d: %w: %s", i+1, ErrUnknownStatus, entry.TriggerStatus)
			}
			if !rt.allows(trigger) {
				rt.From = append(rt.From, trigger)
			}
		}
	}

	for _, step := range Steps() {
		if _, ok := r.routes[step]; !ok {
			return nil, fmt.Errorf("manifest does not route step %s", step)
		}
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Router) add(rt *route) {
	r.order = append(r.order, rt.Step)
	r.routes[rt.Step] = rt
}

// Allows checks that step may run while the work item is at s.
//
// Returns an error wrapping [ErrUnknownStep] or [ErrIllegalTransition].
func (r *Router) Allows(step Step, s status.Status) error {
	rt, ok := r.routes[step]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}
	if !rt.allows(s) {
		return fmt.Errorf("%w: step %s cannot run from status %s", ErrIllegalTransition, step, s)
	}
	return nil
}

// Target returns the status step moves a work item to on success.
func (r *Router) Target(step Step) (status.Status, error) {
	rt, ok := r.routes[step]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}
	return rt.Target, nil
}

// AcceptsResult reports whether a successful step may leave the work item
// at next: its target, or one of the statuses it runs from.
func (r *Router) AcceptsResult(step Step, next status.Status) bool {
	rt, ok := r.routes[step]
	if !ok {
		return false
	}
	return next == rt.Target || rt.allows(next)
}

// NextStep returns the forward step for status s.
//
// The forward step is the first non-manual step, in table order, that may
// run from s and moves the work item somewhere else. published and
// refresh_needed have no forward step.
func (r *Router) NextStep(s status.Status) (Step, bool) {
	for _, step := range r.order {
		rt := r.routes[step]
		if rt.Manual || rt.Target == s {
			continue
		}
		if rt.allows(s) {
			return step, true
		}
	}
	return "", false
}

// GetLifecycle returns the automatic steps from s up to the review gate.
//
// The sequence stops after the step that reaches reviewing, so a human can
// approve the content; starting at reviewing continues with publish.
// Returns [ErrItemComplete] for published and refresh_needed, and
// [ErrUnknownStatus] for unrecognized values.
func (r *Router) GetLifecycle(s status.Status) ([]LifecycleStep, error) {
	if s == status.StatusPublished || s == status.StatusRefreshNeeded {
		return nil, ErrItemComplete
	}
	if !s.IsValid() {
		return nil, ErrUnknownStatus
	}

	var steps []LifecycleStep
	cur := s
	for range status.Forward() {
		step, ok := r.NextStep(cur)
		if !ok {
			break
		}
		next := r.routes[step].Target
		steps = append(steps, LifecycleStep{Step: step, NextStatus: next})
		cur = next
		if cur == status.StatusReviewing {
			break
		}
	}
	return steps, nil
}

// defaultRouter is the package-level router built from the default table.
var defaultRouter = mustDefault()

func mustDefault() *Router {
	r, err := NewRouter()
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the package-level router.
func Default() *Router {
	return defaultRouter
}

// NextStep returns the forward step for s using the default router.
//
// The mapping is:
//   - draft -> analyze
//   - analyzing -> plan
//   - planning -> write-block
//   - writing -> media
//   - media, seo_check -> seo-check
//   - reviewing, publishing -> publish
//   - published, refresh_needed -> none
func NextStep(s status.Status) (Step, bool) {
	return defaultRouter.NextStep(s)
}

// GetLifecycle returns the automatic steps from s using the default router.
func GetLifecycle(s status.Status) ([]LifecycleStep, error) {
	return defaultRouter.GetLifecycle(s)
}
