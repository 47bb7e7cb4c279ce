package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

// ErrSEORulesFailed indicates the seo-check step left the item at seo_check.
var ErrSEORulesFailed = errors.New("seo rules failed")

// StepFailedError reports the step that stopped [Executor.Run].
type StepFailedError struct {
	Step    router.Step
	RunID   string
	Message string
}

func (e *StepFailedError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("step %s failed (run %s): %s", e.Step, e.RunID, e.Message)
	}
	return fmt.Sprintf("step %s failed: %s", e.Step, e.Message)
}

// Run drives the work item forward until the review gate.
//
// Run repeatedly executes the forward step for the current status (see
// [router.Router.NextStep]); write-block is expanded into
// [Executor.WriteAllPending]. An item left at planning or writing with
// pending blocks, for example after a partially failed batch, resumes with
// the pending blocks. It stops without error on reaching reviewing,
// or published when started from the review gate. Any failed step stops the
// run with a [*StepFailedError]; a seo-check that leaves violations stops it
// with an error wrapping [ErrSEORulesFailed].
//
// For published and refresh_needed items Run returns [router.ErrItemComplete].
func (e *Executor) Run(ctx context.Context, itemID string, opts Options) error {
	item, err := e.repo.Get(ctx, itemID)
	if err != nil {
		return err
	}
	planned, err := e.router.GetLifecycle(item.Status)
	if err != nil {
		return err
	}
	total := len(planned)

	var last router.Step
	for i := 0; i <= 2*len(status.Forward()); i++ {
		if i > 0 {
			if item, err = e.repo.Get(ctx, itemID); err != nil {
				return err
			}
			if item.Status == status.StatusReviewing || item.Status == status.StatusPublished {
				return nil
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		step, ok := e.forwardStep(item)
		if !ok {
			return nil
		}
		if step == router.StepSEOCheck && last == router.StepSEOCheck {
			return seoFailure(item)
		}
		if e.progressCallback != nil {
			e.progressCallback(i+1, max(total, i+1), string(step))
		}

		if err := e.runStep(ctx, itemID, step, opts); err != nil {
			return err
		}
		last = step
	}
	return fmt.Errorf("work item %s did not reach %s", itemID, status.StatusReviewing)
}

// forwardStep is NextStep, except that pending blocks are written before the
// item leaves the writing phase.
func (e *Executor) forwardStep(item *workitem.WorkItem) (router.Step, bool) {
	if hasPendingWrites(item) {
		return router.StepWriteBlock, true
	}
	return e.router.NextStep(item.Status)
}

func hasPendingWrites(item *workitem.WorkItem) bool {
	if item.Status != status.StatusPlanning && item.Status != status.StatusWriting {
		return false
	}
	return len(item.PendingIndexes()) > 0
}

func (e *Executor) runStep(ctx context.Context, itemID string, step router.Step, opts Options) error {
	if step == router.StepWriteBlock {
		batch, err := e.WriteAllPending(ctx, itemID, opts)
		if err != nil {
			return &StepFailedError{Step: step, Message: err.Error()}
		}
		if batch.ErrorCount > 0 {
			return &StepFailedError{
				Step:    step,
				Message: fmt.Sprintf("%d of %d blocks failed", batch.ErrorCount, batch.PendingBlocks),
			}
		}
		return nil
	}

	res, err := e.ExecuteStep(ctx, itemID, step, opts)
	if err != nil {
		return err
	}
	if !res.Success {
		return &StepFailedError{Step: step, RunID: res.RunID, Message: res.Error}
	}
	return nil
}

func seoFailure(item *workitem.WorkItem) error {
	if item.SEO == nil || len(item.SEO.Failed) == 0 {
		return ErrSEORulesFailed
	}
	return fmt.Errorf("%w: %s", ErrSEORulesFailed, strings.Join(item.SEO.Failed, "; "))
}

// GetSteps returns the remaining automatic steps for the work item without
// executing them.
//
// A writing item with pending blocks lists write-block first. Returns
// [router.ErrItemComplete] for published and refresh_needed items.
func (e *Executor) GetSteps(ctx context.Context, itemID string) ([]router.LifecycleStep, error) {
	item, err := e.repo.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	steps, err := e.router.GetLifecycle(item.Status)
	if err != nil {
		return nil, err
	}
	if item.Status == status.StatusWriting && hasPendingWrites(item) {
		steps = append([]router.LifecycleStep{{Step: router.StepWriteBlock, NextStatus: status.StatusWriting}}, steps...)
	}
	return steps, nil
}
