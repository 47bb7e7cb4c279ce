package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
)

// Batch guard errors. Both are returned before any step runs.
var (
	ErrNoBlocks        = errors.New("work item has no blocks")
	ErrNoPendingBlocks = errors.New("work item has no pending blocks")
)

// BlockResult is the outcome of writing one block within a batch.
type BlockResult struct {
	Index   int         `json:"index"`
	Heading string      `json:"heading,omitempty"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Result  *StepResult `json:"result,omitempty"`
}

// BatchResult summarises a [Executor.WriteAllPending] run.
type BatchResult struct {
	TotalBlocks    int           `json:"total_blocks"`
	PendingBlocks  int           `json:"pending_blocks"`
	WrittenCount   int           `json:"written_count"`
	ErrorCount     int           `json:"error_count"`
	TotalTokensIn  int           `json:"total_tokens_in"`
	TotalTokensOut int           `json:"total_tokens_out"`
	TotalCostUSD   float64       `json:"total_cost_usd"`
	Blocks         []BlockResult `json:"blocks"`
}

// WriteAllPending writes every pending block of the work item, in sequence
// order, one write-block step at a time.
//
// Each block is written after the previous one has been persisted so its
// prompt sees the headings written so far. A failing block, including one
// whose step returns an error or panics, is recorded in the result and the
// batch continues. Only a missing work item or the guard errors
// [ErrNoBlocks] and [ErrNoPendingBlocks] abort the batch.
func (e *Executor) WriteAllPending(ctx context.Context, itemID string, opts Options) (*BatchResult, error) {
	item, err := e.repo.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if len(item.Blocks) == 0 {
		return nil, ErrNoBlocks
	}
	pending := item.PendingIndexes()
	if len(pending) == 0 {
		return nil, ErrNoPendingBlocks
	}

	result := &BatchResult{
		TotalBlocks:   len(item.Blocks),
		PendingBlocks: len(pending),
		Blocks:        make([]BlockResult, 0, len(pending)),
	}

	for i, idx := range pending {
		if e.progressCallback != nil {
			e.progressCallback(i+1, len(pending), blockLabel(idx, item.Blocks[idx].Heading))
		}

		br := BlockResult{Index: idx, Heading: item.Blocks[idx].Heading}
		res, err := e.safeExecute(ctx, itemID, router.StepWriteBlock, opts.withBlock(idx))
		switch {
		case err != nil:
			br.Error = err.Error()
			e.log.Error("block write aborted", "item", itemID, "block", idx, "error", err)
		case res.Success:
			br.Success = true
		default:
			br.Error = res.Error
		}
		if res != nil {
			br.Result = res
			result.TotalTokensIn += res.TokensIn
			result.TotalTokensOut += res.TokensOut
			result.TotalCostUSD += res.CostUSD
		}

		if br.Success {
			result.WrittenCount++
		} else {
			result.ErrorCount++
		}
		result.Blocks = append(result.Blocks, br)
	}

	e.log.Info("batch finished", "item", itemID, "written", result.WrittenCount, "errors", result.ErrorCount,
		"cost_usd", result.TotalCostUSD)
	return result, nil
}

// safeExecute runs ExecuteStep and converts a panic into an error.
func (e *Executor) safeExecute(ctx context.Context, itemID string, step router.Step, opts Options) (res *StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("step %s panicked: %v", step, r)
		}
	}()
	return e.ExecuteStep(ctx, itemID, step, opts)
}

func blockLabel(idx int, heading string) string {
	if heading == "" {
		return fmt.Sprintf("block %d", idx)
	}
	return fmt.Sprintf("block %d: %s", idx, heading)
}
