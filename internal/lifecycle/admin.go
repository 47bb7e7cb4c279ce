package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/publishing"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

// ErrNotImageBlock indicates an asset was attached to a non-image block.
var ErrNotImageBlock = errors.New("block is not an image block")

// Rollback moves the work item exactly one status back and returns the new
// status.
//
// Rollback does not go through the step path and writes no run record. It
// returns an error wrapping [router.ErrIllegalTransition] when the current
// status has no predecessor.
func (e *Executor) Rollback(ctx context.Context, itemID string) (status.Status, error) {
	unlock := e.locks.Lock(itemID)
	defer unlock()

	item, err := e.repo.Get(ctx, itemID)
	if err != nil {
		return "", err
	}
	target, ok := status.RollbackTarget(item.Status)
	if !ok {
		return "", fmt.Errorf("%w: no rollback target for status %s", router.ErrIllegalTransition, item.Status)
	}

	if _, err := e.repo.Update(ctx, itemID, item.Status, func(w *workitem.WorkItem) error {
		w.Status = target
		return nil
	}); err != nil {
		return "", err
	}
	e.log.Info("rolled back", "item", itemID, "from", item.Status, "to", target)
	return target, nil
}

// History returns the run records of the work item, most recent first.
func (e *Executor) History(ctx context.Context, itemID string) ([]workitem.RunRecord, error) {
	if _, err := e.repo.Get(ctx, itemID); err != nil {
		return nil, err
	}
	return e.repo.QueryRuns(ctx, workitem.RunFilter{WorkItemID: itemID})
}

// MarkStale flags published content as needing a refresh.
func (e *Executor) MarkStale(ctx context.Context, itemID string) error {
	return e.transition(ctx, itemID, status.StatusPublished, status.StatusRefreshNeeded)
}

func (e *Executor) transition(ctx context.Context, itemID string, from, to status.Status) error {
	unlock := e.locks.Lock(itemID)
	defer unlock()

	item, err := e.repo.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != from {
		return fmt.Errorf("%w: expected status %s, got %s", router.ErrIllegalTransition, from, item.Status)
	}
	_, err = e.repo.Update(ctx, itemID, from, func(w *workitem.WorkItem) error {
		w.Status = to
		return nil
	})
	return err
}

// ApproveBlocks approves every written block of an item under review and
// returns how many were approved.
func (e *Executor) ApproveBlocks(ctx context.Context, itemID string) (int, error) {
	unlock := e.locks.Lock(itemID)
	defer unlock()

	item, err := e.repo.Get(ctx, itemID)
	if err != nil {
		return 0, err
	}
	if item.Status != status.StatusReviewing {
		return 0, fmt.Errorf("%w: blocks can only be approved in %s, item is %s",
			router.ErrIllegalTransition, status.StatusReviewing, item.Status)
	}

	approved := 0
	_, err = e.repo.Update(ctx, itemID, item.Status, func(w *workitem.WorkItem) error {
		approved = 0
		for i := range w.Blocks {
			if w.Blocks[i].Status.CanAdvanceTo(workitem.BlockApproved) {
				w.Blocks[i].Status = workitem.BlockApproved
				approved++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return approved, nil
}

// AttachAsset uploads the image for an image block to the publishing target
// and records the resulting asset on the block. The work item status is not
// changed.
func (e *Executor) AttachAsset(ctx context.Context, itemID string, blockIndex int, data []byte, contentType string) (*workitem.Block, error) {
	unlock := e.locks.Lock(itemID)
	defer unlock()

	item, err := e.repo.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if blockIndex < 0 || blockIndex >= len(item.Blocks) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrBlockNotFound, blockIndex, len(item.Blocks))
	}
	block := item.Blocks[blockIndex]
	if block.Type != workitem.BlockImage {
		return nil, fmt.Errorf("%w: index %d is %s", ErrNotImageBlock, blockIndex, block.Type)
	}
	if e.publisher == nil {
		return nil, errNoPublisher
	}

	filename := block.ImageFile
	if filename == "" {
		filename = imageFilename(block.Heading)
	}
	asset, err := e.publisher.UploadAsset(ctx, e.target, data, publishing.AssetMeta{
		Filename:    filename,
		ContentType: contentType,
		AltText:     block.ImageAlt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload asset: %w", err)
	}

	updated, err := e.repo.Update(ctx, itemID, item.Status, func(w *workitem.WorkItem) error {
		w.Blocks[blockIndex].AssetID = asset.ID
		w.Blocks[blockIndex].ImageURL = asset.URL
		if w.Blocks[blockIndex].ImageFile == "" {
			w.Blocks[blockIndex].ImageFile = filename
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("asset attached", "item", itemID, "block", blockIndex, "asset", asset.ID)
	b := updated.Blocks[blockIndex]
	return &b, nil
}
