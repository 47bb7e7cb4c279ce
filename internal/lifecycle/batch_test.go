package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/completion"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

// failOn returns a completion handler that fails for the block whose
// heading appears in the prompt.
func failOn(heading string, fail func() (*completion.Response, error)) func(completion.Request) (*completion.Response, error) {
	return func(req completion.Request) (*completion.Response, error) {
		if strings.Contains(req.Messages[0].Content, `"`+heading+`"`) {
			return fail()
		}
		return scripted(req)
	}
}

func TestWriteAllPending_FailingBlockContinues(t *testing.T) {
	headings := []string{"Introduction", "Sol", "Arrosage", "Recolte"}

	for k, bad := range headings {
		t.Run(bad, func(t *testing.T) {
			f := newFixture(t)
			f.ai.Handler = failOn(bad, func() (*completion.Response, error) {
				return nil, errors.New("model overloaded")
			})
			item := f.seed(t, &workitem.WorkItem{Status: status.StatusPlanning, Blocks: pendingBlocks(headings...)})

			batch, err := f.exec.WriteAllPending(context.Background(), item.ID, Options{})
			require.NoError(t, err)

			n := len(headings)
			assert.Equal(t, n-1, batch.WrittenCount)
			assert.Equal(t, 1, batch.ErrorCount)
			require.Len(t, batch.Blocks, n)
			assert.False(t, batch.Blocks[k].Success)
			assert.Contains(t, batch.Blocks[k].Error, "model overloaded")

			got := f.get(t, item.ID)
			for i, b := range got.Blocks {
				if i == k {
					assert.Equal(t, workitem.BlockPending, b.Status)
				} else {
					assert.Equal(t, workitem.BlockWritten, b.Status, "block %d", i)
				}
			}
			assert.Len(t, f.runs(t, item.ID), n)
		})
	}
}

func TestWriteAllPending_RecoversPanic(t *testing.T) {
	f := newFixture(t)
	f.ai.Handler = failOn("Boom", func() (*completion.Response, error) {
		panic("provider crashed")
	})
	item := f.seed(t, &workitem.WorkItem{Status: status.StatusPlanning, Blocks: pendingBlocks("Intro", "Boom", "Fin")})

	batch, err := f.exec.WriteAllPending(context.Background(), item.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.WrittenCount)
	assert.Equal(t, 1, batch.ErrorCount)
	assert.Contains(t, batch.Blocks[1].Error, "provider crashed")
	assert.Nil(t, batch.Blocks[1].Result)

	// The item lock was released by the panicking step.
	f.ai.Handler = scripted
	res, err := f.exec.ExecuteStep(context.Background(), item.ID, "write-block", Options{BlockIndex: intPtr(1)})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Error)
	assert.Len(t, f.runs(t, item.ID), 3)
}

func TestWriteAllPending_AllFail(t *testing.T) {
	f := newFixture(t)
	f.ai.Responses = []completion.MockResponse{{Err: completion.ErrTimeout}}
	f.ai.Handler = nil
	item := f.seed(t, &workitem.WorkItem{Status: status.StatusPlanning, Blocks: pendingBlocks("a", "b")})

	batch, err := f.exec.WriteAllPending(context.Background(), item.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, batch.WrittenCount)
	assert.Equal(t, 2, batch.ErrorCount)
	assert.Len(t, batch.Blocks, 2)
	assert.Equal(t, status.StatusPlanning, f.get(t, item.ID).Status)
}

func TestWriteAllPending_Guards(t *testing.T) {
	written := pendingBlocks("a", "b")
	for i := range written {
		written[i].Status = workitem.BlockWritten
	}

	tests := []struct {
		name    string
		item    *workitem.WorkItem
		wantErr error
	}{
		{name: "no blocks", item: &workitem.WorkItem{Status: status.StatusPlanning}, wantErr: ErrNoBlocks},
		{name: "no pending blocks", item: &workitem.WorkItem{Status: status.StatusWriting, Blocks: written}, wantErr: ErrNoPendingBlocks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			item := f.seed(t, tt.item)

			_, err := f.exec.WriteAllPending(context.Background(), item.ID, Options{})
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.Zero(t, f.ai.CallCount())
			assert.Empty(t, f.runs(t, item.ID))
		})
	}
}

func TestWriteAllPending_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.exec.WriteAllPending(context.Background(), "missing", Options{})
	assert.True(t, errors.Is(err, workitem.ErrNotFound))
}

func TestWriteAllPending_SequentialContext(t *testing.T) {
	f := newFixture(t)
	blocks := pendingBlocks("Premier", "Deuxieme", "Troisieme")
	blocks[1].Status = workitem.BlockWritten
	item := f.seed(t, &workitem.WorkItem{Status: status.StatusWriting, Blocks: blocks})

	var progress []string
	f.exec.SetProgressCallback(func(i, total int, label string) {
		progress = append(progress, label)
		assert.Equal(t, 2, total)
	})

	batch, err := f.exec.WriteAllPending(context.Background(), item.ID, Options{ModelOverride: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.PendingBlocks)
	assert.Equal(t, 3, batch.TotalBlocks)
	assert.Equal(t, []int{0, 2}, []int{batch.Blocks[0].Index, batch.Blocks[1].Index})
	assert.Equal(t, []string{"block 0: Premier", "block 2: Troisieme"}, progress)

	reqs := f.ai.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Messages[0].Content, "Sections already written: Deuxieme.")
	// The second write sees the block written just before it.
	assert.Contains(t, reqs[1].Messages[0].Content, "Premier; Deuxieme")
	for _, r := range reqs {
		assert.Equal(t, "gpt-4o", r.Model)
	}
}
