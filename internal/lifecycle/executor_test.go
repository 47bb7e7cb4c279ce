package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/completion"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/config"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/publishing"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/store"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

const (
	analyzeJSON = `{"analysis":{"search_intent":"informational","audience":"home gardeners","summary":"How to start a vegetable garden"},"titles":["Guide du potager"]}`
	planJSON    = "```json\n" + `{"blocks":[
		{"type":"h2","heading":"Introduction","directive":"Set the scene"},
		{"type":"paragraph","heading":"Sol","directive":"Explain soil"},
		{"type":"h2","heading":"Arrosage","directive":"Watering"},
		{"type":"image","heading":"Potager","image_prompt":"a raised vegetable bed"},
		{"type":"paragraph","heading":"Conclusion","directive":"Wrap up"}
	],"links":[{"url":"https://example.com/compost","anchor":"compost"}]}` + "\n```"
	mediaJSON = `{"images":[{"index":3,"alt":"Un potager en carre","filename":"Potager Carre.png"}]}`
	seoJSON   = `Here you go: {"meta_description":"Everything you need to start a vegetable garden.","score":82}`
	blockText = "Start small and grow what you eat."
)

type fixture struct {
	repo *store.BoltRepository
	ai   *completion.MockService
	pub  *publishing.MockService
	cfg  *config.Config
	exec *Executor
}

// scripted answers every step with a valid reply.
func scripted(req completion.Request) (*completion.Response, error) {
	var content string
	switch router.Step(req.Task) {
	case router.StepAnalyze, router.StepRefresh:
		content = analyzeJSON
	case router.StepPlan:
		content = planJSON
	case router.StepWriteBlock:
		content = blockText
	case router.StepMedia:
		content = mediaJSON
	case router.StepSEOCheck:
		content = seoJSON
	default:
		return nil, fmt.Errorf("unexpected task %s", req.Task)
	}
	return &completion.Response{Content: content, TokensIn: 1000, TokensOut: 500, Model: req.Model}, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := store.Open(filepath.Join(t.TempDir(), "seopipe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	tick := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})

	cfg := config.DefaultConfig()
	cfg.AI.DefaultModel = "gpt-4o-mini"
	cfg.SEO.Rules = []string{"block_count == 5", "images_with_alt == image_count"}

	f := &fixture{
		repo: repo,
		ai:   &completion.MockService{Handler: scripted},
		pub:  &publishing.MockService{BaseURL: "https://blog.example.com"},
		cfg:  cfg,
	}
	f.exec = NewExecutor(repo, f.ai, f.pub, cfg)
	f.exec.SetTarget(publishing.Target{BaseURL: "https://blog.example.com", Username: "editor", AppPassword: "secret"})
	return f
}

func (f *fixture) seed(t *testing.T, item *workitem.WorkItem) *workitem.WorkItem {
	t.Helper()
	if item.Title == "" {
		item.Title = "Guide du potager"
	}
	if item.Keyword == "" {
		item.Keyword = "potager"
	}
	created, err := f.repo.Create(context.Background(), item)
	require.NoError(t, err)
	return created
}

func (f *fixture) get(t *testing.T, id string) *workitem.WorkItem {
	t.Helper()
	item, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return item
}

func (f *fixture) runs(t *testing.T, id string) []workitem.RunRecord {
	t.Helper()
	runs, err := f.repo.QueryRuns(context.Background(), workitem.RunFilter{WorkItemID: id})
	require.NoError(t, err)
	return runs
}

func analysis() *workitem.Analysis {
	return &workitem.Analysis{SearchIntent: "informational", Summary: "How to start"}
}

func pendingBlocks(headings ...string) []workitem.Block {
	blocks := make([]workitem.Block, 0, len(headings))
	for _, h := range headings {
		blocks = append(blocks, workitem.Block{Type: workitem.BlockH2, Heading: h, Status: workitem.BlockPending})
	}
	return blocks
}

func intPtr(i int) *int { return &i }

func TestHandlers_CoverEveryStep(t *testing.T) {
	handlers := newHandlers()

	assert.Len(t, handlers, len(router.Steps()))
	for _, step := range router.Steps() {
		_, ok := handlers[step]
		assert.True(t, ok, "no handler for step %s", step)
	}
}

func TestExecuteStep_AppendsOneRunPerCall(t *testing.T) {
	tests := []struct {
		name        string
		item        *workitem.WorkItem
		step        router.Step
		opts        Options
		ai          func(completion.Request) (*completion.Response, error)
		wantSuccess bool
		wantStatus  status.Status
	}{
		{
			name:        "analyze succeeds",
			item:        &workitem.WorkItem{},
			step:        router.StepAnalyze,
			wantSuccess: true,
			wantStatus:  status.StatusAnalyzing,
		},
		{
			name:       "illegal step for status",
			item:       &workitem.WorkItem{},
			step:       router.StepPublish,
			wantStatus: status.StatusDraft,
		},
		{
			name:       "unknown step",
			item:       &workitem.WorkItem{},
			step:       router.Step("translate"),
			wantStatus: status.StatusDraft,
		},
		{
			name: "malformed model output",
			item: &workitem.WorkItem{},
			step: router.StepAnalyze,
			ai: func(req completion.Request) (*completion.Response, error) {
				return &completion.Response{Content: "sorry, no idea", Model: req.Model}, nil
			},
			wantStatus: status.StatusDraft,
		},
		{
			name: "completion timeout",
			item: &workitem.WorkItem{Status: status.StatusAnalyzing, Analysis: analysis()},
			step: router.StepPlan,
			ai: func(completion.Request) (*completion.Response, error) {
				return nil, completion.ErrTimeout
			},
			wantStatus: status.StatusAnalyzing,
		},
		{
			name:       "write-block without index",
			item:       &workitem.WorkItem{Status: status.StatusPlanning, Blocks: pendingBlocks("a")},
			step:       router.StepWriteBlock,
			wantStatus: status.StatusPlanning,
		},
		{
			name:       "media with pending blocks",
			item:       &workitem.WorkItem{Status: status.StatusWriting, Blocks: pendingBlocks("a")},
			step:       router.StepMedia,
			wantStatus: status.StatusWriting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.ai != nil {
				f.ai.Handler = tt.ai
			}
			item := f.seed(t, tt.item)

			res, err := f.exec.ExecuteStep(context.Background(), item.ID, tt.step, tt.opts)
			require.NoError(t, err)

			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.NotEmpty(t, res.RunID)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantStatus, f.get(t, item.ID).Status)

			runs := f.runs(t, item.ID)
			require.Len(t, runs, 1)
			assert.Equal(t, res.RunID, runs[0].ID)
			assert.Equal(t, string(tt.step), runs[0].Step)
			if tt.wantSuccess {
				assert.Equal(t, workitem.OutcomeSuccess, runs[0].Outcome)
				assert.Empty(t, res.Error)
			} else {
				assert.Equal(t, workitem.OutcomeError, runs[0].Outcome)
				assert.NotEmpty(t, res.Error)
				assert.Equal(t, res.Error, runs[0].Error)
			}
		})
	}
}

func TestExecuteStep_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.exec.ExecuteStep(context.Background(), "missing", router.StepAnalyze, Options{})
	assert.True(t, errors.Is(err, workitem.ErrNotFound))

	all, err := f.repo.QueryRuns(context.Background(), workitem.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestExecuteStep_BlockOutOfRange(t *testing.T) {
	f := newFixture(t)
	item := f.seed(t, &workitem.WorkItem{Status: status.StatusPlanning, Blocks: pendingBlocks("a", "b")})

	for _, idx := range []int{-1, 2, 10} {
		_, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepWriteBlock, Options{BlockIndex: intPtr(idx)})
		assert.True(t, errors.Is(err, ErrBlockNotFound), "index %d", idx)
	}
	assert.Empty(t, f.runs(t, item.ID))
	assert.Zero(t, f.ai.CallCount())
}

func TestExecuteStep_Analyze(t *testing.T) {
	f := newFixture(t)
	item := f.seed(t, &workitem.WorkItem{})

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepAnalyze, Options{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	assert.Equal(t, 1000, res.TokensIn)
	assert.Equal(t, 500, res.TokensOut)
	// gpt-4o-mini: 0.15 in / 0.60 out per million tokens.
	assert.InDelta(t, 0.00045, res.CostUSD, 1e-9)

	got := f.get(t, item.ID)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, "informational", got.Analysis.SearchIntent)
	require.NotNil(t, got.Titles)
	assert.Equal(t, []string{"Guide du potager"}, got.Titles.Candidates)

	runs := f.runs(t, item.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, "gpt-4o-mini", runs[0].Model)
	assert.InDelta(t, res.CostUSD, runs[0].CostUSD, 1e-9)

	reqs := f.ai.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].JSON)
	assert.Contains(t, reqs[0].Messages[0].Content, "potager")
	assert.NotEmpty(t, reqs[0].System)
}

func TestExecuteStep_ModelOverride(t *testing.T) {
	f := newFixture(t)
	f.cfg.Steps["analyze"] = config.StepConfig{
		System: f.cfg.Steps["analyze"].System,
		Prompt: f.cfg.Steps["analyze"].Prompt,
		Model:  "deepseek-chat",
	}
	item := f.seed(t, &workitem.WorkItem{})

	_, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepAnalyze, Options{})
	require.NoError(t, err)
	_, err = f.exec.ExecuteStep(context.Background(), item.ID, router.StepAnalyze, Options{ModelOverride: "gpt-4o"})
	require.NoError(t, err)

	reqs := f.ai.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "deepseek-chat", reqs[0].Model)
	assert.Equal(t, "gpt-4o", reqs[1].Model)
}

func TestExecuteStep_FailureKeepsPartialCost(t *testing.T) {
	f := newFixture(t)
	f.ai.Handler = func(req completion.Request) (*completion.Response, error) {
		return &completion.Response{Content: `{"titles":[]}`, TokensIn: 2000, TokensOut: 100, Model: req.Model}, nil
	}
	item := f.seed(t, &workitem.WorkItem{})

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepAnalyze, Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 2000, res.TokensIn)
	assert.Greater(t, res.CostUSD, 0.0)

	runs := f.runs(t, item.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, workitem.OutcomeError, runs[0].Outcome)
	assert.Equal(t, 2000, runs[0].TokensIn)
	assert.Nil(t, f.get(t, item.ID).Analysis)
}

func TestExecuteStep_IllegalStepMakesNoCall(t *testing.T) {
	f := newFixture(t)
	item := f.seed(t, &workitem.WorkItem{})

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepSEOCheck, Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "illegal transition")
	assert.Zero(t, res.TokensIn)
	assert.Zero(t, res.CostUSD)
	assert.Zero(t, f.ai.CallCount())
}

func TestExecuteStep_Plan(t *testing.T) {
	f := newFixture(t)
	item := f.seed(t, &workitem.WorkItem{
		Status:   status.StatusAnalyzing,
		Analysis: analysis(),
		Blocks:   []workitem.Block{{Type: workitem.BlockH2, Heading: "old", Status: workitem.BlockWritten}},
	})

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepPlan, Options{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, status.StatusPlanning, res.Status)

	got := f.get(t, item.ID)
	require.Len(t, got.Blocks, 5)
	ids := map[string]bool{}
	for _, b := range got.Blocks {
		assert.Equal(t, workitem.BlockPending, b.Status)
		assert.NotEmpty(t, b.ID)
		ids[b.ID] = true
	}
	assert.Len(t, ids, 5)
	assert.Equal(t, workitem.BlockImage, got.Blocks[3].Type)
	assert.Equal(t, "a raised vegetable bed", got.Blocks[3].ImagePrompt)
	require.NotNil(t, got.Links)
	assert.Equal(t, "https://example.com/compost", got.Links.Links[0].URL)
}

func TestExecuteStep_PlanRejectsUnknownBlockType(t *testing.T) {
	f := newFixture(t)
	f.ai.Handler = func(req completion.Request) (*completion.Response, error) {
		return &completion.Response{Content: `{"blocks":[{"type":"table"}]}`, Model: req.Model}, nil
	}
	item := f.seed(t, &workitem.WorkItem{Status: status.StatusAnalyzing, Analysis: analysis()})

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepPlan, Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, f.get(t, item.ID).Blocks)
}

func TestExecuteStep_WriteBlock(t *testing.T) {
	f := newFixture(t)
	blocks := pendingBlocks("Introduction", "Sol", "Arrosage")
	blocks[0].Status = workitem.BlockWritten
	blocks[0].Content = "Already here."
	item := f.seed(t, &workitem.WorkItem{Status: status.StatusPlanning, Analysis: analysis(), Blocks: blocks})

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepWriteBlock, Options{BlockIndex: intPtr(2)})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, status.StatusWriting, res.Status)

	got := f.get(t, item.ID)
	assert.Equal(t, workitem.BlockWritten, got.Blocks[2].Status)
	assert.Equal(t, blockText, got.Blocks[2].Content)
	assert.Equal(t, 7, got.Blocks[2].WordCount)
	assert.Equal(t, "gpt-4o-mini", got.Blocks[2].Model)

	// Other blocks are untouched.
	assert.Equal(t, "Already here.", got.Blocks[0].Content)
	assert.Equal(t, workitem.BlockPending, got.Blocks[1].Status)

	runs := f.runs(t, item.ID)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].BlockIndex)
	assert.Equal(t, 2, *runs[0].BlockIndex)

	prompt := f.ai.Requests()[0].Messages[0].Content
	assert.Contains(t, prompt, "Introduction")
	assert.NotContains(t, prompt, "Sol")
	assert.False(t, f.ai.Requests()[0].JSON)
}

func TestExecuteStep_WriteBlockRejectsApproved(t *testing.T) {
	f := newFixture(t)
	blocks := pendingBlocks("a")
	blocks[0].Status = workitem.BlockApproved
	item := f.seed(t, &workitem.WorkItem{Status: status.StatusWriting, Blocks: blocks})

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepWriteBlock, Options{BlockIndex: intPtr(0)})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, f.ai.CallCount())
}

func TestExecuteStep_WriteBlockEmptyOutput(t *testing.T) {
	f := newFixture(t)
	f.ai.Handler = func(req completion.Request) (*completion.Response, error) {
		return &completion.Response{Content: "  \n", TokensIn: 10, Model: req.Model}, nil
	}
	item := f.seed(t, &workitem.WorkItem{Status: status.StatusPlanning, Blocks: pendingBlocks("a")})

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepWriteBlock, Options{BlockIndex: intPtr(0)})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, status.StatusPlanning, f.get(t, item.ID).Status)
	assert.Equal(t, workitem.BlockPending, f.get(t, item.ID).Blocks[0].Status)
}

func writtenItem(st status.Status) *workitem.WorkItem {
	blocks := []workitem.Block{
		{Type: workitem.BlockH2, Heading: "Introduction", Content: "Intro words here.", WordCount: 3, Status: workitem.BlockWritten},
		{Type: workitem.BlockParagraph, Heading: "Sol", Content: "Soil words.", WordCount: 2, Status: workitem.BlockWritten},
		{Type: workitem.BlockH2, Heading: "Arrosage", Content: "Water often.", WordCount: 2, Status: workitem.BlockWritten},
		{Type: workitem.BlockImage, Heading: "Potager", ImagePrompt: "a raised bed", Status: workitem.BlockWritten},
		{Type: workitem.BlockParagraph, Heading: "Conclusion", Content: "Enjoy.", WordCount: 1, Status: workitem.BlockWritten},
	}
	return &workitem.WorkItem{Status: st, Analysis: analysis(), Blocks: blocks}
}

func TestExecuteStep_Media(t *testing.T) {
	f := newFixture(t)
	item := f.seed(t, writtenItem(status.StatusWriting))

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepMedia, Options{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, status.StatusMedia, res.Status)

	got := f.get(t, item.ID)
	assert.Equal(t, "Un potager en carre", got.Blocks[3].ImageAlt)
	assert.Equal(t, "potager-carre.png", got.Blocks[3].ImageFile)
	assert.Contains(t, f.ai.Requests()[0].Messages[0].Content, "[3] a raised bed")
}

func TestExecuteStep_MediaWithoutImagesSkipsCall(t *testing.T) {
	f := newFixture(t)
	item := f.seed(t, &workitem.WorkItem{
		Status: status.StatusWriting,
		Blocks: []workitem.Block{{Type: workitem.BlockH2, Heading: "a", Status: workitem.BlockWritten}},
	})

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepMedia, Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.TokensIn)
	assert.Zero(t, f.ai.CallCount())
	assert.Len(t, f.runs(t, item.ID), 1)
}

func TestExecuteStep_MediaMissingImage(t *testing.T) {
	f := newFixture(t)
	f.ai.Handler = func(req completion.Request) (*completion.Response, error) {
		return &completion.Response{Content: `{"images":[{"index":0,"alt":"x","filename":"x"}]}`, Model: req.Model}, nil
	}
	item := f.seed(t, writtenItem(status.StatusWriting))

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepMedia, Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "image block")
	assert.Empty(t, f.get(t, item.ID).Blocks[3].ImageAlt)
}

func TestImageFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Potager Carre.png", want: "potager-carre.png"},
		{in: "jardin-été", want: "jardin-ete.webp"},
		{in: "photo.JPG", want: "photo.jpg"},
		{in: "scan.tiff", want: "scan.webp"},
		{in: "", want: "image.webp"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, imageFilename(tt.in))
		})
	}
}

func TestExecuteStep_SEOCheck(t *testing.T) {
	tests := []struct {
		name       string
		rules      []string
		wantStatus status.Status
		wantFailed []string
	}{
		{
			name:       "rules pass",
			rules:      []string{"block_count == 5", "meta_description_length > 20"},
			wantStatus: status.StatusReviewing,
		},
		{
			name:       "rules fail",
			rules:      []string{"block_count == 5", "word_count >= 800"},
			wantStatus: status.StatusSEOCheck,
			wantFailed: []string{"word_count >= 800"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.cfg.SEO.Rules = tt.rules
			item := f.seed(t, writtenItem(status.StatusMedia))

			res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepSEOCheck, Options{})
			require.NoError(t, err)
			require.True(t, res.Success, res.Error)
			assert.Equal(t, tt.wantStatus, res.Status)

			got := f.get(t, item.ID)
			require.NotNil(t, got.SEO)
			assert.Equal(t, "Everything you need to start a vegetable garden.", got.SEO.MetaDescription)
			assert.Equal(t, 82, got.SEO.Score)
			assert.Equal(t, tt.wantFailed, got.SEO.Failed)
			assert.False(t, got.SEO.CheckedAt.IsZero())
		})
	}
}

func TestExecuteStep_SEOCheckInvalidRule(t *testing.T) {
	f := newFixture(t)
	f.cfg.SEO.Rules = []string{"word_count >="}
	item := f.seed(t, writtenItem(status.StatusMedia))

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepSEOCheck, Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, f.ai.CallCount())
	assert.Equal(t, status.StatusMedia, f.get(t, item.ID).Status)
}

func TestExecuteStep_Publish(t *testing.T) {
	f := newFixture(t)
	item := f.seed(t, writtenItem(status.StatusReviewing))

	res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepPublish, Options{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, status.StatusPublished, res.Status)
	assert.Zero(t, res.CostUSD)

	got := f.get(t, item.ID)
	assert.Equal(t, "1", got.ExternalID)
	assert.Equal(t, "https://blog.example.com/guide-du-potager", got.ExternalURL)

	require.Len(t, f.pub.Contents, 1)
	assert.Equal(t, "draft", f.pub.Contents[0].Status)
	assert.Empty(t, f.pub.Contents[0].ExternalID)
	assert.Contains(t, f.pub.Contents[0].HTML, "<h2>Introduction</h2>")

	// Publishing again updates the same post.
	res, err = f.exec.ExecuteStep(context.Background(), item.ID, router.StepPublish, Options{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	require.Len(t, f.pub.Contents, 2)
	assert.Equal(t, "1", f.pub.Contents[1].ExternalID)
	assert.Equal(t, "1", f.get(t, item.ID).ExternalID)
}

func TestExecuteStep_PublishFailures(t *testing.T) {
	tests := []struct {
		name   string
		target publishing.Target
		err    error
	}{
		{name: "missing credentials", target: publishing.Target{BaseURL: "https://blog.example.com"}},
		{name: "relative url", target: publishing.Target{BaseURL: "blog", Username: "u", AppPassword: "p"}},
		{
			name:   "target unreachable",
			target: publishing.Target{BaseURL: "https://blog.example.com", Username: "u", AppPassword: "p"},
			err:    errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.exec.SetTarget(tt.target)
			f.pub.Err = tt.err
			item := f.seed(t, writtenItem(status.StatusReviewing))

			res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepPublish, Options{})
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, status.StatusReviewing, f.get(t, item.ID).Status)
			assert.Len(t, f.runs(t, item.ID), 1)
		})
	}
}

func TestExecuteStep_Refresh(t *testing.T) {
	tests := []struct {
		name   string
		target status.Status
		want   status.Status
	}{
		{name: "default target", want: status.StatusAnalyzing},
		{name: "configured target", target: status.StatusPlanning, want: status.StatusPlanning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r, err := router.NewRouter(router.WithRefreshTarget(tt.target))
			require.NoError(t, err)
			f.exec.SetRouter(r)

			item := writtenItem(status.StatusRefreshNeeded)
			item.ExternalURL = "https://blog.example.com/guide"
			item = f.seed(t, item)

			res, err := f.exec.ExecuteStep(context.Background(), item.ID, router.StepRefresh, Options{})
			require.NoError(t, err)
			require.True(t, res.Success, res.Error)
			assert.Equal(t, tt.want, f.get(t, item.ID).Status)
			assert.Contains(t, f.ai.Requests()[0].Messages[0].Content, "https://blog.example.com/guide")
		})
	}
}

// conflictRepo loses every conditional update and has no atomic commit.
type conflictRepo struct {
	Repository
}

func (conflictRepo) Update(context.Context, string, status.Status, store.MutateFunc) (*workitem.WorkItem, error) {
	return nil, workitem.ErrConflict
}

func TestExecuteStep_ConflictIsRecordedAsFailure(t *testing.T) {
	f := newFixture(t)
	item := f.seed(t, &workitem.WorkItem{})
	exec := NewExecutor(conflictRepo{f.repo}, f.ai, f.pub, f.cfg)

	res, err := exec.ExecuteStep(context.Background(), item.ID, router.StepAnalyze, Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "concurrently")

	runs := f.runs(t, item.ID)
	require.Len(t, runs, 1)
	assert.Equal(t, workitem.OutcomeError, runs[0].Outcome)
	assert.Equal(t, status.StatusDraft, f.get(t, item.ID).Status)
}

// lossyLedgerRepo applies updates but cannot write run records.
type lossyLedgerRepo struct {
	Repository
}

func (lossyLedgerRepo) AppendRun(context.Context, workitem.RunRecord) (string, error) {
	return "", errors.New("disk full")
}

func TestExecuteStep_LostRunRecordKeepsStatus(t *testing.T) {
	f := newFixture(t)
	item := f.seed(t, &workitem.WorkItem{})
	exec := NewExecutor(lossyLedgerRepo{f.repo}, f.ai, f.pub, f.cfg)

	res, err := exec.ExecuteStep(context.Background(), item.ID, router.StepAnalyze, Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.RunID)
	assert.Equal(t, status.StatusAnalyzing, f.get(t, item.ID).Status)
}

func TestExecuteStep_FailedLedgerWritePropagates(t *testing.T) {
	f := newFixture(t)
	item := f.seed(t, &workitem.WorkItem{})
	exec := NewExecutor(lossyLedgerRepo{f.repo}, f.ai, f.pub, f.cfg)

	_, err := exec.ExecuteStep(context.Background(), item.ID, router.StepPublish, Options{})
	assert.Error(t, err)
}

func TestExecuteStep_PlanThenWriteAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seed(t, &workitem.WorkItem{})

	res, err := f.exec.ExecuteStep(ctx, item.ID, router.StepAnalyze, Options{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	res, err = f.exec.ExecuteStep(ctx, item.ID, router.StepPlan, Options{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, status.StatusPlanning, res.Status)

	got := f.get(t, item.ID)
	require.Len(t, got.Blocks, 5)
	assert.Len(t, got.PendingIndexes(), 5)
	assert.Len(t, f.runs(t, item.ID), 2)

	batch, err := f.exec.WriteAllPending(ctx, item.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, batch.TotalBlocks)
	assert.Equal(t, 5, batch.PendingBlocks)
	assert.Equal(t, 5, batch.WrittenCount)
	assert.Equal(t, 0, batch.ErrorCount)
	assert.Equal(t, 5000, batch.TotalTokensIn)
	assert.Equal(t, 2500, batch.TotalTokensOut)
	assert.InDelta(t, 5*0.00045, batch.TotalCostUSD, 1e-9)

	assert.Len(t, f.runs(t, item.ID), 7)
	got = f.get(t, item.ID)
	assert.Equal(t, status.StatusWriting, got.Status)
	assert.Empty(t, got.PendingIndexes())
}

func TestExecuteStep_PlanFromDraftThenWriteAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seed(t, &workitem.WorkItem{})

	res, err := f.exec.ExecuteStep(ctx, item.ID, router.StepPlan, Options{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, status.StatusPlanning, res.Status)

	got := f.get(t, item.ID)
	assert.Nil(t, got.Analysis)
	require.Len(t, got.Blocks, 5)
	assert.Len(t, got.PendingIndexes(), 5)
	assert.Len(t, f.runs(t, item.ID), 1)

	batch, err := f.exec.WriteAllPending(ctx, item.ID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, batch.PendingBlocks)
	assert.Equal(t, 5, batch.WrittenCount)
	assert.Equal(t, 0, batch.ErrorCount)

	assert.Len(t, f.runs(t, item.ID), 6)
	assert.Equal(t, status.StatusWriting, f.get(t, item.ID).Status)
}
