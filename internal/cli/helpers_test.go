package cli

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/completion"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/config"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/ledger"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/lifecycle"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/logging"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/output"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/publishing"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/store"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

const (
	analyzeReply = `{"analysis":{"search_intent":"informational","audience":"gardeners","summary":"Start a garden"},"titles":["Guide du potager"]}`
	planReply    = `{"blocks":[{"type":"h2","heading":"Intro","directive":"Set the scene"},{"type":"paragraph","heading":"Sol","directive":"Explain soil"}]}`
	seoReply     = `{"meta_description":"Everything you need to start a vegetable garden this spring.","score":80}`
	blockReply   = "Start small and grow what you eat."
)

// reply answers every AI step with a valid reply.
func reply(req completion.Request) (*completion.Response, error) {
	var content string
	switch router.Step(req.Task) {
	case router.StepAnalyze, router.StepRefresh:
		content = analyzeReply
	case router.StepPlan:
		content = planReply
	case router.StepWriteBlock:
		content = blockReply
	case router.StepSEOCheck:
		content = seoReply
	default:
		return nil, fmt.Errorf("unexpected task %s", req.Task)
	}
	return &completion.Response{Content: content, TokensIn: 1000, TokensOut: 500, Model: req.Model}, nil
}

// testApp is an App backed by a temporary store and mock services.
type testApp struct {
	*App
	out  *bytes.Buffer
	repo *store.BoltRepository
	ai   *completion.MockService
	pub  *publishing.MockService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	repo, err := store.Open(filepath.Join(t.TempDir(), "seopipe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	cfg := config.DefaultConfig()
	cfg.AI.DefaultModel = "gpt-4o-mini"
	cfg.SEO.Rules = []string{"block_count == 2"}
	cfg.Publishing.BaseURL = "https://blog.example.com"
	cfg.Publishing.Username = "editor"
	cfg.Publishing.AppPassword = "secret"

	ta := &testApp{
		out:  &bytes.Buffer{},
		repo: repo,
		ai:   &completion.MockService{Handler: reply},
		pub:  &publishing.MockService{BaseURL: "https://blog.example.com"},
	}
	ta.App = &App{
		Config:   cfg,
		Items:    repo,
		Executor: lifecycle.NewExecutor(repo, ta.ai, ta.pub, cfg),
		Costs:    ledger.NewAggregator(repo),
		Printer:  output.NewPrinterWithWriter(ta.out),
		Logger:   logging.Nop(),
	}
	return ta
}

// execute runs the command line args against the app.
func (a *testApp) execute(args ...string) ExecuteResult {
	rootCmd := NewRootCommand(a.App)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.out)
	rootCmd.SetArgs(args)
	return run(rootCmd)
}

func (a *testApp) seed(t *testing.T, item *workitem.WorkItem) *workitem.WorkItem {
	t.Helper()
	if item.Title == "" {
		item.Title = "Guide du potager"
	}
	if item.Keyword == "" {
		item.Keyword = "potager"
	}
	created, err := a.repo.Create(context.Background(), item)
	require.NoError(t, err)
	return created
}

func (a *testApp) get(t *testing.T, id string) *workitem.WorkItem {
	t.Helper()
	item, err := a.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return item
}

func (a *testApp) runs(t *testing.T, id string) []workitem.RunRecord {
	t.Helper()
	runs, err := a.repo.QueryRuns(context.Background(), workitem.RunFilter{WorkItemID: id})
	require.NoError(t, err)
	return runs
}

func writtenBlocks() []workitem.Block {
	return []workitem.Block{
		{Type: workitem.BlockH2, Heading: "Intro", Content: blockReply, WordCount: 7, Status: workitem.BlockWritten},
		{Type: workitem.BlockImage, Heading: "Potager", ImagePrompt: "a raised bed", ImageAlt: "Un potager", ImageFile: "potager.webp", Status: workitem.BlockWritten},
	}
}
