package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/config"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/payload"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/publishing"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/seo"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

// handler implements one pipeline step.
//
// check runs before any external call and must not have side effects. run
// makes at most one external call and returns the update to apply, or a
// domain error together with whatever usage was consumed.
type handler interface {
	check(e *Executor, item *workitem.WorkItem, opts Options) error
	run(ctx context.Context, e *Executor, item *workitem.WorkItem, opts Options) (*updatePlan, usage, error)
}

// newHandlers returns the step table. Every router step has exactly one
// entry.
func newHandlers() map[router.Step]handler {
	return map[router.Step]handler{
		router.StepAnalyze:    analyzeHandler{},
		router.StepPlan:       planHandler{},
		router.StepWriteBlock: writeBlockHandler{},
		router.StepMedia:      mediaHandler{},
		router.StepSEOCheck:   seoCheckHandler{},
		router.StepPublish:    publishHandler{},
		router.StepRefresh:    refreshHandler{},
	}
}

// Domain errors raised by handler preconditions.
var (
	errNoBlockIndex   = errors.New("write-block requires a block index")
	errBlockApproved  = errors.New("block is already approved")
	errPendingBlocks  = errors.New("work item still has pending blocks")
	errEmptyContent   = errors.New("model returned empty content")
	errMissingImages  = errors.New("model output does not cover every image block")
	errNothingToWrite = errors.New("work item has no written blocks")
	errNoPublisher    = errors.New("no publishing service configured")
)

func basePromptData(item *workitem.WorkItem) config.PromptData {
	data := config.PromptData{
		Title:   item.Title,
		Keyword: item.Keyword,
		URL:     item.ExternalURL,
	}
	if item.Analysis != nil {
		data.Summary = item.Analysis.Summary
		data.SearchIntent = item.Analysis.SearchIntent
		data.Audience = item.Analysis.Audience
	}
	return data
}

func requireNoPending(item *workitem.WorkItem) error {
	if n := len(item.PendingIndexes()); n > 0 {
		return fmt.Errorf("%w: %d left", errPendingBlocks, n)
	}
	return nil
}

// analyzeHandler produces the search analysis and title candidates.
type analyzeHandler struct{}

func (analyzeHandler) check(*Executor, *workitem.WorkItem, Options) error { return nil }

func (analyzeHandler) run(ctx context.Context, e *Executor, item *workitem.WorkItem, opts Options) (*updatePlan, usage, error) {
	return analysisStep(ctx, e, router.StepAnalyze, item, opts)
}

// refreshHandler re-analyzes published content and sends it back to the
// configured refresh target.
type refreshHandler struct{}

func (refreshHandler) check(*Executor, *workitem.WorkItem, Options) error { return nil }

func (refreshHandler) run(ctx context.Context, e *Executor, item *workitem.WorkItem, opts Options) (*updatePlan, usage, error) {
	return analysisStep(ctx, e, router.StepRefresh, item, opts)
}

func analysisStep(ctx context.Context, e *Executor, step router.Step, item *workitem.WorkItem, opts Options) (*updatePlan, usage, error) {
	resp, u, err := e.complete(ctx, step, opts, basePromptData(item), true)
	if err != nil {
		return nil, u, err
	}
	var out analyzeOutput
	if err := payload.Decode(resp.Content, &out); err != nil {
		return nil, u, err
	}
	analysis := out.Analysis.toAnalysis()
	titles := &workitem.TitleSuggestions{Candidates: out.Titles}
	return &updatePlan{Apply: func(w *workitem.WorkItem) {
		w.Analysis = analysis
		w.Titles = titles
	}}, u, nil
}

// planHandler replaces the block list with a fresh outline.
type planHandler struct{}

func (planHandler) check(*Executor, *workitem.WorkItem, Options) error { return nil }

func (planHandler) run(ctx context.Context, e *Executor, item *workitem.WorkItem, opts Options) (*updatePlan, usage, error) {
	resp, u, err := e.complete(ctx, router.StepPlan, opts, basePromptData(item), true)
	if err != nil {
		return nil, u, err
	}
	var out planOutput
	if err := payload.Decode(resp.Content, &out); err != nil {
		return nil, u, err
	}

	blocks := make([]workitem.Block, 0, len(out.Blocks))
	for _, pb := range out.Blocks {
		blocks = append(blocks, workitem.Block{
			ID:          uuid.NewString(),
			Type:        workitem.BlockType(pb.Type),
			Heading:     strings.TrimSpace(pb.Heading),
			Directive:   pb.Directive,
			FormatHint:  pb.FormatHint,
			ImagePrompt: pb.ImagePrompt,
			Status:      workitem.BlockPending,
		})
	}
	var links *workitem.LinkSuggestions
	if len(out.Links) > 0 {
		links = &workitem.LinkSuggestions{}
		for _, l := range out.Links {
			links.Links = append(links.Links, workitem.LinkSuggestion{URL: l.URL, Anchor: l.Anchor})
		}
	}

	return &updatePlan{Apply: func(w *workitem.WorkItem) {
		w.Blocks = blocks
		w.Links = links
	}}, u, nil
}

// writeBlockHandler writes the content of a single block.
type writeBlockHandler struct{}

func (writeBlockHandler) check(_ *Executor, item *workitem.WorkItem, opts Options) error {
	if opts.BlockIndex == nil {
		return errNoBlockIndex
	}
	if item.Blocks[*opts.BlockIndex].Status == workitem.BlockApproved {
		return fmt.Errorf("%w: index %d", errBlockApproved, *opts.BlockIndex)
	}
	return nil
}

func (writeBlockHandler) run(ctx context.Context, e *Executor, item *workitem.WorkItem, opts Options) (*updatePlan, usage, error) {
	idx := *opts.BlockIndex
	block := item.Blocks[idx]

	data := basePromptData(item)
	data.BlockType = string(block.Type)
	data.Heading = block.Heading
	data.Directive = block.Directive
	data.FormatHint = block.FormatHint
	if block.Type == workitem.BlockImage && data.Directive == "" {
		data.Directive = block.ImagePrompt
	}
	for i, b := range item.Blocks {
		if i != idx && b.Status != workitem.BlockPending && b.Heading != "" {
			data.PreviousHeadings = append(data.PreviousHeadings, b.Heading)
		}
	}

	resp, u, err := e.complete(ctx, router.StepWriteBlock, opts, data, false)
	if err != nil {
		return nil, u, err
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return nil, u, errEmptyContent
	}

	words := workitem.CountWords(content)
	model := u.Model
	return &updatePlan{Apply: func(w *workitem.WorkItem) {
		b := &w.Blocks[idx]
		b.Content = content
		b.WordCount = words
		b.Model = model
		b.Status = workitem.BlockWritten
	}}, u, nil
}

// mediaHandler fills alt text and filenames for image blocks.
type mediaHandler struct{}

func (mediaHandler) check(_ *Executor, item *workitem.WorkItem, _ Options) error {
	return requireNoPending(item)
}

func (mediaHandler) run(ctx context.Context, e *Executor, item *workitem.WorkItem, opts Options) (*updatePlan, usage, error) {
	data := basePromptData(item)
	for i, b := range item.Blocks {
		if b.Type == workitem.BlockImage {
			data.Images = append(data.Images, config.PromptImage{Index: i, Prompt: b.ImagePrompt})
		}
	}
	if len(data.Images) == 0 {
		return &updatePlan{}, usage{}, nil
	}

	resp, u, err := e.complete(ctx, router.StepMedia, opts, data, true)
	if err != nil {
		return nil, u, err
	}
	var out mediaOutput
	if err := payload.Decode(resp.Content, &out); err != nil {
		return nil, u, err
	}

	byIndex := make(map[int]mediaImage, len(out.Images))
	for _, img := range out.Images {
		byIndex[img.Index] = img
	}
	for _, want := range data.Images {
		if _, ok := byIndex[want.Index]; !ok {
			return nil, u, fmt.Errorf("%w: block %d", errMissingImages, want.Index)
		}
	}

	return &updatePlan{Apply: func(w *workitem.WorkItem) {
		for _, want := range data.Images {
			img := byIndex[want.Index]
			w.Blocks[want.Index].ImageAlt = strings.TrimSpace(img.Alt)
			w.Blocks[want.Index].ImageFile = imageFilename(img.Filename)
		}
	}}, u, nil
}

// imageFilename normalises a model-proposed filename to a slug with an
// image extension, .webp by default.
func imageFilename(name string) string {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".webp", ".jpg", ".jpeg", ".png", ".gif", ".avif":
	default:
		ext = ".webp"
	}
	base := publishing.Slugify(strings.TrimSuffix(name, path.Ext(name)))
	if base == "" {
		base = "image"
	}
	return base + ext
}

// seoCheckHandler drafts the meta description and evaluates the SEO rules.
// A clean report moves the item to review; violations keep it at seo_check.
type seoCheckHandler struct{}

func (seoCheckHandler) check(e *Executor, item *workitem.WorkItem, _ Options) error {
	if err := requireNoPending(item); err != nil {
		return err
	}
	return seo.Validate(e.cfg.SEO.Rules)
}

const excerptLength = 600

func (seoCheckHandler) run(ctx context.Context, e *Executor, item *workitem.WorkItem, opts Options) (*updatePlan, usage, error) {
	data := basePromptData(item)
	var body strings.Builder
	for _, b := range item.Blocks {
		if b.Heading != "" {
			data.PreviousHeadings = append(data.PreviousHeadings, b.Heading)
		}
		if b.Content != "" && body.Len() < excerptLength {
			body.WriteString(b.Content)
			body.WriteString("\n")
		}
	}
	if body.Len() == 0 {
		return nil, usage{}, errNothingToWrite
	}
	data.Excerpt = truncateRunes(body.String(), excerptLength)

	resp, u, err := e.complete(ctx, router.StepSEOCheck, opts, data, true)
	if err != nil {
		return nil, u, err
	}
	var out seoOutput
	if err := payload.Decode(resp.Content, &out); err != nil {
		return nil, u, err
	}

	meta := strings.TrimSpace(out.MetaDescription)
	report, err := seo.Evaluate(e.cfg.SEO.Rules, seo.BuildEnv(item, meta))
	if err != nil {
		return nil, u, err
	}

	next := status.StatusReviewing
	if !report.OK() {
		next = status.StatusSEOCheck
	}
	checkedAt := e.now().UTC()
	return &updatePlan{Next: next, Apply: func(w *workitem.WorkItem) {
		w.SEO = &workitem.SEOReport{
			MetaDescription: meta,
			Score:           out.Score,
			Passed:          report.Passed,
			Failed:          report.Failed,
			CheckedAt:       checkedAt,
		}
	}}, u, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}

// publishHandler publishes the rendered article, updating the existing post
// when the item was published before.
type publishHandler struct{}

func (publishHandler) check(e *Executor, item *workitem.WorkItem, _ Options) error {
	if e.publisher == nil {
		return errNoPublisher
	}
	if err := e.target.Validate(); err != nil {
		return err
	}
	return requireNoPending(item)
}

func (publishHandler) run(ctx context.Context, e *Executor, item *workitem.WorkItem, _ Options) (*updatePlan, usage, error) {
	content, err := publishing.Render(item)
	if err != nil {
		return nil, usage{}, err
	}
	content.ExternalID = item.ExternalID
	content.Status = e.cfg.Publishing.PostStatus

	published, err := e.publisher.CreateOrUpdateContent(ctx, e.target, content)
	if err != nil {
		return nil, usage{}, err
	}
	return &updatePlan{Apply: func(w *workitem.WorkItem) {
		w.ExternalID = published.ExternalID
		w.ExternalURL = published.URL
	}}, usage{}, nil
}
