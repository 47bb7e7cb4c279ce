// Package workitem defines the content entities that move through the
// pipeline: [WorkItem], its ordered [Block] list, the typed step payloads
// attached to it, and the immutable [RunRecord] ledger entry.
package workitem

import (
	"strings"
	"time"
	"unicode"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
)

// BlockType tags the kind of content a block holds.
type BlockType string

// Block types.
const (
	BlockH2        BlockType = "h2"
	BlockH3        BlockType = "h3"
	BlockParagraph BlockType = "paragraph"
	BlockList      BlockType = "list"
	BlockFAQ       BlockType = "faq"
	BlockCallout   BlockType = "callout"
	BlockImage     BlockType = "image"
)

// IsValid returns true if t is a known block type.
func (t BlockType) IsValid() bool {
	switch t {
	case BlockH2, BlockH3, BlockParagraph, BlockList, BlockFAQ, BlockCallout, BlockImage:
		return true
	}
	return false
}

// BlockStatus is the sub-status of a block.
type BlockStatus string

// Block sub-statuses. They only ever advance pending → written → approved.
const (
	BlockPending  BlockStatus = "pending"
	BlockWritten  BlockStatus = "written"
	BlockApproved BlockStatus = "approved"
)

// CanAdvanceTo reports whether a block at s may move to next.
func (s BlockStatus) CanAdvanceTo(next BlockStatus) bool {
	switch s {
	case BlockPending:
		return next == BlockWritten
	case BlockWritten:
		return next == BlockApproved
	}
	return false
}

// Block is an ordered unit of content within a work item.
type Block struct {
	ID        string      `json:"id"`
	Type      BlockType   `json:"type"`
	Heading   string      `json:"heading,omitempty"`
	Content   string      `json:"content,omitempty"`
	WordCount int         `json:"word_count"`
	Model     string      `json:"model,omitempty"`
	Status    BlockStatus `json:"status"`

	// Directive tells the writer what the block must cover.
	Directive string `json:"directive,omitempty"`

	// FormatHint is a short formatting instruction (e.g. "bullet list, 5 items").
	FormatHint string `json:"format_hint,omitempty"`

	// ImagePrompt describes the image to produce for image blocks.
	ImagePrompt string `json:"image_prompt,omitempty"`

	// ImageAlt and ImageFile are filled by the media step.
	ImageAlt  string `json:"image_alt,omitempty"`
	ImageFile string `json:"image_file,omitempty"`

	// AssetID and ImageURL identify the uploaded image on the publishing target.
	AssetID  string `json:"asset_id,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Analysis is the payload owned by the analyze and refresh steps.
type Analysis struct {
	SearchIntent string   `json:"search_intent"`
	Audience     string   `json:"audience"`
	Competitors  []string `json:"competitors,omitempty"`
	ContentGaps  []string `json:"content_gaps,omitempty"`
	Entities     []string `json:"entities,omitempty"`
	Summary      string   `json:"summary"`
}

// TitleSuggestions is the payload of title candidates produced by analyze.
type TitleSuggestions struct {
	Candidates []string `json:"candidates"`
	Selected   string   `json:"selected,omitempty"`
}

// LinkSuggestion is a single external or internal link candidate.
type LinkSuggestion struct {
	URL    string `json:"url"`
	Anchor string `json:"anchor"`
}

// LinkSuggestions is the payload of link candidates produced by plan.
type LinkSuggestions struct {
	Links []LinkSuggestion `json:"links"`
}

// SEOReport is the payload produced by seo-check.
type SEOReport struct {
	MetaDescription string    `json:"meta_description"`
	Score           int       `json:"score"`
	Passed          []string  `json:"passed,omitempty"`
	Failed          []string  `json:"failed,omitempty"`
	CheckedAt       time.Time `json:"checked_at"`
}

// OK reports whether every rule passed.
func (r *SEOReport) OK() bool {
	return r != nil && len(r.Failed) == 0
}

// WorkItem is the content entity moving through the pipeline.
type WorkItem struct {
	ID      string        `json:"id"`
	OwnerID string        `json:"owner_id,omitempty"`
	Title   string        `json:"title"`
	Keyword string        `json:"keyword"`
	Status  status.Status `json:"status"`
	Blocks  []Block       `json:"blocks,omitempty"`

	Analysis *Analysis        `json:"analysis,omitempty"`
	Titles   *TitleSuggestions `json:"titles,omitempty"`
	Links    *LinkSuggestions  `json:"links,omitempty"`
	SEO      *SEOReport        `json:"seo,omitempty"`

	ExternalID  string `json:"external_id,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PendingIndexes returns the indexes of pending blocks in sequence order.
func (w *WorkItem) PendingIndexes() []int {
	var out []int
	for i, b := range w.Blocks {
		if b.Status == BlockPending {
			out = append(out, i)
		}
	}
	return out
}

// WordCount returns the sum of block word counts.
func (w *WorkItem) WordCount() int {
	total := 0
	for _, b := range w.Blocks {
		total += b.WordCount
	}
	return total
}

// Clone returns a deep copy of w.
func (w *WorkItem) Clone() *WorkItem {
	if w == nil {
		return nil
	}
	c := *w
	c.Blocks = append([]Block(nil), w.Blocks...)
	if w.Analysis != nil {
		a := *w.Analysis
		a.Competitors = append([]string(nil), w.Analysis.Competitors...)
		a.ContentGaps = append([]string(nil), w.Analysis.ContentGaps...)
		a.Entities = append([]string(nil), w.Analysis.Entities...)
		c.Analysis = &a
	}
	if w.Titles != nil {
		t := *w.Titles
		t.Candidates = append([]string(nil), w.Titles.Candidates...)
		c.Titles = &t
	}
	if w.Links != nil {
		l := LinkSuggestions{Links: append([]LinkSuggestion(nil), w.Links.Links...)}
		c.Links = &l
	}
	if w.SEO != nil {
		s := *w.SEO
		s.Passed = append([]string(nil), w.SEO.Passed...)
		s.Failed = append([]string(nil), w.SEO.Failed...)
		c.SEO = &s
	}
	return &c
}

// CountWords counts whitespace-separated words containing at least one
// letter or digit.
func CountWords(text string) int {
	n := 0
	for _, f := range strings.Fields(text) {
		if strings.IndexFunc(f, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			n++
		}
	}
	return n
}
