package lifecycle

import "github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"

// Model output shapes. Required fields are enforced by payload.Decode.

type analysisPayload struct {
	SearchIntent string   `json:"search_intent" jsonschema:"required,minLength=1"`
	Audience     string   `json:"audience"`
	Competitors  []string `json:"competitors"`
	ContentGaps  []string `json:"content_gaps"`
	Entities     []string `json:"entities"`
	Summary      string   `json:"summary" jsonschema:"required,minLength=1"`
}

func (a analysisPayload) toAnalysis() *workitem.Analysis {
	return &workitem.Analysis{
		SearchIntent: a.SearchIntent,
		Audience:     a.Audience,
		Competitors:  a.Competitors,
		ContentGaps:  a.ContentGaps,
		Entities:     a.Entities,
		Summary:      a.Summary,
	}
}

type analyzeOutput struct {
	Analysis analysisPayload `json:"analysis" jsonschema:"required"`
	Titles   []string        `json:"titles" jsonschema:"required,minItems=1"`
}

type plannedBlock struct {
	Type        string `json:"type" jsonschema:"required,enum=h2,enum=h3,enum=paragraph,enum=list,enum=faq,enum=callout,enum=image"`
	Heading     string `json:"heading"`
	Directive   string `json:"directive"`
	FormatHint  string `json:"format_hint"`
	ImagePrompt string `json:"image_prompt"`
}

type plannedLink struct {
	URL    string `json:"url" jsonschema:"required,minLength=1"`
	Anchor string `json:"anchor"`
}

type planOutput struct {
	Blocks []plannedBlock `json:"blocks" jsonschema:"required,minItems=1"`
	Links  []plannedLink  `json:"links"`
}

type mediaImage struct {
	Index    int    `json:"index" jsonschema:"required,minimum=0"`
	Alt      string `json:"alt" jsonschema:"required,minLength=1"`
	Filename string `json:"filename" jsonschema:"required,minLength=1"`
}

type mediaOutput struct {
	Images []mediaImage `json:"images" jsonschema:"required"`
}

type seoOutput struct {
	MetaDescription string `json:"meta_description" jsonschema:"required,minLength=1"`
	Score           int    `json:"score" jsonschema:"minimum=0,maximum=100"`
}
