// Package config provides configuration loading and management for seopipe.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The package provides sensible defaults that work out of the
// box, with the ability to customize step prompts, model selection, pricing,
// the publishing target and SEO rules.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [StepConfig] defines a single step's prompt templates and model
//   - [AIConfig] contains completion provider settings
//
// Configuration priority (highest to lowest):
//  1. Environment variables (SEOPIPE_ prefix)
//  2. Config file specified by SEOPIPE_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/seopipe/config.yaml
//     - macOS: ~/Library/Application Support/seopipe/config.yaml
//     - Windows: %APPDATA%\seopipe\config.yaml
//  4. ./config.yaml
//  5. [DefaultConfig] defaults
package config

import "time"

// Config represents the root configuration structure.
type Config struct {
	// Store configures the bbolt database.
	Store StoreConfig `mapstructure:"store"`

	// AI configures the completion provider.
	AI AIConfig `mapstructure:"ai"`

	// Publishing configures the content-management target.
	Publishing PublishingConfig `mapstructure:"publishing"`

	// Pricing maps model names to USD prices per million tokens.
	// Keys are matched case-insensitively, then by substring.
	Pricing map[string]PriceConfig `mapstructure:"pricing"`

	// Pipeline configures step routing policy.
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Steps maps step names to their prompt templates and model.
	Steps map[string]StepConfig `mapstructure:"steps"`

	// SEO holds the rules evaluated by the seo-check step.
	SEO SEOConfig `mapstructure:"seo"`

	// Budget configures cost alerts.
	Budget BudgetConfig `mapstructure:"budget"`

	// Log configures the rotating log file.
	Log LogConfig `mapstructure:"log"`
}

// StoreConfig contains database settings.
type StoreConfig struct {
	// Path is the bbolt database file.
	// Can be overridden with SEOPIPE_DB_PATH.
	Path string `mapstructure:"path"`
}

// AIConfig contains completion provider settings.
type AIConfig struct {
	// Provider selects the backend: "ollama" or "openai" (any OpenAI-compatible API).
	Provider string `mapstructure:"provider"`

	// BaseURL is the provider endpoint. Empty uses the provider default
	// (OLLAMA_HOST for ollama).
	BaseURL string `mapstructure:"base_url"`

	// APIKey authenticates against OpenAI-compatible providers.
	// Can be overridden with SEOPIPE_AI_API_KEY.
	APIKey string `mapstructure:"api_key"`

	// Timeout bounds every completion call.
	Timeout time.Duration `mapstructure:"timeout"`

	// DefaultModel is used when neither the step nor the caller picks one.
	DefaultModel string `mapstructure:"default_model"`
}

// PublishingConfig contains the publishing target credentials.
type PublishingConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Username    string        `mapstructure:"username"`
	AppPassword string        `mapstructure:"app_password"`
	Timeout     time.Duration `mapstructure:"timeout"`

	// PostStatus is the status new content is created with ("draft" or "publish").
	PostStatus string `mapstructure:"post_status"`
}

// PriceConfig is a model price in USD per million tokens.
type PriceConfig struct {
	Input  float64 `mapstructure:"input"`
	Output float64 `mapstructure:"output"`
}

// PipelineConfig contains step routing policy.
type PipelineConfig struct {
	// RefreshTarget is the status the refresh step moves a work item to.
	// Must be a forward status before published. Default: "analyzing".
	RefreshTarget string `mapstructure:"refresh_target"`

	// ManifestPath optionally points at a CSV pipeline manifest overriding
	// the built-in step table.
	ManifestPath string `mapstructure:"manifest_path"`
}

// StepConfig represents a single step configuration.
type StepConfig struct {
	// System is the system prompt template.
	System string `mapstructure:"system"`

	// Prompt is the Go template for the user message.
	// Example: "Write the section {{.Heading}} for {{.Title}}"
	Prompt string `mapstructure:"prompt"`

	// Model is the model for this step. Empty uses ai.default_model.
	Model string `mapstructure:"model"`
}

// SEOConfig contains the seo-check rules.
type SEOConfig struct {
	// Rules are boolean expressions over the work item, e.g. "word_count >= 800".
	Rules []string `mapstructure:"rules"`
}

// BudgetConfig contains cost alert settings.
type BudgetConfig struct {
	// MonthlyUSD is the monthly spend budget. Zero disables alerts.
	MonthlyUSD float64 `mapstructure:"monthly_usd"`
}

// LogConfig configures the rotating log file.
type LogConfig struct {
	Path       string `mapstructure:"path"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
//
// The defaults target a local Ollama instance, keep data under .seopipe/
// and include prompt templates for every step.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{Path: ".seopipe/seopipe.db"},
		AI: AIConfig{
			Provider:     "ollama",
			Timeout:      2 * time.Minute,
			DefaultModel: "llama3.1:8b",
		},
		Publishing: PublishingConfig{
			Timeout:    5 * time.Second,
			PostStatus: "draft",
		},
		Pricing: map[string]PriceConfig{
			"gpt-4o":      {Input: 2.50, Output: 10.00},
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
			"deepseek":    {Input: 0.27, Output: 1.10},
			"llama":       {Input: 0, Output: 0},
		},
		Pipeline: PipelineConfig{RefreshTarget: "analyzing"},
		Steps:    defaultSteps(),
		SEO: SEOConfig{
			Rules: []string{
				"word_count >= 800",
				"title_length <= 65",
				"keyword_in_title",
				"h2_count >= 2",
				"images_with_alt == image_count",
				"meta_description_length >= 70 && meta_description_length <= 160",
			},
		},
		Log: LogConfig{
			Path:       ".seopipe/seopipe.log",
			Level:      "info",
			MaxSizeMB:  15,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func defaultSteps() map[string]StepConfig {
	const jsonOnly = "Respond with a single JSON object and nothing else."
	return map[string]StepConfig{
		"analyze": {
			System: "You are an SEO strategist. " + jsonOnly,
			Prompt: `Analyze the search landscape for the keyword "{{.Keyword}}" (working title: {{.Title}}).
Return {"analysis":{"search_intent":"","audience":"","competitors":[],"content_gaps":[],"entities":[],"summary":""},"titles":[""]}.`,
		},
		"plan": {
			System: "You are an editor planning a long-form article. " + jsonOnly,
			Prompt: `Plan an article on "{{.Title}}" targeting "{{.Keyword}}".
Intent: {{.SearchIntent}}. Audience: {{.Audience}}. Summary: {{.Summary}}
Return {"blocks":[{"type":"h2|h3|paragraph|list|faq|callout|image","heading":"","directive":"","format_hint":"","image_prompt":""}],"links":[{"url":"","anchor":""}]}.`,
		},
		"write-block": {
			System: "You are a skilled web writer. Write only the requested section body in Markdown, without repeating its heading.",
			Prompt: `Article: {{.Title}} (keyword "{{.Keyword}}").
{{if .PreviousHeadings}}Sections already written: {{join .PreviousHeadings "; "}}.
{{end}}Write the {{.BlockType}} block{{if .Heading}} "{{.Heading}}"{{end}}.
Directive: {{.Directive}}{{if .FormatHint}}
Format: {{.FormatHint}}{{end}}`,
		},
		"media": {
			System: "You write accessible image metadata. " + jsonOnly,
			Prompt: `For the article "{{.Title}}", give alt text and a lowercase hyphenated .webp filename for each image:
{{range .Images}}- [{{.Index}}] {{.Prompt}}
{{end}}Return {"images":[{"index":0,"alt":"","filename":""}]}.`,
		},
		"seo-check": {
			System: "You are an SEO auditor. " + jsonOnly,
			Prompt: `Audit the article "{{.Title}}" for the keyword "{{.Keyword}}". Outline:
{{range .PreviousHeadings}}- {{.}}
{{end}}Excerpt: {{.Excerpt}}
Return {"meta_description":"","score":0}.`,
		},
		"refresh": {
			System: "You are an SEO strategist reviewing stale content. " + jsonOnly,
			Prompt: `The article "{{.Title}}" ({{.URL}}) targeting "{{.Keyword}}" needs a refresh. Previous summary: {{.Summary}}
Return {"analysis":{"search_intent":"","audience":"","competitors":[],"content_gaps":[],"entities":[],"summary":""},"titles":[""]}.`,
		},
	}
}

// PromptImage is one image block offered to the media prompt.
type PromptImage struct {
	Index  int
	Prompt string
}

// PromptData contains data for step template expansion.
//
// This struct is passed to Go's text/template when expanding step prompts.
// Fields are accessible in templates using {{.FieldName}} syntax; each step
// fills the fields it uses.
type PromptData struct {
	Title        string
	Keyword      string
	URL          string
	Summary      string
	SearchIntent string
	Audience     string

	// Block fields, for write-block.
	BlockType  string
	Heading    string
	Directive  string
	FormatHint string

	// PreviousHeadings lists headings of blocks already processed.
	PreviousHeadings []string

	Images  []PromptImage
	Excerpt string
}
