package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/viper"
)

// envBindings maps config keys to their environment variable overrides.
var envBindings = map[string]string{
	"store::path":              "SEOPIPE_DB_PATH",
	"ai::provider":             "SEOPIPE_AI_PROVIDER",
	"ai::base_url":             "SEOPIPE_AI_BASE_URL",
	"ai::api_key":              "SEOPIPE_AI_API_KEY",
	"ai::default_model":        "SEOPIPE_AI_MODEL",
	"publishing::base_url":     "SEOPIPE_PUBLISHING_URL",
	"publishing::username":     "SEOPIPE_PUBLISHING_USERNAME",
	"publishing::app_password": "SEOPIPE_PUBLISHING_APP_PASSWORD",
	"budget::monthly_usd":      "SEOPIPE_BUDGET_MONTHLY_USD",
	"log::level":               "SEOPIPE_LOG_LEVEL",
}

// Loader handles Viper-based configuration loading.
//
// Keys use "::" as the delimiter so model names containing dots
// (e.g. "llama3.1") can be used as pricing keys.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new [Loader] with environment bindings configured.
func NewLoader() *Loader {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return &Loader{v: v}
}

// Load discovers and loads the configuration.
//
// The first existing file among SEOPIPE_CONFIG_PATH, the user config
// directory and ./config.yaml is read. Without any file the defaults apply,
// still subject to environment overrides.
func (l *Loader) Load() (*Config, error) {
	for _, path := range candidatePaths() {
		if _, err := os.Stat(path); err == nil {
			return l.LoadFromFile(path)
		}
	}
	return l.unmarshal()
}

// LoadFromFile loads the configuration from an explicit file path. The
// format is inferred from the extension (yaml, json, toml).
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	cfg.fillStepDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillStepDefaults restores default templates for steps a config file
// only partially overrides (e.g. only the model).
func (c *Config) fillStepDefaults() {
	for name, def := range defaultSteps() {
		s := c.Steps[name]
		if s.System == "" {
			s.System = def.System
		}
		if s.Prompt == "" {
			s.Prompt = def.Prompt
		}
		c.Steps[name] = s
	}
}

func candidatePaths() []string {
	var paths []string
	if p := os.Getenv("SEOPIPE_CONFIG_PATH"); p != "" {
		paths = append(paths, p)
	}
	if p, err := DefaultConfigPath(); err == nil {
		paths = append(paths, p)
	}
	paths = append(paths, "config.yaml")
	return paths
}

// ConfigDir returns the seopipe directory under the user config directory.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "seopipe"), nil
}

// DefaultConfigPath returns the config file path in [ConfigDir].
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates [ConfigDir] if it does not exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// MustLoad loads the configuration and panics on failure.
func MustLoad() *Config {
	cfg, err := NewLoader().Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unsupported ai provider %q (want ollama or openai)", c.AI.Provider)
	}
	if c.Budget.MonthlyUSD < 0 {
		return errors.New("budget.monthly_usd must not be negative")
	}
	return nil
}

// ModelFor returns the configured model for step, falling back to the
// default model.
func (c *Config) ModelFor(step string) string {
	if s, ok := c.Steps[step]; ok && s.Model != "" {
		return s.Model
	}
	return c.AI.DefaultModel
}

// GetPrompt returns the expanded user prompt for step.
func (c *Config) GetPrompt(step string, data PromptData) (string, error) {
	s, ok := c.Steps[step]
	if !ok {
		return "", fmt.Errorf("unknown step: %s", step)
	}
	return expandTemplate(s.Prompt, data)
}

// GetSystemPrompt returns the expanded system prompt for step.
func (c *Config) GetSystemPrompt(step string, data PromptData) (string, error) {
	s, ok := c.Steps[step]
	if !ok {
		return "", fmt.Errorf("unknown step: %s", step)
	}
	return expandTemplate(s.System, data)
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

func expandTemplate(tmpl string, data PromptData) (string, error) {
	t, err := template.New("prompt").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
