// Package completion is the client side of the AI completion service.
//
// A [Service] takes a task-tagged prompt and returns the model output with
// the token usage needed for cost accounting. Two providers are available:
// a local or remote Ollama server ([OllamaProvider]) and any OpenAI-compatible
// chat completions API ([OpenAIProvider]). [NewService] picks one from
// configuration and bounds every call with [WithTimeout].
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/config"
)

var (
	// ErrTimeout indicates a completion call exceeded its time bound.
	ErrTimeout = errors.New("completion timed out")

	// ErrNoModel indicates neither the request nor the configuration named a model.
	ErrNoModel = errors.New("no model configured")
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call.
type Request struct {
	// Task tags the call with the pipeline step issuing it.
	Task string

	// System is the optional system prompt, sent before Messages.
	System string

	Messages []Message

	// Model selects the model. Required.
	Model string

	// JSON asks the provider to constrain output to a JSON object.
	JSON bool
}

// Response is the model output and its usage.
type Response struct {
	Content   string
	TokensIn  int
	TokensOut int
	Duration  time.Duration
	Model     string
}

// Service performs completions.
type Service interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// NewService builds the provider named by cfg.Provider, bounded by cfg.Timeout.
func NewService(cfg config.AIConfig) (Service, error) {
	var (
		svc Service
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "ollama", "":
		svc, err = NewOllamaProvider(cfg.BaseURL)
	case "openai":
		svc, err = NewOpenAIProvider(cfg.BaseURL, cfg.APIKey)
	default:
		err = fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithTimeout(svc, cfg.Timeout), nil
}

// chatMessages prepends the system prompt to the request messages.
func chatMessages(req Request) []Message {
	msgs := make([]Message, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	return append(msgs, req.Messages...)
}
