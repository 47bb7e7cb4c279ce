package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaProvider talks to an Ollama server.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider returns a provider for baseURL, or for OLLAMA_HOST when
// baseURL is empty.
func NewOllamaProvider(baseURL string) (*OllamaProvider, error) {
	if strings.TrimSpace(baseURL) == "" {
		client, err := ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		return &OllamaProvider{client: client}, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	return &OllamaProvider{client: ollama.NewClient(u, http.DefaultClient)}, nil
}

// Complete sends a non-streaming chat request.
func (p *OllamaProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		return nil, ErrNoModel
	}
	msgs := chatMessages(req)
	ollamaMessages := make([]ollama.Message, len(msgs))
	for i, msg := range msgs {
		ollamaMessages[i] = ollama.Message{Role: msg.Role, Content: msg.Content}
	}

	stream := false
	chatReq := &ollama.ChatRequest{
		Model:    req.Model,
		Messages: ollamaMessages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": 0.4,
		},
	}
	if req.JSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	var (
		content   strings.Builder
		tokensIn  int
		tokensOut int
	)
	respFunc := func(res ollama.ChatResponse) error {
		content.WriteString(res.Message.Content)
		if res.Done {
			tokensIn = res.PromptEvalCount
			tokensOut = res.EvalCount
		}
		return nil
	}

	start := time.Now()
	if err := p.client.Chat(ctx, chatReq, respFunc); err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}

	return &Response{
		Content:   content.String(),
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		Duration:  time.Since(start),
		Model:     req.Model,
	}, nil
}
