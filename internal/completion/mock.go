package completion

import (
	"context"
	"sync"
	"time"
)

// MockResponse is one scripted reply of [MockService].
type MockResponse struct {
	Content   string
	TokensIn  int
	TokensOut int
	Err       error
}

// MockService is a scripted [Service] for tests.
//
// Replies are consumed in order; once exhausted the last one repeats. When
// Handler is set it takes precedence over Responses. Every request is
// recorded.
type MockService struct {
	Responses []MockResponse
	Handler   func(req Request) (*Response, error)

	mu       sync.Mutex
	requests []Request
	next     int
}

// Complete records req and returns the next scripted reply.
func (m *MockService) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	handler := m.Handler
	var reply MockResponse
	if len(m.Responses) > 0 {
		idx := m.next
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		} else {
			m.next++
		}
		reply = m.Responses[idx]
	}
	m.mu.Unlock()

	if handler != nil {
		return handler(req)
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &Response{
		Content:   reply.Content,
		TokensIn:  reply.TokensIn,
		TokensOut: reply.TokensOut,
		Duration:  time.Millisecond,
		Model:     req.Model,
	}, nil
}

// Requests returns a copy of the recorded requests.
func (m *MockService) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// CallCount returns the number of Complete calls.
func (m *MockService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
