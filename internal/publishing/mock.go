package publishing

import (
	"context"
	"fmt"
	"sync"
)

// MockService is an in-memory [Service] for tests.
type MockService struct {
	// Err, when set, fails every call after target validation.
	Err error

	// BaseURL prefixes generated post and asset URLs.
	BaseURL string

	mu       sync.Mutex
	nextID   int
	Contents []Content
	Assets   []AssetMeta
}

// CreateOrUpdateContent records content and returns a stable id per post.
func (m *MockService) CreateOrUpdateContent(ctx context.Context, target Target, content Content) (*Published, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Contents = append(m.Contents, content)
	id := content.ExternalID
	if id == "" {
		m.nextID++
		id = fmt.Sprintf("%d", m.nextID)
	}
	return &Published{ExternalID: id, URL: fmt.Sprintf("%s/%s", m.BaseURL, content.Slug)}, nil
}

// UploadAsset records meta and returns a generated asset.
func (m *MockService) UploadAsset(ctx context.Context, target Target, data []byte, meta AssetMeta) (*Asset, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Assets = append(m.Assets, meta)
	m.nextID++
	return &Asset{ID: fmt.Sprintf("%d", m.nextID), URL: fmt.Sprintf("%s/media/%s", m.BaseURL, meta.Filename)}, nil
}

// Calls returns the number of recorded content calls.
func (m *MockService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Contents)
}
