// Package publishing is the client side of the content-management
// publishing service.
//
// [Service] creates or updates a post and uploads media assets on a
// [Target]. [HTTPService] speaks the WordPress REST API with application
// password authentication; [MockService] records calls for tests.
// [Render] turns a work item into the HTML [Content] that gets published.
package publishing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidTarget indicates the publishing credentials cannot be resolved.
var ErrInvalidTarget = errors.New("invalid publishing target")

// Target identifies a site and the credentials to publish to it.
type Target struct {
	BaseURL     string
	Username    string
	AppPassword string
}

// Validate checks that the target is complete and its URL usable.
func (t Target) Validate() error {
	if strings.TrimSpace(t.BaseURL) == "" {
		return fmt.Errorf("%w: base url is required", ErrInvalidTarget)
	}
	u, err := url.Parse(t.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: base url %q must be an absolute http(s) url", ErrInvalidTarget, t.BaseURL)
	}
	if strings.TrimSpace(t.Username) == "" || strings.TrimSpace(t.AppPassword) == "" {
		return fmt.Errorf("%w: username and application password are required", ErrInvalidTarget)
	}
	return nil
}

// Content is a post to create or update.
type Content struct {
	// ExternalID selects the existing post to update. Empty creates a post.
	ExternalID string

	Title   string
	HTML    string
	Excerpt string
	Slug    string

	// Status is the post status on the target ("draft" or "publish").
	Status string
}

// Published identifies the post on the target.
type Published struct {
	ExternalID string
	URL        string
}

// AssetMeta describes an uploaded file.
type AssetMeta struct {
	Filename    string
	ContentType string
	AltText     string
}

// Asset identifies an uploaded file on the target.
type Asset struct {
	ID  string
	URL string
}

// Service publishes content.
type Service interface {
	CreateOrUpdateContent(ctx context.Context, target Target, content Content) (*Published, error)
	UploadAsset(ctx context.Context, target Target, data []byte, meta AssetMeta) (*Asset, error)
}

// StatusError is returned when the target answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("publishing target returned %d: %s", e.StatusCode, e.Message)
}
