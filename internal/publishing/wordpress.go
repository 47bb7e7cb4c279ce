package publishing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout caps every request to the publishing target.
const DefaultTimeout = 5 * time.Second

const (
	postsPath = "/wp-json/wp/v2/posts"
	mediaPath = "/wp-json/wp/v2/media"
)

// HTTPService publishes through the WordPress REST API.
type HTTPService struct {
	httpClient *http.Client
}

// NewHTTPService returns a service whose requests time out after timeout
// (DefaultTimeout when <= 0).
func NewHTTPService(timeout time.Duration) *HTTPService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPService{httpClient: &http.Client{Timeout: timeout}}
}

type wpObject struct {
	ID        int    `json:"id"`
	Link      string `json:"link"`
	SourceURL string `json:"source_url"`
}

// CreateOrUpdateContent creates a post, or updates content.ExternalID when set.
func (s *HTTPService) CreateOrUpdateContent(ctx context.Context, target Target, content Content) (*Published, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(target.BaseURL, "/") + postsPath
	if content.ExternalID != "" {
		endpoint += "/" + content.ExternalID
	}
	postStatus := content.Status
	if postStatus == "" {
		postStatus = "draft"
	}
	body, err := json.Marshal(map[string]string{
		"title":   content.Title,
		"content": content.HTML,
		"excerpt": content.Excerpt,
		"slug":    content.Slug,
		"status":  postStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post: %w", err)
	}

	var obj wpObject
	if err := s.do(ctx, target, endpoint, "application/json", nil, bytes.NewReader(body), &obj); err != nil {
		return nil, err
	}
	if obj.ID == 0 {
		return nil, errors.New("publishing target returned no post id")
	}
	return &Published{ExternalID: strconv.Itoa(obj.ID), URL: obj.Link}, nil
}

// UploadAsset uploads a media file, then sets its alt text when given.
func (s *HTTPService) UploadAsset(ctx context.Context, target Target, data []byte, meta AssetMeta) (*Asset, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(meta.Filename) == "" {
		return nil, errors.New("asset filename is required")
	}
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": meta.Filename}),
	}
	endpoint := strings.TrimRight(target.BaseURL, "/") + mediaPath

	var obj wpObject
	if err := s.do(ctx, target, endpoint, contentType, headers, bytes.NewReader(data), &obj); err != nil {
		return nil, err
	}
	if obj.ID == 0 {
		return nil, errors.New("publishing target returned no media id")
	}
	asset := &Asset{ID: strconv.Itoa(obj.ID), URL: obj.SourceURL}

	if meta.AltText != "" {
		body, err := json.Marshal(map[string]string{"alt_text": meta.AltText})
		if err != nil {
			return nil, err
		}
		if err := s.do(ctx, target, endpoint+"/"+asset.ID, "application/json", nil, bytes.NewReader(body), nil); err != nil {
			return nil, fmt.Errorf("failed to set alt text: %w", err)
		}
	}
	return asset, nil
}

func (s *HTTPService) do(ctx context.Context, target Target, endpoint, contentType string, headers map[string]string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(target.Username, target.AppPassword)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func handleErrorResponse(statusCode int, body []byte) error {
	var wpErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &wpErr); err == nil && wpErr.Message != "" {
		return &StatusError{StatusCode: statusCode, Message: wpErr.Message}
	}
	return &StatusError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
}
