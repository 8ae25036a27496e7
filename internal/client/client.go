// Package client is the consumer side of the story API: a thin HTTP client
// and a reconciler that polls a submitted job until it settles.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storyteller/internal/domain/story"
)

// Client talks to the story API over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	Error string `json:"error"`
}

// Initiate submits a generation request and returns the new story id.
func (c *Client) Initiate(ctx context.Context, req story.GenerationRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("client: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/story", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("client: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("client: submit story: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("client: submit story: %s", readError(resp))
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("client: decode response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("client: response carried no id")
	}
	return out.ID, nil
}

// Metadata fetches the current view of one story. A missing story maps to
// story.ErrNotFound.
func (c *Client) Metadata(ctx context.Context, id string) (*story.View, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/metadata/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("client: fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, story.ErrNotFound
	default:
		return nil, fmt.Errorf("client: fetch metadata: %s", readError(resp))
	}
	var view story.View
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("client: decode metadata: %w", err)
	}
	return &view, nil
}

// ListMetadata fetches all views owned by ownerID.
func (c *Client) ListMetadata(ctx context.Context, ownerID string) ([]*story.View, error) {
	q := url.Values{}
	q.Set("ownerId", ownerID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/metadata?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("client: list metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client: list metadata: %s", readError(resp))
	}
	var views []*story.View
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		return nil, fmt.Errorf("client: decode metadata list: %w", err)
	}
	return views, nil
}

func readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
