// Package speech narrates story text into audio.
package speech

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Synthesizer turns text into narration audio bytes. The artifact key's
// extension fixes the content type, so implementations return bytes only.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Options configures the REST synthesizer.
type Options struct {
	APIKey     string
	BaseURL    string
	Voice      string
	HTTPClient *http.Client
}

// Client calls a speech-synthesis HTTP endpoint. Without a base URL or API
// key it emits a deterministic synthetic clip so local pipelines still
// converge.
type Client struct {
	apiKey     string
	baseURL    string
	voice      string
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	voice := strings.TrimSpace(opts.Voice)
	if voice == "" {
		voice = "Ruth"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		voice:      voice,
		httpClient: httpClient,
	}
}

func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return syntheticClip(text), nil
	}
	payload, err := json.Marshal(map[string]string{
		"text":   text,
		"voice":  c.voice,
		"format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("speech: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/synthesize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("speech: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: call api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, fmt.Errorf("speech: api status %d: %s", resp.StatusCode, snippet)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("speech: read response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("speech: api returned no audio")
	}
	return data, nil
}

// syntheticClip emits an mp3-shaped payload derived from the text so that the
// artifact is stable across runs without calling any backend.
func syntheticClip(text string) []byte {
	sum := sha256.Sum256([]byte(text))
	buf := make([]byte, 0, 3+len(sum)*8)
	buf = append(buf, 'I', 'D', '3')
	for i := 0; i < 8; i++ {
		buf = append(buf, sum[:]...)
	}
	return buf
}

var _ Synthesizer = (*Client)(nil)
