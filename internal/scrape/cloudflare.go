// Package scrape fills in page text for feed items that arrive without a
// snippet, using Cloudflare Browser Rendering.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CloudflareClient calls the Browser Rendering markdown endpoint.
// See: https://developers.cloudflare.com/browser-rendering/rest-api/
type CloudflareClient struct {
	endpoint string
	token    string
	http     *http.Client
	maxRunes int
}

type markdownRequest struct {
	URL                  string   `json:"url"`
	RejectRequestPattern []string `json:"rejectRequestPattern,omitempty"`
}

type markdownResponse struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
	Errors  any    `json:"errors"`
}

// NewCloudflare creates a client for an account. endpoint may be empty to use
// https://api.cloudflare.com/client/v4/accounts/<ACCOUNT_ID>/browser-rendering/markdown.
func NewCloudflare(accountID, token, endpoint string, timeout time.Duration) *CloudflareClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://api.cloudflare.com/client/v4/accounts/%s/browser-rendering/markdown", strings.TrimSpace(accountID))
	}
	return &CloudflareClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		http:     &http.Client{Timeout: timeout},
		maxRunes: 4000,
	}
}

// PageText returns the rendered page as markdown, truncated to a size that
// fits a classification prompt.
func (c *CloudflareClient) PageText(ctx context.Context, u string) (string, error) {
	if c == nil {
		return "", errors.New("nil cloudflare client")
	}
	if _, err := url.ParseRequestURI(u); err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	body, err := json.Marshal(markdownRequest{
		URL:                  u,
		RejectRequestPattern: []string{"/^.*\\.(css)/"},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("cloudflare scrape failed: status=%d body=%s", resp.StatusCode, string(b))
	}
	var out markdownResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if !out.Success {
		return "", fmt.Errorf("cloudflare scrape failed: %v", out.Errors)
	}
	text := strings.TrimSpace(out.Result)
	if r := []rune(text); len(r) > c.maxRunes {
		text = string(r[:c.maxRunes])
	}
	return text, nil
}
