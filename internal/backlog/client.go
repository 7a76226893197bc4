// Package backlog is a minimal client for the Backlog API v2 issue listing.
package backlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "backlogalert/pkg/logx"
)

// HTTPClient is the transport the client needs (allows fakes in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backlog: API returned status %d: %s", e.StatusCode, e.Body)
}

const maxErrorBody = 2048

type Client struct {
	baseURL string
	apiKey  string
	http    HTTPClient
	log     logx.Logger
}

// New builds a client. httpClient may be nil, in which case an http.Client
// with cfg.Timeout (default 30s) is used.
func New(cfg Config, httpClient HTTPClient, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("backlog: api key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		space := strings.TrimSpace(cfg.Space)
		if space == "" {
			return nil, errors.New("backlog: space is required")
		}
		domain := strings.TrimSpace(cfg.Domain)
		if domain == "" {
			domain = "backlog.jp"
		}
		base = "https://" + space + "." + domain
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{baseURL: base, apiKey: cfg.APIKey, http: httpClient, log: log}, nil
}

// ListIssues returns the issues matching q in server order.
func (c *Client) ListIssues(ctx context.Context, q Query) ([]Issue, error) {
	u := c.baseURL + "/api/v2/issues?" + c.encode(q).Encode()

	start := time.Now()
	var issues []Issue
	if err := c.get(ctx, u, &issues); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	c.log.Debug("issues fetched", logx.Int("count", len(issues)), logx.Duration("took", time.Since(start)))
	return issues, nil
}

func (c *Client) encode(q Query) url.Values {
	v := url.Values{}
	v.Set("apiKey", c.apiKey)
	for _, id := range q.ProjectIDs {
		v.Add("projectId[]", strconv.FormatInt(id, 10))
	}
	for _, id := range q.StatusIDs {
		v.Add("statusId[]", strconv.Itoa(id))
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	if q.Count > 0 {
		v.Set("count", strconv.Itoa(q.Count))
	}
	return v
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return redactKey(err, c.apiKey)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// redactKey strips the api key from transport errors, which embed the URL.
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return fmt.Errorf("request failed: %w", err)
	}
	return fmt.Errorf("request failed: %s", strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
