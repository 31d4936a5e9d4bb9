// Package twitter is a minimal client for the Twitter API v2 endpoints the
// scanner needs: resolving a handle and reading a user timeline one page at
// a time. It performs exactly one HTTP request per call and never retries;
// retry and budget decisions belong to the caller.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/models"
)

const bodyPreviewLimit = 200

// Client talks to the Twitter API with an app bearer token
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at another host, such as a test server
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.headers["User-Agent"] = ua
		}
	}
}

// NewClient creates a client authenticating with bearerToken
func NewClient(bearerToken string, timeout time.Duration, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers: map[string]string{
			"Authorization": "Bearer " + bearerToken,
			"Accept":        "application/json",
			"User-Agent":    "prompthunter/1.0",
		},
		baseURL: DefaultBaseURL,
		logger:  log.WithField("component", "twitter"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs an HTTP request with the configured headers.
// Transport failures come back as network UpstreamErrors with no status.
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"path":     req.URL.Path,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.NewNetworkError(err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":               req.Method,
		"path":                 req.URL.Path,
		"status":               resp.StatusCode,
		"duration":             duration,
		"rate_limit_remaining": resp.Header.Get("x-rate-limit-remaining"),
	})

	return resp, nil
}

// getJSON performs a GET and decodes a 2xx JSON body into target
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.UpstreamError{
			Type:    errs.ErrorTypeNetwork,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("failed to read response body: %v", err),
		}
	}

	if err := c.checkResponseStatus(resp, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"path":         req.URL.Path,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return &errs.UpstreamError{
			Type:    errs.ErrorTypeParsing,
			Status:  resp.StatusCode,
			Body:    preview(body),
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
		}
	}

	return nil
}

// checkResponseStatus maps non-2xx statuses to UpstreamErrors
func (c *Client) checkResponseStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	upstream := errs.NewUpstreamError(resp.StatusCode, preview(body))
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"path":   resp.Request.URL.Path,
		"type":   string(upstream.Type),
	}

	switch upstream.Type {
	case errs.ErrorTypeRateLimit:
		fields["rate_limit_reset"] = resp.Header.Get("x-rate-limit-reset")
		c.logger.WarnWithFields("rate limit exceeded", fields)
	case errs.ErrorTypeAuth, errs.ErrorTypeNotFound:
		c.logger.WarnWithFields("request rejected", fields)
	default:
		c.logger.ErrorWithFields("unexpected API error", fields)
	}
	return upstream
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > bodyPreviewLimit {
		return s[:bodyPreviewLimit] + "..."
	}
	return s
}

// LookupUser resolves a handle to its account
func (c *Client) LookupUser(ctx context.Context, handle string) (*User, error) {
	h, err := NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}

	var resp userResponse
	if err := c.getJSON(ctx, UserLookupURL(c.baseURL, h), &resp); err != nil {
		return nil, err
	}

	if resp.Data == nil {
		msg := "user not found"
		if len(resp.Errors) > 0 {
			msg = resp.Errors[0].Detail
		}
		return nil, &errs.UpstreamError{
			Type:    errs.ErrorTypeNotFound,
			Status:  http.StatusOK,
			Message: msg,
		}
	}

	c.logger.DebugWithFields("resolved user", map[string]interface{}{
		"handle":  h,
		"user_id": resp.Data.ID,
	})
	return resp.Data, nil
}

// FetchPage requests one timeline page
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var resp timelineResponse
	if err := c.getJSON(ctx, TimelineURL(c.baseURL, req), &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 && len(resp.Errors) > 0 {
		c.logger.WarnWithFields("timeline returned errors", map[string]interface{}{
			"user_id": req.UserID,
			"title":   resp.Errors[0].Title,
			"detail":  resp.Errors[0].Detail,
		})
	}

	page := &Page{
		Items:       make([]models.RawItem, 0, len(resp.Data)),
		NextToken:   resp.Meta.NextToken,
		ResultCount: resp.Meta.ResultCount,
		NewestID:    resp.Meta.NewestID,
	}
	for _, t := range resp.Data {
		page.Items = append(page.Items, models.RawItem{
			ID:        t.ID,
			Text:      t.Text,
			AuthorID:  t.AuthorID,
			CreatedAt: t.CreatedAt,
		})
	}

	return page, nil
}
