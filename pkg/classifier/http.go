package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "prompthunter/pkg/errors"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/models"
)

// HTTPService posts {"text": ...} to a JSON endpoint that answers with a verdict
type HTTPService struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

// NewHTTPService creates a service for endpoint. apiKey is sent as a bearer token when set.
func NewHTTPService(endpoint, apiKey string, timeout time.Duration, log logger.Logger) *HTTPService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &HTTPService{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// WithHTTPClient swaps the underlying client
func (s *HTTPService) WithHTTPClient(c *http.Client) *HTTPService {
	s.httpClient = c
	return s
}

// Classify posts text and decodes the verdict
func (s *HTTPService) Classify(ctx context.Context, text string) (models.Classification, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return models.Classification{}, &errs.ClassificationError{Reason: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Classification{}, &errs.ClassificationError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return models.Classification{}, ctx.Err()
		}
		logger.LogRequest(s.logger, req.Method, s.endpoint, 0, time.Since(start))
		return models.Classification{}, &errs.ClassificationError{Reason: "request failed", Err: errs.NewNetworkError(err)}
	}
	defer resp.Body.Close()
	logger.LogRequest(s.logger, req.Method, s.endpoint, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.Classification{}, &errs.ClassificationError{Reason: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return models.Classification{}, &errs.ClassificationError{
			Reason: fmt.Sprintf("service returned status %d", resp.StatusCode),
			Err:    errs.NewUpstreamError(resp.StatusCode, preview),
		}
	}

	return parseVerdict(string(data))
}
