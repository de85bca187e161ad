package bulk

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

	"smtp-forensics/internal/logging"
)

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 500 * time.Millisecond

// maxSampleFailures bounds the item failures kept per load
const maxSampleFailures = 5

// Client talks to the bulk, count and index endpoints of an
// OpenSearch/Elasticsearch compatible store.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

type ClientConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
	}
}

// ItemFailure is one document the store rejected
type ItemFailure struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
	Reason string `json:"reason"`
}

// BulkResult summarizes one bulk response
type BulkResult struct {
	Indexed  int
	Failed   int
	Failures []ItemFailure
}

type bulkResponse struct {
	Errors bool                         `json:"errors"`
	Items  []map[string]bulkItemOutcome `json:"items"`
}

type bulkItemOutcome struct {
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error"`
}

// EnsureIndex creates index with the schema mapping unless it exists.
// With recreate an existing index is deleted first.
func (c *Client) EnsureIndex(ctx context.Context, index string, schema Schema, recreate bool) error {
	status, _, err := c.do(ctx, http.MethodHead, "/"+url.PathEscape(index), "", nil)
	if err != nil {
		return err
	}

	if status == http.StatusOK {
		if !recreate {
			return nil
		}
		status, body, err := c.do(ctx, http.MethodDelete, "/"+url.PathEscape(index), "", nil)
		if err != nil {
			return err
		}
		if status >= 300 && status != http.StatusNotFound {
			return classifyError(status, string(body))
		}
		logging.Log.Infof("Deleted existing index %s", index)
	}

	mapping, err := json.Marshal(schema.Mapping())
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}
	status, body, err := c.do(ctx, http.MethodPut, "/"+url.PathEscape(index), "application/json", mapping)
	if err != nil {
		return err
	}
	if status >= 300 {
		return classifyError(status, string(body))
	}
	logging.Log.Infof("Created index %s", index)
	return nil
}

// Bulk sends one NDJSON payload and parses the per-item outcomes.
// Transient HTTP failures are retried up to the configured count.
func (c *Client) Bulk(ctx context.Context, payload []byte) (BulkResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt - 1)
			logging.Log.Debugf("Retrying bulk request (attempt %d) in %v", attempt, delay)
			if err := sleepWithContext(ctx, delay); err != nil {
				return BulkResult{}, fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		}

		status, body, err := c.do(ctx, http.MethodPost, "/_bulk", "application/x-ndjson", payload)
		if err != nil {
			lastErr = err
			continue
		}
		if status >= 300 {
			sendErr := classifyError(status, string(body))
			if sendErr.permanent {
				return BulkResult{}, sendErr
			}
			lastErr = sendErr
			continue
		}
		return parseBulkResponse(body)
	}
	return BulkResult{}, fmt.Errorf("bulk request failed after %d retries: %w", c.maxRetries, lastErr)
}

func parseBulkResponse(body []byte) (BulkResult, error) {
	var resp bulkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return BulkResult{}, fmt.Errorf("invalid bulk response: %w", err)
	}

	var result BulkResult
	for _, item := range resp.Items {
		for _, outcome := range item {
			if outcome.Status >= 200 && outcome.Status < 300 && !hasError(outcome.Error) {
				result.Indexed++
				continue
			}
			result.Failed++
			if len(result.Failures) < maxSampleFailures {
				result.Failures = append(result.Failures, ItemFailure{
					ID:     outcome.ID,
					Status: outcome.Status,
					Reason: failureReason(outcome.Error),
				})
			}
		}
	}
	return result, nil
}

func hasError(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func failureReason(raw json.RawMessage) string {
	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil && (detail.Type != "" || detail.Reason != "") {
		return strings.TrimPrefix(detail.Type+": "+detail.Reason, ": ")
	}
	return string(raw)
}

// Count returns the number of documents in index
func (c *Client) Count(ctx context.Context, index string) (int, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(index)+"/_count", "", nil)
	if err != nil {
		return 0, err
	}
	if status >= 300 {
		return 0, classifyError(status, string(body))
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("invalid count response: %w", err)
	}
	return resp.Count, nil
}

// Refresh makes indexed documents visible to Count
func (c *Client) Refresh(ctx context.Context, index string) error {
	status, body, err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(index)+"/_refresh", "", nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return classifyError(status, string(body))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &sendError{message: fmt.Sprintf("HTTP request failed: %v", err), transient: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// sendError represents a failed request to the index store with
// classification for retry logic.
type sendError struct {
	message    string
	statusCode int
	permanent  bool
	transient  bool
}

func (e *sendError) Error() string {
	if e.statusCode == 0 {
		return "index store error: " + e.message
	}
	return fmt.Sprintf("index store error (HTTP %d): %s", e.statusCode, e.message)
}

// classifyError categorizes an HTTP error response for retry decisions.
func classifyError(statusCode int, message string) *sendError {
	err := &sendError{
		message:    message,
		statusCode: statusCode,
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		err.transient = true
	case statusCode >= 500:
		err.transient = true
	default:
		err.permanent = true
	}

	return err
}

func backoffDelay(attempt int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
