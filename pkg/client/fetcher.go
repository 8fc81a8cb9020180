package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Fetcher interface {
	Fetch(ctx context.Context, resource string, params url.Values) (json.RawMessage, error)
}

// StatusError is a non-2xx answer of the read service.
type StatusError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Status == http.StatusTooManyRequests {
		return fmt.Sprintf("read service rate limited, retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("read service status %d: %s", e.Status, e.Message)
}

// HTTPFetcher calls the cache-only read service.
type HTTPFetcher struct {
	baseURL string
	http    *http.Client
}

func NewHTTPFetcher(baseURL string, httpClient *http.Client) *HTTPFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, resource string, params url.Values) (json.RawMessage, error) {
	const op = "client.HTTPFetcher.Fetch"

	target := f.baseURL + "/" + resource
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error        string `json:"error"`
			RetryAfterMs int64  `json:"retryAfterMs"`
		}
		_ = json.Unmarshal(body, &payload)
		return nil, &StatusError{
			Status:     resp.StatusCode,
			Message:    payload.Error,
			RetryAfter: time.Duration(payload.RetryAfterMs) * time.Millisecond,
		}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: response is not valid JSON", op)
	}
	return json.RawMessage(body), nil
}
