// Package integration handles the REST backend interactions
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is used when no backend URL is configured
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout bounds every request to the backend
	DefaultTimeout = 10 * time.Second

	maxPayloadLog = 512
)

// ErrMalformedPayload marks a successful response whose body does not decode
// into the expected shape
var ErrMalformedPayload = errors.New("malformed response payload")

// ErrBackendReported marks a 2xx response whose body carries an error field
var ErrBackendReported = errors.New("backend reported an error")

// APIError is returned for non-2xx responses and undecodable bodies
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Payload    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Payload)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ClientOptions configures an APIClient. Zero values fall back to the defaults.
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// APIClient wraps outbound calls to the backend: fixed base URL, fixed timeout
// and JSON content type
type APIClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewAPIClient creates a new backend client
func NewAPIClient(opts ClientOptions, logger *zap.Logger) *APIClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(logger.Sugar())

	if opts.RetryCount > 0 {
		client.SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second)
	}

	return &APIClient{
		http:   client,
		logger: logger,
	}
}

// BaseURL returns the backend root the client talks to
func (c *APIClient) BaseURL() string {
	return c.http.BaseURL
}

// Get issues a GET request and decodes the JSON response into out
func (c *APIClient) Get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST request with an optional JSON body
func (c *APIClient) Post(ctx context.Context, path string, query map[string]string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, query, body, out)
}

// Put issues a PUT request with an optional JSON body
func (c *APIClient) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Do performs a request and decodes a 2xx JSON body into out (when out is not
// nil). Every failure is logged with its status code and payload before it is
// returned.
func (c *APIClient) Do(ctx context.Context, method, path string, query map[string]string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode()
		}
		c.logger.Error("API error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", status),
			zap.Error(err),
		)
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}

	if !resp.IsSuccess() {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Payload:    summarizePayload(resp.Header().Get("Content-Type"), resp.Body()),
		}
		c.logger.Error("API error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", apiErr.StatusCode),
			zap.String("payload", apiErr.Payload),
		)
		return apiErr
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Payload:    summarizePayload(resp.Header().Get("Content-Type"), resp.Body()),
			Err:        fmt.Errorf("%w: %v", ErrMalformedPayload, err),
		}
		c.logger.Error("API error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", apiErr.StatusCode),
			zap.String("payload", apiErr.Payload),
			zap.Error(err),
		)
		return apiErr
	}

	return nil
}

// summarizePayload turns an error body into a short loggable string. JSON
// bodies keep the backend's "detail" message; HTML pages from proxies are
// reduced to their title or visible text.
func summarizePayload(contentType string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	if strings.Contains(contentType, "json") || trimmed[0] == '{' {
		var detail struct {
			Detail interface{} `json:"detail"`
		}
		if err := json.Unmarshal(trimmed, &detail); err == nil && detail.Detail != nil {
			if s, ok := detail.Detail.(string); ok {
				return truncate(s)
			}
		}
		return truncate(string(trimmed))
	}

	if strings.Contains(contentType, "html") || trimmed[0] == '<' {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(trimmed))
		if err == nil {
			text := strings.TrimSpace(doc.Find("title").First().Text())
			if text == "" {
				text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
			}
			if text != "" {
				return truncate(text)
			}
		}
	}

	return truncate(string(trimmed))
}

// truncate cuts s to at most maxPayloadLog bytes without splitting a rune
func truncate(s string) string {
	if len(s) <= maxPayloadLog {
		return s
	}
	cut := maxPayloadLog
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
