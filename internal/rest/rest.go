// Package rest implements the HTTP transport for the Moss API.
package rest

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

// DefaultBaseURL is the production Moss API endpoint.
const DefaultBaseURL = "https://api.usemoss.dev/v1"

const defaultTimeout = 60 * time.Second

// Sentinel errors mapped from error responses. The root package re-exports
// these for callers.
var (
	ErrIndexNotFound      = errors.New("moss: index not found")
	ErrIndexAlreadyExists = errors.New("moss: index already exists")
	ErrDocumentNotFound   = errors.New("moss: document not found")
	ErrJobNotFound        = errors.New("moss: job not found")
	ErrUnauthorized       = errors.New("moss: invalid project credentials")
	ErrRateLimited        = errors.New("moss: rate limited")
	ErrInvalidRequest     = errors.New("moss: invalid request")
	ErrJobFailed          = errors.New("moss: clustering job failed")
)

// APIError is a decoded error response from the service.
type APIError struct {
	StatusCode int    // HTTP status
	Code       string // machine-readable error code, e.g. "index_not_found"
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("moss: api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("moss: api error %d (%s)", e.StatusCode, e.Code)
}

// Unwrap maps the error onto a sentinel so callers can use errors.Is
// without inspecting status codes.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "index_not_found":
		return ErrIndexNotFound
	case "index_already_exists":
		return ErrIndexAlreadyExists
	case "document_not_found":
		return ErrDocumentNotFound
	case "job_not_found":
		return ErrJobNotFound
	}
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrInvalidRequest
	case http.StatusNotFound:
		return ErrIndexNotFound
	}
	return nil
}

// Config holds the transport settings.
type Config struct {
	ProjectID  string
	ProjectKey string
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// Client is a thin JSON-over-HTTP client carrying project credentials.
type Client struct {
	projectID  string
	projectKey string
	baseURL    string
	userAgent  string
	http       *http.Client
}

// New creates a transport client. Empty Config fields fall back to
// defaults; credentials are required.
func New(cfg Config) (*Client, error) {
	if cfg.ProjectID == "" || cfg.ProjectKey == "" {
		return nil, errors.New("moss: project id and project key are required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		projectID:  cfg.ProjectID,
		projectKey: cfg.ProjectKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  cfg.UserAgent,
		http:       httpClient,
	}, nil
}

// Do performs a JSON request against the API. in and out may be nil.
// Non-2xx responses are decoded into *APIError.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.projectKey)
	req.Header.Set("X-Moss-Project", c.projectID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// PathEscape escapes an index name or job id for use in a URL path.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil {
		var parsed struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &parsed) == nil && (parsed.Code != "" || parsed.Message != "") {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Message
		} else if len(raw) > 0 {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
	}
	if apiErr.Code == "" {
		apiErr.Code = codeForStatus(resp.StatusCode)
	}
	return apiErr
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusBadRequest:
		return "bad_request"
	default:
		return "internal_error"
	}
}
