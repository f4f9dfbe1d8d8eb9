package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// userAgent is sent with every request.
const userAgent = "paydash"

// Client is a thin HTTP client for the gateway REST API. It handles Bearer
// token authentication, JSON marshaling and the {message, data} envelope.
// It never retries on its own.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a new gateway client. The baseURL should be the API
// root (e.g., https://api.gateway.example.com/v1). The token is the session
// token; an empty token makes every call fail with an AuthError before any
// network traffic.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of the client that authenticates with token. The
// proxy uses it to forward each browser session with its own cookie.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// HasSession reports whether the client carries a session token.
func (c *Client) HasSession() bool {
	return c.token != ""
}

// envelope is the response shape used by every gateway endpoint.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Get performs an HTTP GET and decodes the envelope's data into result.
func (c *Client) Get(ctx context.Context, path string, result interface{}) (string, error) {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Patch performs an HTTP PATCH with an optional JSON body and decodes the
// envelope's data into result.
func (c *Client) Patch(ctx context.Context, path string, body, result interface{}) (string, error) {
	return c.do(ctx, http.MethodPatch, path, body, result)
}

// do is the core HTTP method. It returns the envelope message on success.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) (string, error) {
	if c.token == "" {
		return "", &AuthError{Message: "sign in required", Err: ErrNoSession}
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	var env envelope
	parseErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		msg := env.Message
		if parseErr != nil || msg == "" {
			msg = "authentication failed"
		}
		return "", &AuthError{StatusCode: resp.StatusCode, Message: msg}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if parseErr != nil || msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Message:    msg,
		}
	}

	if resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return "", nil
	}

	if parseErr != nil {
		return "", fmt.Errorf("unmarshaling response from %s %s: %w", method, path, parseErr)
	}

	if result == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return env.Message, nil
	}

	if err := json.Unmarshal(env.Data, result); err != nil {
		return "", fmt.Errorf("unmarshaling data from %s %s: %w", method, path, err)
	}

	return env.Message, nil
}
