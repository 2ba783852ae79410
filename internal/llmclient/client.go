// Package llmclient provides a base HTTP client for completion providers with:
// - Request marshaling
// - A single attempt per call (callers own retry policy)
// - Standardized upstream error parsing
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"timeflow/internal/core"
	"timeflow/internal/httpclient"
)

// maxResponseSize caps how much of an upstream body is read into memory
const maxResponseSize = 8 << 20

// Config holds configuration for the LLM client
type Config struct {
	// ProviderName identifies the provider in error details and logs
	ProviderName string

	// BaseURL is the API base URL
	BaseURL string
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for completion providers
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
}

// New creates a new LLM client with the shared default HTTP client
func New(config Config, headerSetter HeaderSetter) *Client {
	return NewWithHTTPClient(httpclient.NewDefaultHTTPClient(), config, headerSetter)
}

// NewWithHTTPClient creates a new LLM client with a custom HTTP client.
// If httpClient is nil, http.DefaultClient is used.
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	Body     any // Will be JSON marshaled if not nil
}

// Response represents a successful HTTP response
type Response struct {
	StatusCode int
	Body       []byte
}

// DoRaw executes a request once and returns the raw body of a 2xx response.
// Every failure, including non-2xx statuses and context expiry, is a core.ProxyError of the upstream kind.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, core.NewUpstreamError(c.config.ProviderName, "request aborted: "+ctxErr.Error(), errors.Join(ctxErr, err))
		}
		return nil, core.NewUpstreamError(c.config.ProviderName, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, core.NewUpstreamError(c.config.ProviderName, "failed to read response: "+err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseProviderError(c.config.ProviderName, resp.StatusCode, body)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := c.config.BaseURL + req.Endpoint

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewUpstreamError(c.config.ProviderName, "failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, core.NewUpstreamError(c.config.ProviderName, "failed to create request", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	// Apply provider-specific headers
	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	return httpReq, nil
}

// parseProviderError turns a non-2xx provider response into an upstream error.
// OpenAI-style bodies ({"error":{"message":...}}) contribute their message to the detail.
func parseProviderError(provider string, statusCode int, body []byte) *core.ProxyError {
	message := gjson.GetBytes(body, "error.message").String()
	if message == "" {
		message = gjson.GetBytes(body, "error").String()
	}
	if message == "" {
		message = string(body)
		if len(message) > 512 {
			message = message[:512]
		}
	}
	return core.NewUpstreamError(provider, fmt.Sprintf("status %d: %s", statusCode, message), &StatusError{StatusCode: statusCode})
}

// StatusError records the HTTP status of a failed provider response
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.StatusCode)
}
