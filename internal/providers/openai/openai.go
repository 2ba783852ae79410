// Package openai provides a completion provider for OpenAI-compatible chat-completions APIs.
package openai

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tidwall/gjson"

	"timeflow/internal/core"
	"timeflow/internal/llmclient"
)

const (
	providerName = "openai"

	// DefaultBaseURL is the public OpenAI API
	DefaultBaseURL = "https://api.openai.com/v1"
)

// Provider implements core.CompletionProvider for OpenAI
type Provider struct {
	client *llmclient.Client
	apiKey string
}

// New creates a new OpenAI provider. An empty baseURL selects DefaultBaseURL.
func New(apiKey, baseURL string) *Provider {
	return NewWithHTTPClient(apiKey, baseURL, nil)
}

// NewWithHTTPClient creates a new OpenAI provider with a custom HTTP client.
// If httpClient is nil, the shared pooled client is used.
func NewWithHTTPClient(apiKey, baseURL string, httpClient *http.Client) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &Provider{apiKey: apiKey}
	cfg := llmclient.Config{
		ProviderName: providerName,
		BaseURL:      baseURL,
	}
	if httpClient == nil {
		p.client = llmclient.New(cfg, p.setHeaders)
	} else {
		p.client = llmclient.NewWithHTTPClient(httpClient, cfg, p.setHeaders)
	}
	return p
}

// setHeaders sets the required headers for OpenAI API requests
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	// OpenAI rejects X-Client-Request-Id values that are non-ASCII or longer than 512 bytes.
	if requestID := core.GetRequestID(req.Context()); requestID != "" && isValidClientRequestID(requestID) {
		req.Header.Set("X-Client-Request-Id", requestID)
	}
}

func isValidClientRequestID(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 127 {
			return false
		}
	}
	return true
}

// chatRequest is the JSON body of POST /chat/completions
type chatRequest struct {
	Model    string         `json:"model"`
	Messages []core.Message `json:"messages"`
}

// Complete sends a chat completion request and returns the first choice's text
// together with the provider's usage object, untouched.
func (p *Provider) Complete(ctx context.Context, model string, messages []core.Message) (*core.Completion, error) {
	resp, err := p.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body: chatRequest{
			Model:    model,
			Messages: messages,
		},
	})
	if err != nil {
		return nil, err
	}
	return parseCompletion(resp.Body, model)
}

func parseCompletion(body []byte, requestedModel string) (*core.Completion, error) {
	if !gjson.ValidBytes(body) {
		return nil, core.NewUpstreamError(providerName, "response is not valid JSON", nil)
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if content.Type != gjson.String {
		return nil, core.NewUpstreamError(providerName, "response has no text in choices[0].message.content", nil)
	}

	completion := &core.Completion{
		Text:  content.String(),
		Model: gjson.GetBytes(body, "model").String(),
	}
	if completion.Model == "" {
		completion.Model = requestedModel
	}

	if usage := gjson.GetBytes(body, "usage"); usage.Exists() {
		// Raw is a substring of body; copy so the completion does not pin the whole response.
		completion.Usage = json.RawMessage(append([]byte(nil), usage.Raw...))
	}
	return completion, nil
}
