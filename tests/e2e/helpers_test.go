//go:build e2e

package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// sendCompletion posts a raw body with the given Authorization header ("" omits it).
func sendCompletion(t *testing.T, authHeader, body string) *http.Response {
	t.Helper()
	resp, err := sendCompletionNoT(authHeader, body)
	require.NoError(t, err)
	return resp
}

// sendCompletionNoT is sendCompletion for goroutines, where require is unsafe.
func sendCompletionNoT(authHeader, body string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, gatewayURL+"/", strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

// readBody reads and closes the response body.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer closeBody(resp)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// decodeBody decodes the JSON response body into v and closes it.
func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer closeBody(resp)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// closeBody is a helper to close response body in defer statements.
func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}
