// Package e2e drives the full proxy stack (static token verifier, OpenAI provider,
// HTTP server) against an in-process mock of the OpenAI chat completions API.
//
// Run with: go test -tags=e2e ./tests/e2e/...
package e2e
