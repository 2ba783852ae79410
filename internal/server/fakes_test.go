package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"timeflow/internal/core"
)

// fakeVerifier accepts exactly one token
type fakeVerifier struct {
	mu     sync.Mutex
	valid  string
	uid    string
	calls  int
	tokens []string
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (*core.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.tokens = append(f.tokens, token)
	if token == "" || token != f.valid {
		return nil, errors.New("Firebase ID token has expired")
	}
	return &core.Identity{UID: f.uid, Provider: "fake"}, nil
}

func (f *fakeVerifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type completeCall struct {
	model    string
	messages []core.Message
	deadline bool
}

// fakeProvider records every call and returns a canned result
type fakeProvider struct {
	mu            sync.Mutex
	text          string
	upstreamModel string
	usage         json.RawMessage
	err           error
	block         bool
	calls         []completeCall
	requestIDs    []string
}

func (f *fakeProvider) Complete(ctx context.Context, model string, messages []core.Message) (*core.Completion, error) {
	f.mu.Lock()
	_, hasDeadline := ctx.Deadline()
	f.calls = append(f.calls, completeCall{model: model, messages: messages, deadline: hasDeadline})
	f.requestIDs = append(f.requestIDs, core.GetRequestID(ctx))
	block, text, usage, err := f.block, f.text, f.usage, f.err
	resolved := f.upstreamModel
	f.mu.Unlock()
	if resolved == "" {
		resolved = model
	}

	if block {
		<-ctx.Done()
		return nil, core.NewUpstreamError("fake", "request aborted: "+ctx.Err().Error(), ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	return &core.Completion{Text: text, Usage: usage, Model: resolved}, nil
}

func (f *fakeProvider) Calls() []completeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]completeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const validToken = "valid-id-token"

func newTestServer(provider *fakeProvider, cfg *Config) (*Server, *fakeVerifier) {
	verifier := &fakeVerifier{valid: validToken, uid: "user-123"}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return New(verifier, provider, cfg), verifier
}
