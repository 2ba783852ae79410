package core

import "context"

// TokenVerifier resolves a bearer token to an identity.
// Any returned error means the token is invalid or expired.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// CompletionProvider generates text from a model identifier and an ordered
// list of role-tagged messages.
type CompletionProvider interface {
	Complete(ctx context.Context, model string, messages []Message) (*Completion, error)
}
