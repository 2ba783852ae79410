// Package identity verifies the bearer tokens presented by TimeFlow clients.
package identity

import (
	"context"
	"fmt"

	"timeflow/config"
	"timeflow/internal/core"
)

// Verifier types accepted in configuration
const (
	TypeFirebase = "firebase"
	TypeStatic   = "static"
)

// New builds the TokenVerifier selected by cfg.Type.
func New(ctx context.Context, cfg config.IdentityConfig) (core.TokenVerifier, error) {
	switch cfg.Type {
	case TypeFirebase, "":
		return NewFirebaseVerifier(ctx, FirebaseConfig{
			ProjectID:       cfg.ProjectID,
			CredentialsFile: cfg.CredentialsFile,
			CheckRevoked:    cfg.CheckRevoked,
		})
	case TypeStatic:
		return NewStaticVerifier(cfg.StaticTokens)
	default:
		return nil, fmt.Errorf("unknown identity type: %q", cfg.Type)
	}
}
