package identity

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"timeflow/internal/core"
)

// FirebaseConfig selects the Firebase project whose ID tokens are accepted
type FirebaseConfig struct {
	ProjectID string
	// CredentialsFile is a service account JSON file. Empty uses Application Default Credentials.
	CredentialsFile string
	// CheckRevoked additionally rejects tokens whose session was revoked (one extra lookup per request)
	CheckRevoked bool
}

// idTokenVerifier is the subset of *auth.Client used here
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier validates Firebase Authentication ID tokens
type FirebaseVerifier struct {
	client       idTokenVerifier
	checkRevoked bool
}

// NewFirebaseVerifier initializes a Firebase app and its auth client.
// Public signing keys are fetched lazily by the SDK on first verification.
func NewFirebaseVerifier(ctx context.Context, cfg FirebaseConfig) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth client: %w", err)
	}

	return newFirebaseVerifier(client, cfg.CheckRevoked), nil
}

func newFirebaseVerifier(client idTokenVerifier, checkRevoked bool) *FirebaseVerifier {
	return &FirebaseVerifier{client: client, checkRevoked: checkRevoked}
}

// Verify implements core.TokenVerifier
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*core.Identity, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}

	var (
		tok *auth.Token
		err error
	)
	if v.checkRevoked {
		tok, err = v.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	} else {
		tok, err = v.client.VerifyIDToken(ctx, token)
	}
	if err != nil {
		return nil, fmt.Errorf("firebase: %w", err)
	}
	if tok == nil || tok.UID == "" {
		return nil, errors.New("firebase: token has no subject")
	}

	return &core.Identity{UID: tok.UID, Provider: TypeFirebase}, nil
}
