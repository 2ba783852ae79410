package identity

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeflow/config"
)

type fakeAuthClient struct {
	token        *auth.Token
	err          error
	verifyCalls  int
	revokedCalls int
	lastToken    string
}

func (f *fakeAuthClient) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	f.verifyCalls++
	f.lastToken = idToken
	return f.token, f.err
}

func (f *fakeAuthClient) VerifyIDTokenAndCheckRevoked(_ context.Context, idToken string) (*auth.Token, error) {
	f.revokedCalls++
	f.lastToken = idToken
	return f.token, f.err
}

func TestFirebaseVerifier_Verify(t *testing.T) {
	tests := []struct {
		name     string
		client   *fakeAuthClient
		token    string
		wantUID  string
		wantErr  bool
		wantCall bool
	}{
		{
			name:     "valid token",
			client:   &fakeAuthClient{token: &auth.Token{UID: "uid-123"}},
			token:    "id-token",
			wantUID:  "uid-123",
			wantCall: true,
		},
		{
			name:     "expired token",
			client:   &fakeAuthClient{err: errors.New("ID token has expired")},
			token:    "id-token",
			wantErr:  true,
			wantCall: true,
		},
		{
			name:     "token without subject",
			client:   &fakeAuthClient{token: &auth.Token{}},
			token:    "id-token",
			wantErr:  true,
			wantCall: true,
		},
		{
			name:    "empty token never reaches firebase",
			client:  &fakeAuthClient{token: &auth.Token{UID: "uid-123"}},
			token:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newFirebaseVerifier(tt.client, false)
			id, err := v.Verify(context.Background(), tt.token)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, id)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantUID, id.UID)
				assert.Equal(t, TypeFirebase, id.Provider)
			}
			assert.Equal(t, tt.wantCall, tt.client.verifyCalls == 1)
			assert.Zero(t, tt.client.revokedCalls)
		})
	}
}

func TestFirebaseVerifier_CheckRevoked(t *testing.T) {
	client := &fakeAuthClient{token: &auth.Token{UID: "uid-9"}}
	v := newFirebaseVerifier(client, true)

	id, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "uid-9", id.UID)
	assert.Equal(t, 1, client.revokedCalls)
	assert.Zero(t, client.verifyCalls)
	assert.Equal(t, "tok", client.lastToken)
}

func TestStaticVerifier(t *testing.T) {
	v, err := NewStaticVerifier([]string{"alpha", "", "beta"})
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), "beta")
	require.NoError(t, err)
	assert.Equal(t, "static-1", id.UID)
	assert.Equal(t, TypeStatic, id.Provider)

	_, err = v.Verify(context.Background(), "gamma")
	assert.Error(t, err)

	_, err = v.Verify(context.Background(), "")
	assert.Error(t, err)

	_, err = v.Verify(context.Background(), "alph")
	assert.Error(t, err)
}

func TestNewStaticVerifier_RequiresTokens(t *testing.T) {
	_, err := NewStaticVerifier(nil)
	assert.Error(t, err)

	_, err = NewStaticVerifier([]string{""})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	v, err := New(context.Background(), config.IdentityConfig{Type: TypeStatic, StaticTokens: []string{"dev"}})
	require.NoError(t, err)
	assert.IsType(t, &StaticVerifier{}, v)

	_, err = New(context.Background(), config.IdentityConfig{Type: "ldap"})
	assert.ErrorContains(t, err, "unknown identity type")
}
