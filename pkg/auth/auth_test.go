package auth_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Astemirdum/library-circulation/pkg/auth"
	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/require"
)

func TestToken_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now()
	token, err := auth.NewToken(secret, auth.Profile{Username: "alice", Role: auth.RoleLibrarian}, time.Hour, now)
	require.NoError(t, err)

	claims, err := auth.ParseToken(secret, token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Profile.Username)
	require.Equal(t, auth.RoleLibrarian, claims.Profile.Role)

	_, err = auth.ParseToken([]byte("other"), token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestToken_Expired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := auth.NewToken(secret, auth.Profile{Username: "bob", Role: auth.RoleMember}, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = auth.ParseToken(secret, token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestToken_EmptySecretRejected(t *testing.T) {
	_, err := auth.NewToken(nil, auth.Profile{Username: "mallory", Role: auth.RoleAdmin}, time.Hour, time.Now())
	require.ErrorIs(t, err, auth.ErrEmptySecret)

	token, err := auth.NewToken([]byte("test-secret"), auth.Profile{Username: "mallory", Role: auth.RoleAdmin}, time.Hour, time.Now())
	require.NoError(t, err)

	_, err = auth.ParseToken([]byte{}, token)
	require.ErrorIs(t, err, auth.ErrEmptySecret)
	_, err = auth.ParseToken(nil, token)
	require.ErrorIs(t, err, auth.ErrEmptySecret)
}

func TestConfig_SecretRequired(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	require.NoError(t, os.Unsetenv("AUTH_SECRET"))
	var cfg auth.Config
	require.Error(t, envconfig.Process("", &cfg))

	t.Setenv("AUTH_SECRET", "s3cret")
	require.NoError(t, envconfig.Process("", &cfg))
	require.Equal(t, "s3cret", cfg.Secret)
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		name  string
		ctx   context.Context
		roles []auth.Role
		want  bool
	}{
		{name: "no profile", ctx: context.Background(), roles: []auth.Role{auth.RoleMember}, want: false},
		{name: "member", ctx: auth.SetAuthContext(context.Background(), "m", auth.RoleMember), roles: []auth.Role{auth.RoleMember}, want: true},
		{name: "member not librarian", ctx: auth.SetAuthContext(context.Background(), "m", auth.RoleMember), roles: []auth.Role{auth.RoleLibrarian}, want: false},
		{name: "admin passes", ctx: auth.SetAuthContext(context.Background(), "a", auth.RoleAdmin), roles: []auth.Role{auth.RoleLibrarian}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, auth.HasRole(tt.ctx, tt.roles...))
		})
	}
}
