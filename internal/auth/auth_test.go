package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierRoundTrip(t *testing.T) {
	v, err := NewVerifier("s3cret", "spice")
	require.NoError(t, err)

	token, err := v.Issue("user_abc", time.Hour, time.Now())
	require.NoError(t, err)

	subject, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user_abc", subject)
}

func TestVerifierRejects(t *testing.T) {
	v, err := NewVerifier("s3cret", "spice")
	require.NoError(t, err)

	expired, err := v.Issue("user_abc", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	other, err := NewVerifier("different", "spice")
	require.NoError(t, err)
	forged, err := other.Issue("user_abc", time.Hour, time.Now())
	require.NoError(t, err)

	wrongIssuer, err := NewVerifier("s3cret", "someone-else")
	require.NoError(t, err)
	foreign, err := wrongIssuer.Issue("user_abc", time.Hour, time.Now())
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"wrong secret": forged,
		"wrong issuer": foreign,
		"garbage":      "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = NewVerifier("", "")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestMiddleware(t *testing.T) {
	v, err := NewVerifier("s3cret", "")
	require.NoError(t, err)
	token, err := v.Issue("user_mw", time.Hour, time.Now())
	require.NoError(t, err)

	var seen string
	var ok bool
	handler := v.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, ok = ContextIdentity{}.ExternalID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, ok)
	assert.Equal(t, "user_mw", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, ok)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, ok)
}

func TestStaticIdentity(t *testing.T) {
	ctx := context.Background()

	id, ok := StaticIdentity("cli_user").ExternalID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "cli_user", id)

	_, ok = StaticIdentity("").ExternalID(ctx)
	assert.False(t, ok)

	id, ok = StaticIdentity("cli_user").ExternalID(WithExternalID(ctx, "override"))
	assert.True(t, ok)
	assert.Equal(t, "override", id)
}

func TestResolveAndEnsureUser(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	_, err = ResolveUser(ctx, store, "")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = ResolveUser(ctx, store, "ghost")
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	user, created, err := EnsureUser(ctx, store, "ghost")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := EnsureUser(ctx, store, "ghost")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)

	resolved, err := ResolveUser(ctx, store, "ghost")
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}
