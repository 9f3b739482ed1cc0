// Package auth identifies the caller of a request and maps that identity
// onto a stored user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

type externalIDKey struct{}

// WithExternalID returns a context carrying the authenticated subject.
func WithExternalID(ctx context.Context, externalID string) context.Context {
	return context.WithValue(ctx, externalIDKey{}, externalID)
}

// ExternalIDFromContext returns the subject stored by WithExternalID.
func ExternalIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(externalIDKey{}).(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

// ContextIdentity reads the caller from the request context. It is the
// identity used behind the HTTP middleware.
type ContextIdentity struct{}

// ExternalID implements service.Identity.
func (ContextIdentity) ExternalID(ctx context.Context) (string, bool) {
	return ExternalIDFromContext(ctx)
}

// StaticIdentity always reports the same subject. The CLI uses it to act
// as the configured user.
type StaticIdentity string

// ExternalID implements service.Identity.
func (s StaticIdentity) ExternalID(ctx context.Context) (string, bool) {
	if id, ok := ExternalIDFromContext(ctx); ok {
		return id, true
	}
	if strings.TrimSpace(string(s)) == "" {
		return "", false
	}
	return string(s), true
}

// ResolveUser maps an external identity onto its stored user. An empty id
// is common.ErrUnauthorized and an unknown one common.ErrUserNotFound.
func ResolveUser(ctx context.Context, store service.Store, externalID string) (*model.User, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, common.ErrUnauthorized
	}

	user, err := store.GetUserByExternalID(ctx, externalID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", common.ErrUserNotFound, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return user, nil
}

// EnsureUser resolves externalID, registering it on first access. created
// reports whether a new user record was written.
func EnsureUser(ctx context.Context, store service.Store, externalID string) (user *model.User, created bool, err error) {
	user, err = ResolveUser(ctx, store, externalID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, common.ErrUserNotFound) {
		return nil, false, err
	}

	user, err = store.CreateUser(ctx, externalID)
	if errors.Is(err, common.ErrDuplicateEntry) {
		// Lost a race with a concurrent first request.
		user, err = ResolveUser(ctx, store, externalID)
		return user, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to register user: %w", err)
	}
	return user, true, nil
}
