package tenants

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("tenant not found")
	// ErrUsernameRequired: the username doubles as the session id, so a
	// tenant without one could never be resolved for dispatch.
	ErrUsernameRequired = errors.New("tenant username required")
	// ErrAdminSessionState rejects writes that would give an admin tenant
	// session or webhook state.
	ErrAdminSessionState = errors.New("admin tenants hold no session or webhook state")
)

type Store interface {
	// Resolve tenant from a protocol session identifier. Regular tenants
	// only; the session id is the username by invariant. Absence is not
	// an error — it signals "no destination configured".
	ResolveBySession(ctx context.Context, sessionID string) (Tenant, bool, error)
	// Optional: resolve by username regardless of role.
	GetByUsername(ctx context.Context, username string) (Tenant, error)
	// Create enforces the username-equals-session invariant and refuses
	// webhook state on admin tenants.
	Create(ctx context.Context, t Tenant) error
	// UpdateWebhookAuth replaces the auth configuration and
	// unconditionally clears any cached token. For the bearer scheme the
	// provided token is a static credential, not a cache, and is kept.
	UpdateWebhookAuth(ctx context.Context, username string, auth WebhookAuth) error
	// SaveTokenCache persists a freshly fetched OAuth token and its
	// absolute expiration (write-through from the token fetch path).
	SaveTokenCache(ctx context.Context, username, token string, expiresAt time.Time) error
}
