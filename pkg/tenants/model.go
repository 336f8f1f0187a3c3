package tenants

import "time"

// Role separates operators from session-owning users. Admin tenants hold
// no session and no webhook configuration.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleRegular Role = "regular"
)

// AuthType selects the scheme applied to outbound webhook calls.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
	AuthOAuth  AuthType = "oauth"
)

// OAuthFormat selects the token request encoding.
type OAuthFormat string

const (
	FormatOAuth2 OAuthFormat = "oauth2" // form-encoded client_credentials grant
	FormatJSON   OAuthFormat = "json"   // {"username":...,"password":...}
)

// WebhookAuth is the per-tenant outbound auth configuration plus the
// OAuth token cache. Exactly one scheme is active at a time; changing the
// scheme or its credentials invalidates the cache.
type WebhookAuth struct {
	Type     AuthType
	Username string
	Password string
	TokenURL string
	Format   OAuthFormat

	// Cache fields, owned by the token-acquisition path.
	Token           string
	TokenExpiration *time.Time
}

// Tenant represents a gateway user. A regular tenant's Username doubles
// as its protocol session identifier.
type Tenant struct {
	ID           string // uuid
	Username     string
	Role         Role
	PasswordHash string
	CallbackURL  string
	Auth         WebhookAuth
}

// NormalizeAuthType maps unknown values to AuthNone at the configuration
// boundary so the dispatch path only ever sees the four known schemes.
func NormalizeAuthType(s string) AuthType {
	switch AuthType(s) {
	case AuthBasic, AuthBearer, AuthOAuth:
		return AuthType(s)
	default:
		return AuthNone
	}
}

// NormalizeFormat defaults anything that isn't "json" to the standard
// client_credentials form encoding.
func NormalizeFormat(s string) OAuthFormat {
	if OAuthFormat(s) == FormatJSON {
		return FormatJSON
	}
	return FormatOAuth2
}
