// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist plus
// newer webhook-auth columns. Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id uuid PRIMARY KEY,
  username text UNIQUE NOT NULL,
  role text NOT NULL DEFAULT 'regular',
  password_hash text,
  callback_url text,
  webhook_auth_type text DEFAULT 'none',
  webhook_auth_username text,
  webhook_auth_password text,
  webhook_auth_token_url text,
  webhook_oauth_format text DEFAULT 'oauth2',
  webhook_auth_token text,
  webhook_auth_token_expiration timestamptz,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
-- Backfill / ensure new columns exist (for upgrades)
ALTER TABLE tenants ADD COLUMN IF NOT EXISTS webhook_oauth_format text DEFAULT 'oauth2';
ALTER TABLE tenants ADD COLUMN IF NOT EXISTS webhook_auth_token text;
ALTER TABLE tenants ADD COLUMN IF NOT EXISTS webhook_auth_token_expiration timestamptz;
`)
	return err
}

// SeedFromEnv inserts tenants described by a TENANT_SEED_JSON payload,
// skipping usernames that already exist.
func SeedFromEnv(ctx context.Context, dbPool *pgxpool.Pool, seed string) error {
	if seed == "" {
		return nil
	}
	var entries []struct {
		Username        string `json:"username"`
		Role            string `json:"role"`
		CallbackURL     string `json:"callback_url"`
		WebhookAuthType string `json:"webhook_auth_type"`
		WebhookAuthUser string `json:"webhook_auth_username"`
		WebhookAuthPass string `json:"webhook_auth_password"`
		TokenURL        string `json:"webhook_auth_token_url"`
		OAuthFormat     string `json:"webhook_oauth_format"`
	}
	if err := json.Unmarshal([]byte(seed), &entries); err != nil {
		return err
	}
	for _, e := range entries {
		role := RoleRegular
		if Role(e.Role) == RoleAdmin {
			role = RoleAdmin
		}
		_, err := dbPool.Exec(ctx, `
INSERT INTO tenants (id, username, role, callback_url, webhook_auth_type, webhook_auth_username, webhook_auth_password, webhook_auth_token_url, webhook_oauth_format)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (username) DO NOTHING`,
			uuid.NewString(), e.Username, string(role), nullIfEmpty(e.CallbackURL),
			string(NormalizeAuthType(e.WebhookAuthType)), nullIfEmpty(e.WebhookAuthUser),
			nullIfEmpty(e.WebhookAuthPass), nullIfEmpty(e.TokenURL),
			string(NormalizeFormat(e.OAuthFormat)))
		if err != nil {
			return err
		}
	}
	return nil
}

const tenantCols = `id, username, role, COALESCE(password_hash,''), COALESCE(callback_url,''),
COALESCE(webhook_auth_type,'none'), COALESCE(webhook_auth_username,''), COALESCE(webhook_auth_password,''),
COALESCE(webhook_auth_token_url,''), COALESCE(webhook_oauth_format,'oauth2'),
COALESCE(webhook_auth_token,''), webhook_auth_token_expiration`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	var role, authType, format string
	var exp *time.Time
	err := row.Scan(&t.ID, &t.Username, &role, &t.PasswordHash, &t.CallbackURL,
		&authType, &t.Auth.Username, &t.Auth.Password, &t.Auth.TokenURL, &format,
		&t.Auth.Token, &exp)
	if err != nil {
		return Tenant{}, err
	}
	t.Role = Role(role)
	t.Auth.Type = NormalizeAuthType(authType)
	t.Auth.Format = NormalizeFormat(format)
	t.Auth.TokenExpiration = exp
	return t, nil
}

func (s *pgStore) ResolveBySession(ctx context.Context, sessionID string) (Tenant, bool, error) {
	row := s.dbPool.QueryRow(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE username=$1 AND role='regular'`, sessionID)
	t, err := scanTenant(row)
	if err == pgx.ErrNoRows {
		return Tenant{}, false, nil
	}
	if err != nil {
		return Tenant{}, false, err
	}
	return t, true, nil
}

func (s *pgStore) GetByUsername(ctx context.Context, username string) (Tenant, error) {
	row := s.dbPool.QueryRow(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE username=$1`, username)
	t, err := scanTenant(row)
	if err == pgx.ErrNoRows {
		return Tenant{}, ErrNotFound
	}
	return t, err
}

func (s *pgStore) Create(ctx context.Context, t Tenant) error {
	if t.Username == "" {
		return ErrUsernameRequired
	}
	if t.Role == RoleAdmin && (t.CallbackURL != "" || t.Auth != (WebhookAuth{})) {
		return ErrAdminSessionState
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.dbPool.Exec(ctx, `
INSERT INTO tenants (id, username, role, password_hash, callback_url, webhook_auth_type, webhook_auth_username, webhook_auth_password, webhook_auth_token_url, webhook_oauth_format)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.Username, string(t.Role), nullIfEmpty(t.PasswordHash), nullIfEmpty(t.CallbackURL),
		string(NormalizeAuthType(string(t.Auth.Type))), nullIfEmpty(t.Auth.Username),
		nullIfEmpty(t.Auth.Password), nullIfEmpty(t.Auth.TokenURL),
		string(NormalizeFormat(string(t.Auth.Format))))
	return err
}

func (s *pgStore) UpdateWebhookAuth(ctx context.Context, username string, auth WebhookAuth) error {
	// Cache columns reset in the same statement so a stale token can
	// never be observed after a credential change. Bearer keeps the
	// incoming token: there it is the static credential itself.
	authType := NormalizeAuthType(string(auth.Type))
	var staticToken any
	if authType == AuthBearer && auth.Token != "" {
		staticToken = auth.Token
	}
	tag, err := s.dbPool.Exec(ctx, `
UPDATE tenants
SET webhook_auth_type=$1, webhook_auth_username=$2, webhook_auth_password=$3,
    webhook_auth_token_url=$4, webhook_oauth_format=$5,
    webhook_auth_token=$6, webhook_auth_token_expiration=NULL,
    updated_at=NOW()
WHERE username=$7 AND role='regular'`,
		string(authType), nullIfEmpty(auth.Username),
		nullIfEmpty(auth.Password), nullIfEmpty(auth.TokenURL),
		string(NormalizeFormat(string(auth.Format))), staticToken, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) SaveTokenCache(ctx context.Context, username, token string, expiresAt time.Time) error {
	tag, err := s.dbPool.Exec(ctx, `
UPDATE tenants
SET webhook_auth_token=$1, webhook_auth_token_expiration=$2, updated_at=NOW()
WHERE username=$3`, token, expiresAt, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
