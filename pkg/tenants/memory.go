// pkg/tenants/memory.go
package tenants

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memStore struct {
	log *zap.SugaredLogger

	mu         sync.RWMutex
	byUsername map[string]Tenant
}

// NewMemoryStoreFromEnv builds an in-memory store, optionally seeded from
// TENANT_SEED_JSON: a list of {username, role, callback_url, webhook_auth_*}
// entries. Used for dev when no database is configured.
func NewMemoryStoreFromEnv(log *zap.SugaredLogger) Store {
	s := &memStore{log: log, byUsername: map[string]Tenant{}}
	seed := os.Getenv("TENANT_SEED_JSON")
	if seed == "" {
		return s
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
	_ = json.Unmarshal([]byte(seed), &entries)
	for _, e := range entries {
		role := RoleRegular
		if Role(e.Role) == RoleAdmin {
			role = RoleAdmin
		}
		t := Tenant{ID: uuid.NewString(), Username: e.Username, Role: role}
		if role == RoleRegular {
			t.CallbackURL = e.CallbackURL
			t.Auth = WebhookAuth{
				Type:     NormalizeAuthType(e.WebhookAuthType),
				Username: e.WebhookAuthUser,
				Password: e.WebhookAuthPass,
				TokenURL: e.TokenURL,
				Format:   NormalizeFormat(e.OAuthFormat),
			}
		}
		s.byUsername[t.Username] = t
	}
	return s
}

func (s *memStore) ResolveBySession(ctx context.Context, sessionID string) (Tenant, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byUsername[sessionID]
	if !ok || t.Role != RoleRegular {
		return Tenant{}, false, nil
	}
	return t, true, nil
}

func (s *memStore) GetByUsername(ctx context.Context, username string) (Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byUsername[username]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (s *memStore) Create(ctx context.Context, t Tenant) error {
	if t.Username == "" {
		return ErrUsernameRequired
	}
	if t.Role == RoleAdmin && (t.CallbackURL != "" || t.Auth != (WebhookAuth{})) {
		return ErrAdminSessionState
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Auth.Type = NormalizeAuthType(string(t.Auth.Type))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUsername[t.Username] = t
	return nil
}

func (s *memStore) UpdateWebhookAuth(ctx context.Context, username string, auth WebhookAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byUsername[username]
	if !ok {
		return ErrNotFound
	}
	if t.Role == RoleAdmin {
		return ErrAdminSessionState
	}
	auth.Type = NormalizeAuthType(string(auth.Type))
	auth.Format = NormalizeFormat(string(auth.Format))
	// Stale tokens must never survive a credential change. Bearer keeps
	// the incoming token: there it is the static credential itself.
	auth.TokenExpiration = nil
	if auth.Type != AuthBearer {
		auth.Token = ""
	}
	t.Auth = auth
	s.byUsername[username] = t
	return nil
}

func (s *memStore) SaveTokenCache(ctx context.Context, username, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byUsername[username]
	if !ok {
		return ErrNotFound
	}
	t.Auth.Token = token
	exp := expiresAt
	t.Auth.TokenExpiration = &exp
	s.byUsername[username] = t
	return nil
}
