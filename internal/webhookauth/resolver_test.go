package webhookauth

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wagate/pkg/tenants"
)

type stubStore struct {
	tenants.Store
	savedToken string
	savedExp   time.Time
	saves      int
}

func (s *stubStore) SaveTokenCache(ctx context.Context, username, token string, expiresAt time.Time) error {
	s.savedToken = token
	s.savedExp = expiresAt
	s.saves++
	return nil
}

func newTestResolver(t *testing.T, store tenants.Store) *Resolver {
	t.Helper()
	return NewResolver(store, &http.Client{Timeout: time.Second}, 5*time.Minute, zap.NewNop().Sugar())
}

func TestHeadersNilTenant(t *testing.T) {
	r := newTestResolver(t, &stubStore{})
	require.Empty(t, r.Headers(context.Background(), nil))
}

func TestHeadersBasic(t *testing.T) {
	r := newTestResolver(t, &stubStore{})
	tn := &tenants.Tenant{Username: "alice", Auth: tenants.WebhookAuth{
		Type: tenants.AuthBasic, Username: "user", Password: "pass",
	}}
	h := r.Headers(context.Background(), tn)
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
	require.Equal(t, want, h.Get("Authorization"))
	require.Len(t, h, 1)
}

func TestHeadersBasicMissingCredentialIsInert(t *testing.T) {
	r := newTestResolver(t, &stubStore{})
	tn := &tenants.Tenant{Auth: tenants.WebhookAuth{Type: tenants.AuthBasic, Username: "user"}}
	require.Empty(t, r.Headers(context.Background(), tn))
}

func TestHeadersBearer(t *testing.T) {
	r := newTestResolver(t, &stubStore{})
	tn := &tenants.Tenant{Auth: tenants.WebhookAuth{Type: tenants.AuthBearer, Token: "static-tok"}}
	h := r.Headers(context.Background(), tn)
	require.Equal(t, "Bearer static-tok", h.Get("Authorization"))
}

func TestOAuthCachedTokenSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	r := newTestResolver(t, &stubStore{})
	exp := time.Now().Add(10 * time.Minute)
	tn := &tenants.Tenant{Username: "alice", Auth: tenants.WebhookAuth{
		Type: tenants.AuthOAuth, Username: "id", Password: "secret",
		TokenURL: srv.URL, Token: "cached-tok", TokenExpiration: &exp,
	}}
	h := r.Headers(context.Background(), tn)
	require.Equal(t, "Bearer cached-tok", h.Get("Authorization"))
	require.Zero(t, hits.Load())
}

func TestOAuthRefreshInsideBufferPersistsNewToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		require.Equal(t, "id", r.Form.Get("client_id"))
		require.Equal(t, "secret", r.Form.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-tok","expires_in":7200}`))
	}))
	defer srv.Close()

	store := &stubStore{}
	r := newTestResolver(t, store)
	base := time.Now()
	r.now = func() time.Time { return base }

	exp := base.Add(2 * time.Minute) // inside the 5m safety buffer
	tn := &tenants.Tenant{Username: "alice", Auth: tenants.WebhookAuth{
		Type: tenants.AuthOAuth, Username: "id", Password: "secret",
		TokenURL: srv.URL, Token: "old-tok", TokenExpiration: &exp,
	}}
	h := r.Headers(context.Background(), tn)
	require.Equal(t, "Bearer fresh-tok", h.Get("Authorization"))
	require.Equal(t, 1, store.saves)
	require.Equal(t, "fresh-tok", store.savedToken)
	require.Equal(t, base.Add(7200*time.Second), store.savedExp)
	// In-memory record updated too, so a second resolve hits the cache.
	require.Equal(t, "fresh-tok", tn.Auth.Token)
}

func TestOAuthJSONFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"access_token":"tok"}`))
	}))
	defer srv.Close()

	r := newTestResolver(t, &stubStore{})
	tn := &tenants.Tenant{Username: "alice", Auth: tenants.WebhookAuth{
		Type: tenants.AuthOAuth, Username: "id", Password: "secret",
		TokenURL: srv.URL, Format: tenants.FormatJSON,
	}}
	h := r.Headers(context.Background(), tn)
	require.Equal(t, "Bearer tok", h.Get("Authorization"))
}

func TestOAuthMissingPrerequisitesIsInert(t *testing.T) {
	r := newTestResolver(t, &stubStore{})
	tn := &tenants.Tenant{Auth: tenants.WebhookAuth{
		Type: tenants.AuthOAuth, Username: "id", Password: "secret", // no token URL
	}}
	require.Empty(t, r.Headers(context.Background(), tn))
}

func TestOAuthFailuresDegradeToEmptyHeaders(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-2xx": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"unrecognized shape": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"weird":"shape"}`))
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>nope</html>`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			r := newTestResolver(t, &stubStore{})
			tn := &tenants.Tenant{Username: "alice", Auth: tenants.WebhookAuth{
				Type: tenants.AuthOAuth, Username: "id", Password: "secret", TokenURL: srv.URL,
			}}
			require.Empty(t, r.Headers(context.Background(), tn))
		})
	}
}

func TestParseTokenResponseShapes(t *testing.T) {
	tok, exp, err := parseTokenResponse([]byte(`{"access_token":"a","expires_in":120}`))
	require.NoError(t, err)
	require.Equal(t, "a", tok)
	require.EqualValues(t, 120, exp)

	tok, exp, err = parseTokenResponse([]byte(`{"token":"abc","expiresIn":120}`))
	require.NoError(t, err)
	require.Equal(t, "abc", tok)
	require.EqualValues(t, 120, exp)

	tok, exp, err = parseTokenResponse([]byte(`{"success":true,"data":{"token":"d","expires_in":60}}`))
	require.NoError(t, err)
	require.Equal(t, "d", tok)
	require.EqualValues(t, 60, exp)

	// expires_in defaults to an hour when absent.
	tok, exp, err = parseTokenResponse([]byte(`{"access_token":"a"}`))
	require.NoError(t, err)
	require.Equal(t, "a", tok)
	require.EqualValues(t, 3600, exp)

	// success:false envelopes are not unwrapped.
	_, _, err = parseTokenResponse([]byte(`{"success":false,"data":{"token":"d"}}`))
	require.Error(t, err)
}
