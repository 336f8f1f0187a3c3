// Package webhookauth turns a tenant's stored webhook-auth configuration
// into the HTTP headers attached to outbound callback calls. Failures
// never propagate: delivery proceeds unauthenticated rather than being
// blocked by a misconfigured tenant.
package webhookauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"wagate/pkg/metrics"
	"wagate/pkg/tenants"
)

const (
	// DefaultRefreshBuffer is the window before token expiry during which
	// the cache is proactively treated as stale.
	DefaultRefreshBuffer = 5 * time.Minute
	defaultExpiresIn     = 3600 // seconds, when the endpoint omits it
)

type Resolver struct {
	store  tenants.Store
	client *http.Client
	log    *zap.SugaredLogger
	buffer time.Duration
	now    func() time.Time
}

func NewResolver(store tenants.Store, client *http.Client, buffer time.Duration, log *zap.SugaredLogger) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if buffer <= 0 {
		buffer = DefaultRefreshBuffer
	}
	return &Resolver{store: store, client: client, log: log, buffer: buffer, now: time.Now}
}

// Headers resolves the auth headers for t. A nil tenant, an unconfigured
// scheme, or any acquisition failure yields an empty header set.
func (r *Resolver) Headers(ctx context.Context, t *tenants.Tenant) http.Header {
	h := http.Header{}
	if t == nil {
		return h
	}
	switch t.Auth.Type {
	case tenants.AuthBasic:
		if t.Auth.Username != "" && t.Auth.Password != "" {
			cred := base64.StdEncoding.EncodeToString([]byte(t.Auth.Username + ":" + t.Auth.Password))
			h.Set("Authorization", "Basic "+cred)
		}
	case tenants.AuthBearer:
		if t.Auth.Token != "" {
			h.Set("Authorization", "Bearer "+t.Auth.Token)
		}
	case tenants.AuthOAuth:
		tok, err := r.token(ctx, t)
		if err != nil {
			r.log.Warnw("oauth token unavailable, sending webhook unauthenticated",
				"tenant", t.Username, "err", err)
			return h
		}
		if tok != "" {
			h.Set("Authorization", "Bearer "+tok)
		}
	}
	return h
}

// token returns a usable access token for t, consulting the cache first.
// An empty token with nil error means "not configured".
func (r *Resolver) token(ctx context.Context, t *tenants.Tenant) (string, error) {
	if t.Auth.Username == "" || t.Auth.Password == "" || t.Auth.TokenURL == "" {
		return "", nil
	}
	if t.Auth.Token != "" && t.Auth.TokenExpiration != nil &&
		t.Auth.TokenExpiration.Add(-r.buffer).After(r.now()) {
		return t.Auth.Token, nil
	}
	tok, expiresAt, err := r.fetch(ctx, t)
	if err != nil {
		metrics.TokenFetches.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.TokenFetches.WithLabelValues("ok").Inc()
	// Write-through so concurrent dispatches reuse the token. A failed
	// cache write is logged but does not invalidate the fetched token.
	if err := r.store.SaveTokenCache(ctx, t.Username, tok, expiresAt); err != nil {
		r.log.Warnw("token cache write failed", "tenant", t.Username, "err", err)
	}
	t.Auth.Token = tok
	exp := expiresAt
	t.Auth.TokenExpiration = &exp
	return tok, nil
}

func (r *Resolver) fetch(ctx context.Context, t *tenants.Tenant) (string, time.Time, error) {
	var req *http.Request
	var err error
	if t.Auth.Format == tenants.FormatJSON {
		body, _ := json.Marshal(map[string]string{
			"username": t.Auth.Username,
			"password": t.Auth.Password,
		})
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, t.Auth.TokenURL, strings.NewReader(string(body)))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		form := url.Values{}
		form.Set("grant_type", "client_credentials")
		form.Set("client_id", t.Auth.Username)
		form.Set("client_secret", t.Auth.Password)
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, t.Auth.TokenURL, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return "", time.Time{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", time.Time{}, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", time.Time{}, err
	}
	tok, expiresIn, err := parseTokenResponse(raw)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, r.now().Add(time.Duration(expiresIn) * time.Second), nil
}

type tokenPayload struct {
	AccessToken    string          `json:"access_token"`
	Token          string          `json:"token"`
	ExpiresIn      json.Number     `json:"expires_in"`
	ExpiresInCamel json.Number     `json:"expiresIn"`
	Success        bool            `json:"success"`
	Data           json.RawMessage `json:"data"`
}

func (p tokenPayload) expiry() int64 {
	for _, n := range []json.Number{p.ExpiresIn, p.ExpiresInCamel} {
		if v, err := n.Int64(); err == nil && v > 0 {
			return v
		}
	}
	return defaultExpiresIn
}

// parseTokenResponse accepts, in priority order: a top-level
// access_token, a top-level token, or a {success:true,data:{token,...}}
// envelope. Anything else is a format error.
func parseTokenResponse(raw []byte) (string, int64, error) {
	var p tokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if p.AccessToken != "" {
		return p.AccessToken, p.expiry(), nil
	}
	if p.Token != "" {
		return p.Token, p.expiry(), nil
	}
	if p.Success && len(p.Data) > 0 {
		var inner tokenPayload
		if err := json.Unmarshal(p.Data, &inner); err == nil {
			if inner.AccessToken != "" {
				return inner.AccessToken, inner.expiry(), nil
			}
			if inner.Token != "" {
				return inner.Token, inner.expiry(), nil
			}
		}
	}
	return "", 0, errors.New("unrecognized token response shape")
}
