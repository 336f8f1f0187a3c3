package gatewayapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wagate/pkg/tenants"
)

// startSession kicks off the protocol handshake. The QR challenge shows
// up asynchronously through the binder; clients poll getSessionQR for it.
// Only a regular tenant whose username matches the session id may hold a
// session.
func (a *App) startSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	t, err := a.store.GetByUsername(r.Context(), sessionID)
	if err == tenants.ErrNotFound || (err == nil && t.Role != tenants.RoleRegular) {
		http.Error(w, "no tenant for session", http.StatusNotFound)
		return
	}
	if err != nil {
		a.log.Errorw("tenant lookup failed", "session", sessionID, "err", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	if a.client == nil {
		http.Error(w, "protocol client not configured", http.StatusServiceUnavailable)
		return
	}
	if err := a.client.StartSession(r.Context(), sessionID); err != nil {
		a.log.Errorw("session start failed", "session", sessionID, "err", err)
		http.Error(w, "session start failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "session": sessionID}, http.StatusAccepted)
}

// deleteSession logs the session out (best-effort) and drops any pending
// challenge so the QR poller stops seeing one.
func (a *App) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if a.client != nil {
		if err := a.client.Logout(r.Context(), sessionID); err != nil {
			a.log.Warnw("logout failed", "session", sessionID, "err", err)
		}
	}
	a.binder.OnSessionDeleted(r.Context(), sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) getSessionQR(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	payload, ok, err := a.challenges.Get(r.Context(), sessionID)
	if err != nil {
		a.log.Errorw("challenge read failed", "session", sessionID, "err", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	if !ok {
		// Absent and expired look the same to the poller.
		writeJSON(w, map[string]any{"pending": false}, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"pending": true, "qr": payload}, http.StatusOK)
}

type webhookAuthBody struct {
	Type     string `json:"webhook_auth_type"`
	Username string `json:"webhook_auth_username"`
	Password string `json:"webhook_auth_password"`
	Token    string `json:"webhook_auth_token"` // static credential for the bearer scheme
	TokenURL string `json:"webhook_auth_token_url"`
	Format   string `json:"webhook_oauth_format"`
}

func (a *App) putWebhookAuth(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	var b webhookAuthBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	auth := tenants.WebhookAuth{
		Type:     tenants.NormalizeAuthType(b.Type),
		Username: b.Username,
		Password: b.Password,
		Token:    b.Token,
		TokenURL: b.TokenURL,
		Format:   tenants.NormalizeFormat(b.Format),
	}
	// The store clears any cached token in the same operation.
	if err := a.store.UpdateWebhookAuth(r.Context(), username, auth); err != nil {
		switch err {
		case tenants.ErrNotFound:
			http.Error(w, "tenant not found", http.StatusNotFound)
		case tenants.ErrAdminSessionState:
			http.Error(w, "admin tenants hold no webhook config", http.StatusConflict)
		default:
			a.log.Errorw("webhook auth update failed", "tenant", username, "err", err)
			http.Error(w, "store error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, map[string]any{"ok": true}, http.StatusOK)
}
