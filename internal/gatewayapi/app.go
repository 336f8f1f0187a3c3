// Package gatewayapi exposes the delivery subsystem's HTTP surface: QR
// challenge polling for in-flight sessions and the webhook-auth
// configuration endpoint whose updates invalidate cached tokens.
package gatewayapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"wagate/internal/challenge"
	"wagate/internal/protocol"
	"wagate/pkg/config"
	"wagate/pkg/middleware"
	"wagate/pkg/tenants"
)

type App struct {
	cfg        config.Config
	log        *zap.SugaredLogger
	store      tenants.Store
	challenges challenge.Store
	client     protocol.Client // nil until the WhatsApp adapter is wired
	binder     *protocol.Binder
}

func New(cfg config.Config, store tenants.Store, challenges challenge.Store,
	client protocol.Client, binder *protocol.Binder, log *zap.SugaredLogger) *App {
	return &App{cfg: cfg, log: log, store: store, challenges: challenges, client: client, binder: binder}
}

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.Tracing())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.BasicAuth(a.cfg.AdminUser, a.cfg.AdminPassword))
		pr.Post("/sessions/{id}/start", a.startSession)
		pr.Get("/sessions/{id}/qr", a.getSessionQR)
		pr.Delete("/sessions/{id}", a.deleteSession)
		pr.Put("/tenants/{username}/webhook-auth", a.putWebhookAuth)
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
