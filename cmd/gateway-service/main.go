// cmd/gateway-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wagate/internal/challenge"
	"wagate/internal/dispatch"
	"wagate/internal/gatewayapi"
	"wagate/internal/protocol"
	"wagate/internal/webhookauth"
	"wagate/pkg/config"
	"wagate/pkg/db"
	"wagate/pkg/logger"
	"wagate/pkg/middleware"
	"wagate/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)

	var store tenants.Store
	if pool != nil {
		store = tenants.NewPostgresStore(pool, log)
		if err := tenants.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		if err := tenants.SeedFromEnv(context.Background(), pool, os.Getenv("TENANT_SEED_JSON")); err != nil {
			log.Warnw("seed", "err", err)
		}
	} else {
		store = tenants.NewMemoryStoreFromEnv(log)
	}

	var challenges challenge.Store
	if rdb := db.MustRedis(cfg, log); rdb != nil {
		challenges = challenge.NewRedisStore(rdb, cfg.QRTTL)
	} else {
		mem := challenge.NewMemoryStore(cfg.QRTTL)
		mem.StartSweeper(context.Background(), cfg.QRTTL)
		challenges = mem
	}

	httpClient := &http.Client{
		Timeout:   cfg.WebhookTimeout,
		Transport: middleware.OutboundTransport(nil),
	}
	auth := webhookauth.NewResolver(store, httpClient, cfg.TokenRefreshBuffer, log)
	dispatcher := dispatch.New(store, auth, challenges, httpClient, cfg.GlobalWebhookURL, log)

	// Integration point for the WhatsApp library: the adapter implements
	// protocol.Client and invokes the binder's callbacks for QR
	// challenges, messages, and lifecycle transitions.
	binder := protocol.NewBinder(dispatcher, challenges, log)
	var client protocol.Client // supplied by the adapter build

	app := gatewayapi.New(cfg, store, challenges, client, binder, log)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler()}
	go func() {
		log.Infow("gateway-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("gateway-service stopped")
}
