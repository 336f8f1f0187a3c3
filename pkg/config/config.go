// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Process-wide legacy callback. When set, every event is mirrored to
	// this URL without auth headers, independent of per-tenant callbacks.
	GlobalWebhookURL string

	// Outbound HTTP budget for webhook and token calls.
	WebhookTimeout time.Duration

	// QR challenge lifetime.
	QRTTL time.Duration

	// Window before OAuth token expiry during which the cache is treated
	// as stale and refreshed.
	TokenRefreshBuffer time.Duration

	// Credentials guarding the gateway API.
	AdminUser     string
	AdminPassword string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                env("WAGATE_ENV", "dev"),
		HTTPAddr:           env("WAGATE_HTTP_ADDR", ":8080"),
		GlobalWebhookURL:   env("GLOBAL_WEBHOOK_URL", ""),
		WebhookTimeout:     envDur("WEBHOOK_TIMEOUT_SEC", 10) * time.Second,
		QRTTL:              envDur("QR_TTL_SEC", 300) * time.Second,
		TokenRefreshBuffer: envDur("TOKEN_REFRESH_BUFFER_SEC", 300) * time.Second,
		AdminUser:          env("WAGATE_ADMIN_USER", "admin"),
		AdminPassword:      env("WAGATE_ADMIN_PASSWORD", ""),
		RedisURL:           env("REDIS_URL", ""),
		DatabaseURL:        env("DATABASE_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory tenant store for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
