// pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookDeliveries counts outbound webhook POSTs by destination kind
	// (tenant|global) and outcome (ok|error).
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagate_webhook_deliveries_total",
		Help: "Outbound webhook deliveries by destination and outcome.",
	}, []string{"destination", "outcome"})

	// TokenFetches counts OAuth token endpoint calls by outcome
	// (ok|error|cached is not counted — cache hits make no call).
	TokenFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagate_token_fetches_total",
		Help: "OAuth client-credentials token fetches by outcome.",
	}, []string{"outcome"})

	// ChallengeEvictions counts QR entries dropped after their TTL.
	ChallengeEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagate_challenge_evictions_total",
		Help: "QR challenges evicted after TTL expiry.",
	})
)
