// Package dispatch fans protocol events out to webhook destinations: the
// owning tenant's callback (authenticated per its config) and, when
// configured, a process-wide legacy callback (always unauthenticated).
// Every delivery is best-effort; nothing here propagates back to the
// protocol layer.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"wagate/internal/challenge"
	"wagate/internal/webhookauth"
	"wagate/pkg/metrics"
	"wagate/pkg/tenants"
)

type Dispatcher struct {
	store      tenants.Store
	auth       *webhookauth.Resolver
	challenges challenge.Store
	client     *http.Client
	log        *zap.SugaredLogger

	// GlobalWebhookURL mirrors every event, unauthenticated. Empty
	// disables the legacy destination.
	globalURL string
	media     MediaExtractor
}

func New(store tenants.Store, auth *webhookauth.Resolver, challenges challenge.Store,
	client *http.Client, globalURL string, log *zap.SugaredLogger) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Dispatcher{
		store:      store,
		auth:       auth,
		challenges: challenges,
		client:     client,
		log:        log,
		globalURL:  globalURL,
		media:      NopExtractor{},
	}
}

// WithMediaExtractor swaps the media collaborator.
func (d *Dispatcher) WithMediaExtractor(m MediaExtractor) *Dispatcher {
	d.media = m
	return d
}

// HandleMessage turns a received message into zero, one, or two POSTs.
func (d *Dispatcher) HandleMessage(ctx context.Context, ev MessageEvent) {
	if skippable(ev) {
		return
	}
	t := d.resolve(ctx, ev.SessionID)
	if t == nil && d.globalURL == "" {
		d.log.Debugw("no destination for message", "session", ev.SessionID)
		return
	}
	body := messageBody{
		Session:   ev.SessionID,
		From:      ev.From,
		MessageID: ev.MessageID,
		Message:   messageText(ev),
		Media:     d.media.Extract(ctx, ev),
	}
	d.fanOut(ctx, t, "", body)
}

// HandleSession delivers a lifecycle transition to <callback>/session.
// On connected it also clears the session's pending QR challenge so the
// polling endpoint stops reporting one.
func (d *Dispatcher) HandleSession(ctx context.Context, ev SessionEvent) {
	if ev.Status == StatusConnected && d.challenges != nil {
		if err := d.challenges.Remove(ctx, ev.SessionID); err != nil {
			d.log.Warnw("challenge removal failed", "session", ev.SessionID, "err", err)
		}
	}
	t := d.resolve(ctx, ev.SessionID)
	if t == nil && d.globalURL == "" {
		d.log.Debugw("no destination for session event", "session", ev.SessionID, "status", ev.Status)
		return
	}
	d.fanOut(ctx, t, "/session", sessionBody{Session: ev.SessionID, Status: ev.Status})
}

func (d *Dispatcher) resolve(ctx context.Context, sessionID string) *tenants.Tenant {
	t, ok, err := d.store.ResolveBySession(ctx, sessionID)
	if err != nil {
		d.log.Errorw("tenant resolution failed", "session", sessionID, "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &t
}

// fanOut delivers body to the tenant callback and the legacy callback.
// Deliveries run concurrently and are isolated: one failing never blocks
// or aborts the other.
func (d *Dispatcher) fanOut(ctx context.Context, t *tenants.Tenant, suffix string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		d.log.Errorw("marshal webhook body", "err", err)
		return
	}
	var wg sync.WaitGroup
	if t != nil && t.CallbackURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			headers := d.auth.Headers(ctx, t)
			d.deliver(ctx, "tenant", strings.TrimRight(t.CallbackURL, "/")+suffix, headers, payload)
		}()
	}
	if d.globalURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// The legacy destination never receives tenant auth headers.
			d.deliver(ctx, "global", strings.TrimRight(d.globalURL, "/")+suffix, nil, payload)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, destination, url string, headers http.Header, payload []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues(destination, "error").Inc()
		d.log.Warnw("webhook request build failed", "url", url, "err", err)
		return
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues(destination, "error").Inc()
		d.log.Warnw("webhook delivery failed", "destination", destination, "url", url, "err", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.WebhookDeliveries.WithLabelValues(destination, "error").Inc()
		d.log.Warnw("webhook delivery rejected", "destination", destination, "url", url, "status", resp.StatusCode)
		return
	}
	metrics.WebhookDeliveries.WithLabelValues(destination, "ok").Inc()
}
