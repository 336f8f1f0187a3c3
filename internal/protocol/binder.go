// Package protocol is the boundary to the WhatsApp library. The library
// itself is an opaque collaborator: it handles the wire protocol, pairing
// and QR generation, and calls back into this binder with lifecycle and
// message events. The binder stores QR payloads and hands events to the
// dispatcher, one goroutine per event so a slow webhook never stalls the
// protocol loop.
package protocol

import (
	"context"

	"go.uber.org/zap"

	"wagate/internal/challenge"
	"wagate/internal/dispatch"
)

type Binder struct {
	dispatcher *dispatch.Dispatcher
	challenges challenge.Store
	log        *zap.SugaredLogger
}

func NewBinder(d *dispatch.Dispatcher, ch challenge.Store, log *zap.SugaredLogger) *Binder {
	return &Binder{dispatcher: d, challenges: ch, log: log}
}

// OnQRChallenge records the handshake payload for the polling endpoint.
// A repeated challenge for the same session overwrites the previous one.
func (b *Binder) OnQRChallenge(ctx context.Context, sessionID, payload string) {
	if err := b.challenges.Put(ctx, sessionID, payload); err != nil {
		b.log.Warnw("challenge store write failed", "session", sessionID, "err", err)
	}
}

// OnMessage is called for every received message.
func (b *Binder) OnMessage(ctx context.Context, ev dispatch.MessageEvent) {
	go b.dispatcher.HandleMessage(ctx, ev)
}

// OnSessionStatus is called for connecting/connected/disconnected
// transitions.
func (b *Binder) OnSessionStatus(ctx context.Context, ev dispatch.SessionEvent) {
	go b.dispatcher.HandleSession(ctx, ev)
}

// OnSessionDeleted is called when a session is removed or logged out; any
// pending challenge must not outlive it.
func (b *Binder) OnSessionDeleted(ctx context.Context, sessionID string) {
	if err := b.challenges.Remove(ctx, sessionID); err != nil {
		b.log.Warnw("challenge removal failed", "session", sessionID, "err", err)
	}
}
