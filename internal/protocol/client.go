package protocol

import (
	"context"
)

// Client is the slice of the WhatsApp library this subsystem drives.
// StartSession begins the multi-device handshake; the resulting QR
// challenges arrive asynchronously via Binder.OnQRChallenge.
type Client interface {
	StartSession(ctx context.Context, sessionID string) error
	Logout(ctx context.Context, sessionID string) error
}
