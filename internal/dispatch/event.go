package dispatch

import (
	"context"
	"strings"
)

// Status values mirror the protocol layer's session lifecycle.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// MessageEvent is a received-message notification from the protocol
// layer, already decoded far enough for webhook delivery.
type MessageEvent struct {
	SessionID string
	From      string
	MessageID string
	FromMe    bool

	// Raw content candidates; the first non-empty one becomes the body's
	// message field.
	Text            string
	ExtendedText    string
	ImageCaption    string
	VideoCaption    string
	DocumentCaption string
}

// SessionEvent is a lifecycle transition for one session.
type SessionEvent struct {
	SessionID string
	Status    Status
}

// MediaRefs carries extracted media handles for the outbound body.
type MediaRefs struct {
	Image    string `json:"image,omitempty"`
	Video    string `json:"video,omitempty"`
	Document string `json:"document,omitempty"`
	Audio    string `json:"audio,omitempty"`
}

// MediaExtractor resolves downloadable references for a message's media.
// Extraction is outside this subsystem; NopExtractor is the default.
type MediaExtractor interface {
	Extract(ctx context.Context, ev MessageEvent) MediaRefs
}

type NopExtractor struct{}

func (NopExtractor) Extract(context.Context, MessageEvent) MediaRefs { return MediaRefs{} }

type messageBody struct {
	Session   string    `json:"session"`
	From      string    `json:"from"`
	MessageID string    `json:"messageId"`
	Message   string    `json:"message"`
	Media     MediaRefs `json:"media"`
}

type sessionBody struct {
	Session string `json:"session"`
	Status  Status `json:"status"`
}

// messageText picks the first non-empty content candidate in the fixed
// priority order: plain text, extended text, image, video, document.
func messageText(ev MessageEvent) string {
	for _, s := range []string{ev.Text, ev.ExtendedText, ev.ImageCaption, ev.VideoCaption, ev.DocumentCaption} {
		if s != "" {
			return s
		}
	}
	return ""
}

// skippable filters self-sent messages and broadcast-style recipients;
// these never reach tenant callbacks.
func skippable(ev MessageEvent) bool {
	return ev.FromMe || strings.HasSuffix(ev.From, "@broadcast")
}
