package dispatch

import (
	"context"

	"unibox/internal/core/platform"
	"unibox/internal/core/platformconfig"
)

// SendResult is the uniform outcome of every transport call. Provider error
// text is passed through verbatim so UI-facing callers can display it.
type SendResult struct {
	Success   bool              `json:"success"`
	MessageID string            `json:"message_id,omitempty"`
	Platform  platform.Platform `json:"platform"`
	Error     string            `json:"error,omitempty"`
}

func success(p platform.Platform, messageID string) *SendResult {
	return &SendResult{Success: true, MessageID: messageID, Platform: p}
}

func failure(p platform.Platform, err error) *SendResult {
	return &SendResult{Success: false, Platform: p, Error: err.Error()}
}

// APISender is a cloud REST transport for one platform's messaging
// endpoint. The returned message id is the provider's, when it reports one.
type APISender interface {
	SendText(ctx context.Context, cfg *platformconfig.Config, recipientID, text string) (string, error)
}

// SessionSender sends through a persistent, previously-authenticated
// WhatsApp session instead of a stateless REST call.
type SessionSender interface {
	SendText(ctx context.Context, sessionName, recipientID, text string) (string, error)
}
