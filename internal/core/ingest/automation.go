package ingest

import (
	"context"

	"github.com/google/uuid"

	"unibox/internal/core/message"
)

// IngestedMessage is the callback payload handed to the automation engine
// after a message is durably recorded.
type IngestedMessage struct {
	ConversationID uuid.UUID         `json:"conversation_id"`
	ContactID      uuid.UUID         `json:"contact_id"`
	Content        string            `json:"content"`
	ContentType    message.Type      `json:"content_type"`
	Direction      message.Direction `json:"direction"`
}

// AutomationSink is the automation collaborator contract. Implementations
// may block up to the context deadline; the pipeline invokes them
// asynchronously and swallows every failure.
type AutomationSink interface {
	OnMessageIngested(ctx context.Context, msg IngestedMessage) error
}

// DedupCache is an optional fast path in front of the ledger's unique
// index. It is advisory only: a cache miss or a cache failure always falls
// through to the database, which remains the source of truth.
type DedupCache interface {
	Seen(ctx context.Context, externalMessageID string) bool
	MarkSeen(ctx context.Context, externalMessageID string)
}
