package message

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence port for the message ledger.
type Repository interface {
	// CreateInbound atomically inserts the message and bumps the owning
	// conversation's inbound counter and last activity. When the external id
	// unique index rejects the insert, it returns errors.ErrMessageDuplicate
	// and leaves the counters untouched: insert-if-absent, not check-then-insert.
	CreateInbound(ctx context.Context, message *Message) error

	// CreateOutbound inserts an outbound entry and bumps the outbound counter.
	CreateOutbound(ctx context.Context, message *Message) error

	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	GetByExternalID(ctx context.Context, externalID string) (*Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*Message, error)
	CountByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error)
}
