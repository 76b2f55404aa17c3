package conversation

import (
	"time"

	"github.com/google/uuid"

	"unibox/internal/core/platform"
)

// State is the conversation lifecycle: abierta -> en_proceso -> cerrada.
// Cerrada is terminal; a new inbound event opens a fresh conversation.
type State string

const (
	StateAbierta   State = "abierta"
	StateEnProceso State = "en_proceso"
	StateCerrada   State = "cerrada"
)

func (s State) IsValid() bool {
	switch s {
	case StateAbierta, StateEnProceso, StateCerrada:
		return true
	default:
		return false
	}
}

// Conversation is the unit of routing and assignment: one thread between a
// contact and the business on a single platform.
type Conversation struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	ContactID      uuid.UUID         `json:"contact_id" db:"contact_id"`
	Platform       platform.Platform `json:"platform" db:"platform"`
	State          State             `json:"state" db:"state"`
	AgentID        *uuid.UUID        `json:"agent_id,omitempty" db:"agent_id"`
	StartedAt      time.Time         `json:"started_at" db:"started_at"`
	LastActivityAt time.Time         `json:"last_activity_at" db:"last_activity_at"`
	InboundCount   int               `json:"inbound_count" db:"inbound_count"`
	OutboundCount  int               `json:"outbound_count" db:"outbound_count"`
}

func New(contactID uuid.UUID, p platform.Platform, startedAt time.Time) *Conversation {
	return &Conversation{
		ID:             uuid.New(),
		ContactID:      contactID,
		Platform:       p,
		State:          StateAbierta,
		StartedAt:      startedAt,
		LastActivityAt: startedAt,
	}
}

func (c *Conversation) IsOpen() bool {
	return c.State != StateCerrada
}
