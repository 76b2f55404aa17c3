package message

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies message content. Unknown payload shapes degrade to
// TypeTexto with a generic description instead of failing ingestion.
type Type string

const (
	TypeTexto     Type = "texto"
	TypeImagen    Type = "imagen"
	TypeVideo     Type = "video"
	TypeAudio     Type = "audio"
	TypeDocumento Type = "documento"
	TypeUbicacion Type = "ubicacion"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeTexto, TypeImagen, TypeVideo, TypeAudio, TypeDocumento, TypeUbicacion:
		return true
	default:
		return false
	}
}

// Direction distinguishes end-user messages from agent/system replies.
type Direction string

const (
	DirectionEntrante Direction = "entrante"
	DirectionSaliente Direction = "saliente"
)

// DeliveryState tracks the transport outcome for a ledger entry.
type DeliveryState string

const (
	DeliveryRecibido DeliveryState = "recibido"
	DeliveryEnviado  DeliveryState = "enviado"
	DeliveryFallido  DeliveryState = "fallido"
)

// Message is an immutable ledger entry. Inbound entries always carry the
// provider's external message id; outbound entries may lack one until the
// provider acknowledges the send.
type Message struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	ConversationID uuid.UUID     `json:"conversation_id" db:"conversation_id"`
	ContactID      uuid.UUID     `json:"contact_id" db:"contact_id"`
	ExternalID     *string       `json:"external_id,omitempty" db:"external_id"`
	Type           Type          `json:"type" db:"type"`
	Direction      Direction     `json:"direction" db:"direction"`
	DeliveryState  DeliveryState `json:"delivery_state" db:"delivery_state"`
	Content        string        `json:"content" db:"content"`
	OccurredAt     time.Time     `json:"occurred_at" db:"occurred_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// NewInbound builds a ledger entry for a normalized inbound event.
func NewInbound(conversationID, contactID uuid.UUID, externalID string, msgType Type, content string, occurredAt time.Time) *Message {
	return &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		ContactID:      contactID,
		ExternalID:     &externalID,
		Type:           msgType,
		Direction:      DirectionEntrante,
		DeliveryState:  DeliveryRecibido,
		Content:        content,
		OccurredAt:     occurredAt,
		CreatedAt:      time.Now(),
	}
}

// NewOutbound builds a ledger entry for an accepted outbound send.
// providerMessageID may be empty when the transport returns none.
func NewOutbound(conversationID, contactID uuid.UUID, providerMessageID, content string) *Message {
	now := time.Now()
	m := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		ContactID:      contactID,
		Type:           TypeTexto,
		Direction:      DirectionSaliente,
		DeliveryState:  DeliveryEnviado,
		Content:        content,
		OccurredAt:     now,
		CreatedAt:      now,
	}
	if providerMessageID != "" {
		m.ExternalID = &providerMessageID
	}
	return m
}
