package webhooklog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"unibox/internal/core/platform"
)

// Entry is the audit record of one raw inbound delivery, written before any
// parsing happens and updated once processing finishes.
type Entry struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	Platform        platform.Platform `json:"platform" db:"platform"`
	EventType       string            `json:"event_type" db:"event_type"`
	Payload         json.RawMessage   `json:"payload" db:"payload"`
	SourceIP        string            `json:"source_ip" db:"source_ip"`
	ReceivedAt      time.Time         `json:"received_at" db:"received_at"`
	ProcessedAt     *time.Time        `json:"processed_at,omitempty" db:"processed_at"`
	ProcessingError *string           `json:"processing_error,omitempty" db:"processing_error"`
}

func NewEntry(p platform.Platform, eventType string, payload []byte, sourceIP string) *Entry {
	raw := payload
	if !json.Valid(raw) {
		encoded, _ := json.Marshal(string(payload))
		raw = encoded
	}
	return &Entry{
		ID:         uuid.New(),
		Platform:   p,
		EventType:  eventType,
		Payload:    raw,
		SourceIP:   sourceIP,
		ReceivedAt: time.Now(),
	}
}

// Repository is the persistence port for webhook audit records. Pruning is
// left to an external maintenance job.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	MarkProcessed(ctx context.Context, id uuid.UUID, processingError *string) error
	ListRecent(ctx context.Context, p platform.Platform, limit int) ([]*Entry, error)
}
