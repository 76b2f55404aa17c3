package meta

import (
	"encoding/json"
	"fmt"
	"time"

	"unibox/internal/core/ingest"
	"unibox/internal/core/message"
	"unibox/internal/core/platform"
)

// Normalizer parses Messenger Platform webhook envelopes into canonical
// inbound events. Facebook and Instagram share the envelope, so the same
// parser serves both and only tags events with its configured platform.
type Normalizer struct {
	platform platform.Platform
}

// NewFacebookNormalizer returns the parser for Facebook page webhooks.
func NewFacebookNormalizer() *Normalizer {
	return &Normalizer{platform: platform.Facebook}
}

// NewInstagramNormalizer returns the parser for Instagram messaging
// webhooks.
func NewInstagramNormalizer() *Normalizer {
	return &Normalizer{platform: platform.Instagram}
}

func (n *Normalizer) Platform() platform.Platform {
	return n.platform
}

// Normalize extracts user messages from the envelope. Receipts, echoes and
// postbacks yield no events. A body that is not a Messenger envelope at all
// is an error.
func (n *Normalizer) Normalize(payload []byte) ([]ingest.InboundEvent, error) {
	var envelope WebhookPayload
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse messenger webhook payload: %w", err)
	}

	events := make([]ingest.InboundEvent, 0)
	for _, entry := range envelope.Entry {
		for _, evt := range entry.Messaging {
			if !evt.IsUserMessage() {
				continue
			}

			msgType, content := extractContent(evt.Message)

			events = append(events, ingest.InboundEvent{
				Platform:          n.platform,
				ExternalSenderID:  evt.Sender.ID,
				ExternalMessageID: evt.Message.MID,
				Timestamp:         time.UnixMilli(evt.Timestamp),
				ContentType:       msgType,
				Content:           content,
			})
		}
	}

	return events, nil
}

// extractContent maps a message payload onto a ledger type and content
// string. Captioned media keeps the caption; captionless media gets the
// generic label for its kind.
func extractContent(msg *MessagePayload) (message.Type, string) {
	if len(msg.Attachments) == 0 {
		if msg.Text != "" {
			return message.TypeTexto, msg.Text
		}
		return message.TypeTexto, ingest.LabelDesconocido
	}

	att := msg.Attachments[0]
	if att.Type == "location" && att.Payload.Coordinates != nil {
		c := att.Payload.Coordinates
		return message.TypeUbicacion, fmt.Sprintf("%v, %v", c.Lat, c.Long)
	}

	msgType, label := ingest.MediaType(att.Type)
	if msg.Text != "" {
		return msgType, msg.Text
	}
	return msgType, label
}
