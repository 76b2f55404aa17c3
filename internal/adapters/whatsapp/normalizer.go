package whatsapp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"unibox/internal/core/ingest"
	"unibox/internal/core/message"
	"unibox/internal/core/platform"
)

// Normalizer parses WhatsApp Cloud API webhook envelopes into canonical
// inbound events.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Platform() platform.Platform {
	return platform.WhatsApp
}

// Normalize extracts inbound messages from the envelope. Status callbacks
// and changes outside the messages field yield no events.
func (n *Normalizer) Normalize(payload []byte) ([]ingest.InboundEvent, error) {
	var envelope WebhookPayload
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse whatsapp webhook payload: %w", err)
	}

	events := make([]ingest.InboundEvent, 0)
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				msgType, content := extractContent(&msg)

				events = append(events, ingest.InboundEvent{
					Platform:          platform.WhatsApp,
					ExternalSenderID:  msg.From,
					ExternalMessageID: msg.ID,
					SenderName:        change.Value.SenderName(msg.From),
					Timestamp:         parseTimestamp(msg.Timestamp),
					ContentType:       msgType,
					Content:           content,
				})
			}
		}
	}

	return events, nil
}

// parseTimestamp converts the Cloud API's Unix-seconds string. Malformed
// values fall back to now rather than dropping the message.
func parseTimestamp(raw string) time.Time {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(secs, 0)
}

func extractContent(msg *Message) (message.Type, string) {
	switch msg.Type {
	case "text":
		if msg.Text != nil {
			return message.TypeTexto, msg.Text.Body
		}
	case "image":
		return mediaContent("image", captionOf(msg.Image))
	case "sticker":
		return mediaContent("sticker", captionOf(msg.Sticker))
	case "video":
		return mediaContent("video", captionOf(msg.Video))
	case "audio", "voice":
		return mediaContent("audio", captionOf(msg.Audio))
	case "document":
		if msg.Document != nil && msg.Document.Caption != "" {
			return message.TypeDocumento, msg.Document.Caption
		}
		if msg.Document != nil && msg.Document.Filename != "" {
			return message.TypeDocumento, msg.Document.Filename
		}
		return message.TypeDocumento, ingest.LabelDocumento
	case "location":
		if msg.Location != nil {
			return message.TypeUbicacion, fmt.Sprintf("%v, %v", msg.Location.Latitude, msg.Location.Longitude)
		}
	}
	return message.TypeTexto, ingest.LabelDesconocido
}

func mediaContent(kind, caption string) (message.Type, string) {
	msgType, label := ingest.MediaType(kind)
	if caption != "" {
		return msgType, caption
	}
	return msgType, label
}

func captionOf(m *Media) string {
	if m == nil {
		return ""
	}
	return m.Caption
}
