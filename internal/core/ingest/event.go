package ingest

import (
	"time"

	"unibox/internal/core/message"
	"unibox/internal/core/platform"
)

// InboundEvent is the canonical shape every platform adapter normalizes
// into: one end-user message, stripped of provider envelope details.
type InboundEvent struct {
	Platform          platform.Platform
	ExternalSenderID  string
	ExternalMessageID string
	SenderName        string
	Timestamp         time.Time
	ContentType       message.Type
	Content           string
}

// Normalizer parses one platform's native webhook envelope into canonical
// events. Payloads with no extractable message (delivery receipts, read
// receipts, echoes) normalize to an empty slice, not an error; a normalizer
// only errors on bodies it cannot parse at all.
type Normalizer interface {
	Platform() platform.Platform
	Normalize(payload []byte) ([]InboundEvent, error)
}

// Content defaults used when media arrives without a caption, and the
// degraded fallbacks for shapes outside the known set.
const (
	LabelImagen      = "Imagen"
	LabelVideo       = "Video"
	LabelAudio       = "Audio"
	LabelDocumento   = "Documento"
	LabelMultimedia  = "Mensaje multimedia"
	LabelDesconocido = "Mensaje desconocido"
)

// MediaType maps a provider-declared attachment kind onto a message type.
// Kinds outside the known set degrade to texto/"Mensaje multimedia".
func MediaType(kind string) (message.Type, string) {
	switch kind {
	case "image", "sticker":
		return message.TypeImagen, LabelImagen
	case "video":
		return message.TypeVideo, LabelVideo
	case "audio", "voice":
		return message.TypeAudio, LabelAudio
	case "document", "file":
		return message.TypeDocumento, LabelDocumento
	default:
		return message.TypeTexto, LabelMultimedia
	}
}
