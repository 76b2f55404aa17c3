package meta

// Webhook payload shapes for the Messenger Platform, shared by Facebook
// pages and Instagram professional accounts. Only the fields the ingestion
// pipeline consumes are mapped; the rest of the envelope is ignored.
// Ref: https://developers.facebook.com/docs/messenger-platform/webhooks

// WebhookPayload is the top-level envelope. Object is "page" for Facebook
// and "instagram" for Instagram messaging.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the events delivered for one page or account.
type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent is one event in an entry. Exactly one of Message,
// Delivery, Read or Postback is set depending on the event kind.
type MessagingEvent struct {
	Sender    Participant      `json:"sender"`
	Recipient Participant      `json:"recipient"`
	Timestamp int64            `json:"timestamp"`
	Message   *MessagePayload  `json:"message,omitempty"`
	Delivery  *DeliveryReceipt `json:"delivery,omitempty"`
	Read      *ReadReceipt     `json:"read,omitempty"`
	Postback  *Postback        `json:"postback,omitempty"`
}

// Participant identifies a sender or recipient by page-scoped id.
type Participant struct {
	ID string `json:"id"`
}

// MessagePayload carries the user-visible content of a message event.
// IsEcho marks messages sent by the page itself, which must not re-enter
// the inbox.
type MessagePayload struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is one media or location item on a message.
type Attachment struct {
	Type    string            `json:"type"`
	Payload AttachmentPayload `json:"payload"`
}

// AttachmentPayload holds the media URL, or coordinates for type
// "location".
type AttachmentPayload struct {
	URL         string       `json:"url,omitempty"`
	Title       string       `json:"title,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Coordinates is a location attachment's position.
type Coordinates struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// DeliveryReceipt confirms messages sent by the page were delivered.
type DeliveryReceipt struct {
	MIDs      []string `json:"mids"`
	Watermark int64    `json:"watermark"`
}

// ReadReceipt confirms the user read messages up to Watermark.
type ReadReceipt struct {
	Watermark int64 `json:"watermark"`
}

// Postback is a button tap. Out of scope for ingestion but mapped so the
// event is recognizably not a message.
type Postback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// IsUserMessage reports whether the event is a genuine end-user message.
// Echoes, delivery receipts, read receipts and postbacks are not.
func (m *MessagingEvent) IsUserMessage() bool {
	if m.Message == nil || m.Message.IsEcho {
		return false
	}
	if m.Delivery != nil || m.Read != nil || m.Postback != nil {
		return false
	}
	return true
}
