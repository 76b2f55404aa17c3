package whatsapp

// Webhook payload shapes for the WhatsApp Business Cloud API.
// Ref: https://developers.facebook.com/docs/whatsapp/cloud-api/webhooks

// WebhookPayload is the top-level envelope. Object is always
// "whatsapp_business_account".
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes delivered for one business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one notification. Field is "messages" for inbound traffic and
// status callbacks alike; the Value distinguishes them.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries either inbound messages or delivery statuses, never both.
type Value struct {
	MessagingProduct string          `json:"messaging_product"`
	Metadata         Metadata        `json:"metadata"`
	Contacts         []ContactInfo   `json:"contacts,omitempty"`
	Messages         []Message       `json:"messages,omitempty"`
	Statuses         []StatusUpdate  `json:"statuses,omitempty"`
}

// Metadata identifies the receiving business phone number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// ContactInfo carries the sender's profile, indexed by wa_id alongside the
// messages array.
type ContactInfo struct {
	Profile Profile `json:"profile"`
	WaID    string  `json:"wa_id"`
}

// Profile is the sender's pushname.
type Profile struct {
	Name string `json:"name"`
}

// Message is one inbound message. Timestamp is Unix seconds as a string.
// Exactly one content field matches Type.
type Message struct {
	From      string    `json:"from"`
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *Text     `json:"text,omitempty"`
	Image     *Media    `json:"image,omitempty"`
	Video     *Media    `json:"video,omitempty"`
	Audio     *Media    `json:"audio,omitempty"`
	Sticker   *Media    `json:"sticker,omitempty"`
	Document  *Document `json:"document,omitempty"`
	Location  *Location `json:"location,omitempty"`
}

// Text is the body of a text message.
type Text struct {
	Body string `json:"body"`
}

// Media is an uploaded attachment reference.
type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
}

// Document extends Media with the original filename.
type Document struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Location is a shared position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// StatusUpdate is a delivery-state callback for an outbound message.
type StatusUpdate struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// SenderName looks up the profile name recorded for a wa_id, if the
// provider included one.
func (v *Value) SenderName(waID string) string {
	for _, c := range v.Contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	return ""
}
