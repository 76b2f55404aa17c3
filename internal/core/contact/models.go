package contact

import (
	"time"

	"github.com/google/uuid"

	"unibox/internal/core/platform"
)

// LifecycleState follows the CRM funnel. New inbound contacts always start
// as "nuevo"; later transitions are driven by the admin panel.
type LifecycleState string

const (
	StateNuevo      LifecycleState = "nuevo"
	StateContactado LifecycleState = "contactado"
	StateCliente    LifecycleState = "cliente"
	StateInactivo   LifecycleState = "inactivo"
)

// Contact is one end-user identity on one platform. Exactly one of the
// external id columns is populated, matching OriginPlatform.
type Contact struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	WhatsAppID     *string           `json:"whatsapp_id,omitempty" db:"whatsapp_id"`
	InstagramID    *string           `json:"instagram_id,omitempty" db:"instagram_id"`
	FacebookID     *string           `json:"facebook_id,omitempty" db:"facebook_id"`
	DisplayName    string            `json:"display_name" db:"display_name"`
	OriginPlatform platform.Platform `json:"origin_platform" db:"origin_platform"`
	LifecycleState LifecycleState    `json:"lifecycle_state" db:"lifecycle_state"`
	FirstSeen      time.Time         `json:"first_seen" db:"first_seen"`
	LastSeen       time.Time         `json:"last_seen" db:"last_seen"`
}

// New builds a contact for a first inbound event. The display name defaults
// to the external id until profile enrichment fills it in.
func New(p platform.Platform, externalID, displayName string, seenAt time.Time) *Contact {
	if displayName == "" {
		displayName = externalID
	}

	c := &Contact{
		ID:             uuid.New(),
		DisplayName:    displayName,
		OriginPlatform: p,
		LifecycleState: StateNuevo,
		FirstSeen:      seenAt,
		LastSeen:       seenAt,
	}
	c.SetExternalID(p, externalID)
	return c
}

// ExternalID returns the identifier this contact has on the given platform,
// or empty when the contact was never seen there.
func (c *Contact) ExternalID(p platform.Platform) string {
	switch p {
	case platform.WhatsApp:
		if c.WhatsAppID != nil {
			return *c.WhatsAppID
		}
	case platform.Instagram:
		if c.InstagramID != nil {
			return *c.InstagramID
		}
	case platform.Facebook:
		if c.FacebookID != nil {
			return *c.FacebookID
		}
	}
	return ""
}

func (c *Contact) SetExternalID(p platform.Platform, externalID string) {
	switch p {
	case platform.WhatsApp:
		c.WhatsAppID = &externalID
	case platform.Instagram:
		c.InstagramID = &externalID
	case platform.Facebook:
		c.FacebookID = &externalID
	}
}
