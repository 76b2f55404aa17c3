// Package platform enumerates the messaging platforms unibox ingests from
// and dispatches to.
package platform

// Platform identifies one of the supported messaging providers.
type Platform string

const (
	WhatsApp  Platform = "whatsapp"
	Instagram Platform = "instagram"
	Facebook  Platform = "facebook"
)

// All lists every supported platform, in webhook route order.
var All = []Platform{WhatsApp, Instagram, Facebook}

func (p Platform) String() string {
	return string(p)
}

func (p Platform) IsValid() bool {
	switch p {
	case WhatsApp, Instagram, Facebook:
		return true
	default:
		return false
	}
}

// Parse returns the Platform for a route segment, or false when unknown.
func Parse(s string) (Platform, bool) {
	p := Platform(s)
	return p, p.IsValid()
}
