package platformconfig

import (
	"context"
	"time"

	"github.com/google/uuid"

	"unibox/internal/core/platform"
)

// Kind distinguishes REST credential sets from persistent-session records.
type Kind string

const (
	// KindAPI is a cloud REST credential set (token + platform ids).
	KindAPI Kind = "api"
	// KindSession references a persistent, previously-authenticated
	// connection. WhatsApp only.
	KindSession Kind = "session"
)

// Config is one stored credential/session record for a platform. Written by
// the configuration UI; read-only from the ingestion/dispatch core.
type Config struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	Platform          platform.Platform `json:"platform" db:"platform"`
	Kind              Kind              `json:"kind" db:"kind"`
	Label             string            `json:"label" db:"label"`
	AccessToken       *string           `json:"access_token,omitempty" db:"access_token"`
	PhoneNumberID     *string           `json:"phone_number_id,omitempty" db:"phone_number_id"`
	BusinessAccountID *string           `json:"business_account_id,omitempty" db:"business_account_id"`
	VerifyToken       *string           `json:"verify_token,omitempty" db:"verify_token"`
	SessionName       *string           `json:"session_name,omitempty" db:"session_name"`
	DeviceJID         *string           `json:"device_jid,omitempty" db:"device_jid"`
	Connected         bool              `json:"connected" db:"connected"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

func (c *Config) Token() string {
	if c.AccessToken != nil {
		return *c.AccessToken
	}
	return ""
}

func (c *Config) Session() string {
	if c.SessionName != nil {
		return *c.SessionName
	}
	return ""
}

// ActivePointer is the operator-designated configuration for a platform.
type ActivePointer struct {
	Platform  platform.Platform `json:"platform" db:"platform"`
	ConfigID  uuid.UUID         `json:"config_id" db:"config_id"`
	Kind      Kind              `json:"kind" db:"kind"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

// Repository is the read port over stored configurations. Lookup methods
// return errors.ErrConfigNotFound when nothing matches.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Config, error)
	GetActivePointer(ctx context.Context, p platform.Platform) (*ActivePointer, error)
	GetLatest(ctx context.Context, p platform.Platform, kind Kind) (*Config, error)
	GetConnectedSession(ctx context.Context, p platform.Platform) (*Config, error)
	GetBySessionName(ctx context.Context, sessionName string) (*Config, error)
	SetSessionConnected(ctx context.Context, sessionName string, connected bool) error
	// SetSessionDevice records which paired device belongs to a session
	// name; nil clears the mapping after logout.
	SetSessionDevice(ctx context.Context, sessionName string, deviceJID *string) error
}
