package contact

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"unibox/internal/core/platform"
	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

// Repository is the persistence port for contacts. Create must surface
// errors.ErrAlreadyExists when the platform-scoped external id index is
// violated; the unique index is the source of truth, not any lookup.
type Repository interface {
	Create(ctx context.Context, contact *Contact) error
	GetByID(ctx context.Context, id uuid.UUID) (*Contact, error)
	GetByExternalID(ctx context.Context, p platform.Platform, externalID string) (*Contact, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID, seenAt time.Time) error
	UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) error
}

type Service struct {
	repository Repository
	logger     *logger.Logger
}

func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{
		repository: repo,
		logger:     log.WithModule("contact"),
	}
}

// ResolveInbound looks up the contact behind an inbound event, creating one
// on first sight. Safe under concurrent duplicate deliveries: a lost insert
// race falls back to reading the row the winner created.
func (s *Service) ResolveInbound(ctx context.Context, p platform.Platform, externalID, displayName string, seenAt time.Time) (*Contact, error) {
	if externalID == "" {
		return nil, fmt.Errorf("resolve inbound contact: %w", errors.ErrInvalidInput)
	}

	existing, err := s.repository.GetByExternalID(ctx, p, externalID)
	if err == nil {
		return s.touch(ctx, existing, displayName, seenAt)
	}
	if !stderrors.Is(err, errors.ErrContactNotFound) {
		return nil, fmt.Errorf("failed to look up contact: %w", err)
	}

	created := New(p, externalID, displayName, seenAt)
	if err := s.repository.Create(ctx, created); err != nil {
		if stderrors.Is(err, errors.ErrAlreadyExists) {
			// A concurrent delivery won the insert race.
			winner, getErr := s.repository.GetByExternalID(ctx, p, externalID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to reread contact after insert race: %w", getErr)
			}
			return s.touch(ctx, winner, displayName, seenAt)
		}
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	s.logger.InfoWithFields("Contact created", map[string]interface{}{
		"contact_id":  created.ID.String(),
		"platform":    p.String(),
		"external_id": externalID,
	})

	return created, nil
}

// Get returns a contact by internal id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Contact, error) {
	c, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

func (s *Service) touch(ctx context.Context, c *Contact, displayName string, seenAt time.Time) (*Contact, error) {
	if seenAt.After(c.LastSeen) {
		if err := s.repository.UpdateLastSeen(ctx, c.ID, seenAt); err != nil {
			return nil, fmt.Errorf("failed to update last seen: %w", err)
		}
		c.LastSeen = seenAt
	}

	// Enrich the placeholder name once the provider sends a real one.
	if displayName != "" && c.DisplayName == c.ExternalID(c.OriginPlatform) && displayName != c.DisplayName {
		if err := s.repository.UpdateDisplayName(ctx, c.ID, displayName); err == nil {
			c.DisplayName = displayName
		}
	}

	return c, nil
}
