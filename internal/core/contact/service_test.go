package contact

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unibox/internal/core/platform"
	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

type memContactRepo struct {
	contacts map[uuid.UUID]*Contact

	// failNextCreate simulates losing an insert race against a concurrent
	// delivery that already wrote raceWinner.
	failNextCreate bool
	raceWinner     *Contact
}

func newMemContactRepo() *memContactRepo {
	return &memContactRepo{contacts: make(map[uuid.UUID]*Contact)}
}

func (r *memContactRepo) Create(_ context.Context, c *Contact) error {
	if r.failNextCreate {
		r.failNextCreate = false
		r.contacts[r.raceWinner.ID] = r.raceWinner
		return errors.ErrAlreadyExists
	}
	for _, existing := range r.contacts {
		if existing.ExternalID(c.OriginPlatform) == c.ExternalID(c.OriginPlatform) {
			return errors.ErrAlreadyExists
		}
	}
	clone := *c
	r.contacts[c.ID] = &clone
	return nil
}

func (r *memContactRepo) GetByID(_ context.Context, id uuid.UUID) (*Contact, error) {
	if c, ok := r.contacts[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, errors.ErrContactNotFound
}

func (r *memContactRepo) GetByExternalID(_ context.Context, p platform.Platform, externalID string) (*Contact, error) {
	for _, c := range r.contacts {
		if c.ExternalID(p) == externalID {
			clone := *c
			return &clone, nil
		}
	}
	return nil, errors.ErrContactNotFound
}

func (r *memContactRepo) UpdateLastSeen(_ context.Context, id uuid.UUID, seenAt time.Time) error {
	c, ok := r.contacts[id]
	if !ok {
		return errors.ErrContactNotFound
	}
	c.LastSeen = seenAt
	return nil
}

func (r *memContactRepo) UpdateDisplayName(_ context.Context, id uuid.UUID, displayName string) error {
	c, ok := r.contacts[id]
	if !ok {
		return errors.ErrContactNotFound
	}
	c.DisplayName = displayName
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, logger.New(logger.TestConfig()))
}

func TestResolveInboundCreatesContact(t *testing.T) {
	repo := newMemContactRepo()
	svc := newTestService(repo)

	seenAt := time.Now()
	c, err := svc.ResolveInbound(context.Background(), platform.WhatsApp, "5215550001111", "Ana", seenAt)
	require.NoError(t, err)

	assert.Equal(t, "Ana", c.DisplayName)
	assert.Equal(t, StateNuevo, c.LifecycleState)
	assert.Equal(t, "5215550001111", c.ExternalID(platform.WhatsApp))
	assert.Equal(t, platform.WhatsApp, c.OriginPlatform)
	assert.Len(t, repo.contacts, 1)
}

func TestResolveInboundReusesExistingContact(t *testing.T) {
	repo := newMemContactRepo()
	svc := newTestService(repo)

	first := time.Now().Add(-time.Hour)
	created, err := svc.ResolveInbound(context.Background(), platform.Facebook, "psid-123", "Luis", first)
	require.NoError(t, err)

	later := time.Now()
	again, err := svc.ResolveInbound(context.Background(), platform.Facebook, "psid-123", "Luis", later)
	require.NoError(t, err)

	assert.Equal(t, created.ID, again.ID)
	assert.Len(t, repo.contacts, 1)
	assert.WithinDuration(t, later, again.LastSeen, time.Second)
}

func TestResolveInboundDefaultsDisplayNameToExternalID(t *testing.T) {
	svc := newTestService(newMemContactRepo())

	c, err := svc.ResolveInbound(context.Background(), platform.Instagram, "ig-9", "", time.Now())
	require.NoError(t, err)

	assert.Equal(t, "ig-9", c.DisplayName)
}

func TestResolveInboundEnrichesPlaceholderName(t *testing.T) {
	svc := newTestService(newMemContactRepo())

	created, err := svc.ResolveInbound(context.Background(), platform.WhatsApp, "5215550002222", "", time.Now())
	require.NoError(t, err)
	require.Equal(t, "5215550002222", created.DisplayName)

	enriched, err := svc.ResolveInbound(context.Background(), platform.WhatsApp, "5215550002222", "María", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "María", enriched.DisplayName)
}

func TestResolveInboundLostInsertRaceReturnsWinner(t *testing.T) {
	repo := newMemContactRepo()
	svc := newTestService(repo)

	winner := New(platform.WhatsApp, "5215550003333", "Winner", time.Now())
	repo.failNextCreate = true
	repo.raceWinner = winner

	c, err := svc.ResolveInbound(context.Background(), platform.WhatsApp, "5215550003333", "", time.Now())
	require.NoError(t, err)

	assert.Equal(t, winner.ID, c.ID)
	assert.Len(t, repo.contacts, 1)
}

func TestResolveInboundRejectsEmptyExternalID(t *testing.T) {
	svc := newTestService(newMemContactRepo())

	_, err := svc.ResolveInbound(context.Background(), platform.WhatsApp, "", "Ana", time.Now())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
