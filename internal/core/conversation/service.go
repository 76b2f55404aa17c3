package conversation

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

// Repository is the persistence port for conversations. Create must surface
// errors.ErrAlreadyExists when the single-open partial index is violated so
// the router can fall back to the conversation a concurrent delivery opened.
type Repository interface {
	Create(ctx context.Context, conversation *Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	GetOpen(ctx context.Context, contactID uuid.UUID, p platform.Platform) (*Conversation, error)
	UpdateState(ctx context.Context, id uuid.UUID, state State, agentID *uuid.UUID) error
}

type Service struct {
	repository Repository
	logger     *logger.Logger
}

func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{
		repository: repo,
		logger:     log.WithModule("conversation"),
	}
}

// EnsureOpen returns the single non-closed conversation for the pair,
// opening one when none exists. Once closed, a conversation is never
// reused: a fresh row is created instead.
func (s *Service) EnsureOpen(ctx context.Context, contactID uuid.UUID, p platform.Platform, at time.Time) (*Conversation, error) {
	existing, err := s.repository.GetOpen(ctx, contactID, p)
	if err == nil {
		return existing, nil
	}
	if !stderrors.Is(err, errors.ErrConversationNotFound) {
		return nil, fmt.Errorf("failed to look up open conversation: %w", err)
	}

	created := New(contactID, p, at)
	if err := s.repository.Create(ctx, created); err != nil {
		if stderrors.Is(err, errors.ErrAlreadyExists) {
			// A concurrent delivery opened it first; reuse that one.
			winner, getErr := s.repository.GetOpen(ctx, contactID, p)
			if getErr != nil {
				return nil, fmt.Errorf("failed to reread conversation after insert race: %w", getErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.logger.InfoWithFields("Conversation opened", map[string]interface{}{
		"conversation_id": created.ID.String(),
		"contact_id":      contactID.String(),
		"platform":        p.String(),
	})

	return created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	conv, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// Assign moves an open conversation to en_proceso under the given agent.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, agentID uuid.UUID) (*Conversation, error) {
	conv, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if !conv.IsOpen() {
		return nil, errors.ErrConversationClosed
	}

	if err := s.repository.UpdateState(ctx, id, StateEnProceso, &agentID); err != nil {
		return nil, fmt.Errorf("failed to assign conversation: %w", err)
	}

	conv.State = StateEnProceso
	conv.AgentID = &agentID

	s.logger.InfoWithFields("Conversation assigned", map[string]interface{}{
		"conversation_id": id.String(),
		"agent_id":        agentID.String(),
	})

	return conv, nil
}

// Close marks a conversation cerrada. Closing an already closed
// conversation is a no-op.
func (s *Service) Close(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	conv, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if !conv.IsOpen() {
		return conv, nil
	}

	if err := s.repository.UpdateState(ctx, id, StateCerrada, conv.AgentID); err != nil {
		return nil, fmt.Errorf("failed to close conversation: %w", err)
	}

	conv.State = StateCerrada

	s.logger.InfoWithFields("Conversation closed", map[string]interface{}{
		"conversation_id": id.String(),
	})

	return conv, nil
}
