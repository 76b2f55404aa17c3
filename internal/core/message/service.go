package message

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

// Service implements the exactly-once ledger semantics over the repository.
type Service struct {
	repository Repository
	logger     *logger.Logger
}

func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{
		repository: repo,
		logger:     log.WithModule("message"),
	}
}

// RecordInbound persists an inbound message exactly once. The returned bool
// reports whether the row was newly created; a redelivery of a known
// external id yields (existing, false, nil).
func (s *Service) RecordInbound(ctx context.Context, msg *Message) (*Message, bool, error) {
	if msg.ExternalID == nil || *msg.ExternalID == "" {
		return nil, false, fmt.Errorf("inbound message requires an external id: %w", errors.ErrInvalidInput)
	}

	err := s.repository.CreateInbound(ctx, msg)
	if err == nil {
		s.logger.InfoWithFields("Message recorded", map[string]interface{}{
			"message_id":      msg.ID.String(),
			"conversation_id": msg.ConversationID.String(),
			"external_id":     *msg.ExternalID,
			"type":            string(msg.Type),
		})
		return msg, true, nil
	}

	if stderrors.Is(err, errors.ErrMessageDuplicate) {
		existing, getErr := s.repository.GetByExternalID(ctx, *msg.ExternalID)
		if getErr != nil {
			// The row exists (the unique index said so); report the no-op
			// even if the reread hit a transient failure.
			s.logger.WarnWithFields("Duplicate message reread failed", map[string]interface{}{
				"external_id": *msg.ExternalID,
				"error":       getErr.Error(),
			})
			return nil, false, nil
		}
		s.logger.DebugWithFields("Duplicate delivery ignored", map[string]interface{}{
			"external_id": *msg.ExternalID,
		})
		return existing, false, nil
	}

	return nil, false, fmt.Errorf("failed to record inbound message: %w", err)
}

// RecordOutbound persists an accepted outbound send.
func (s *Service) RecordOutbound(ctx context.Context, msg *Message) (*Message, error) {
	if err := s.repository.CreateOutbound(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to record outbound message: %w", err)
	}

	s.logger.InfoWithFields("Outbound message recorded", map[string]interface{}{
		"message_id":      msg.ID.String(),
		"conversation_id": msg.ConversationID.String(),
	})

	return msg, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Message, error) {
	msg, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

func (s *Service) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	msgs, err := s.repository.ListByConversation(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

func (s *Service) CountByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	total, err := s.repository.CountByConversation(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return total, nil
}
