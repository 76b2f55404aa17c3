package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"unibox/internal/core/contact"
	"unibox/internal/core/conversation"
	"unibox/internal/core/message"
	"unibox/platform/logger"
)

// Result summarizes what one canonical event did to persisted state.
type Result struct {
	Contact      *contact.Contact
	Conversation *conversation.Conversation
	Message      *message.Message
	Duplicate    bool
}

// Pipeline runs the full ingestion path for one canonical event:
// identity resolution, conversation routing, ledger write, automation.
// It is stateless and safe for any number of concurrent calls, including
// duplicate deliveries of the same provider event.
type Pipeline struct {
	contacts      *contact.Service
	conversations *conversation.Service
	ledger        *message.Service
	sink          AutomationSink
	dedup         DedupCache
	sinkTimeout   time.Duration
	logger        *logger.Logger
}

func NewPipeline(
	contacts *contact.Service,
	conversations *conversation.Service,
	ledger *message.Service,
	sink AutomationSink,
	dedup DedupCache,
	sinkTimeout time.Duration,
	log *logger.Logger,
) *Pipeline {
	if sinkTimeout <= 0 {
		sinkTimeout = 5 * time.Second
	}
	return &Pipeline{
		contacts:      contacts,
		conversations: conversations,
		ledger:        ledger,
		sink:          sink,
		dedup:         dedup,
		sinkTimeout:   sinkTimeout,
		logger:        log.WithModule("ingest"),
	}
}

// ProcessEvent ingests one canonical inbound event. Duplicate deliveries
// resolve to a no-op Result with Duplicate set; only storage failures
// return an error.
func (p *Pipeline) ProcessEvent(ctx context.Context, ev InboundEvent) (*Result, error) {
	if p.dedup != nil && ev.ExternalMessageID != "" && p.dedup.Seen(ctx, ev.ExternalMessageID) {
		p.logger.DebugWithFields("Duplicate suppressed by cache", map[string]interface{}{
			"external_id": ev.ExternalMessageID,
			"platform":    ev.Platform.String(),
		})
		return &Result{Duplicate: true}, nil
	}

	ct, err := p.contacts.ResolveInbound(ctx, ev.Platform, ev.ExternalSenderID, ev.SenderName, ev.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("identity resolution failed: %w", err)
	}

	conv, err := p.conversations.EnsureOpen(ctx, ct.ID, ev.Platform, ev.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("conversation routing failed: %w", err)
	}

	msg := message.NewInbound(conv.ID, ct.ID, ev.ExternalMessageID, ev.ContentType, norm.NFC.String(ev.Content), ev.Timestamp)
	recorded, created, err := p.ledger.RecordInbound(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("ledger write failed: %w", err)
	}

	if p.dedup != nil && ev.ExternalMessageID != "" {
		p.dedup.MarkSeen(ctx, ev.ExternalMessageID)
	}

	result := &Result{
		Contact:      ct,
		Conversation: conv,
		Message:      recorded,
		Duplicate:    !created,
	}

	if created {
		p.triggerAutomation(recorded)
	}

	return result, nil
}

// triggerAutomation is fire-and-forget: it runs off the request path with
// its own bounded deadline, and no failure or panic reaches the caller.
func (p *Pipeline) triggerAutomation(msg *message.Message) {
	if p.sink == nil {
		return
	}

	payload := IngestedMessage{
		ConversationID: msg.ConversationID,
		ContactID:      msg.ContactID,
		Content:        msg.Content,
		ContentType:    msg.Type,
		Direction:      msg.Direction,
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.ErrorWithFields("Automation sink panicked", map[string]interface{}{
					"panic":           r,
					"conversation_id": payload.ConversationID.String(),
				})
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), p.sinkTimeout)
		defer cancel()

		if err := p.sink.OnMessageIngested(ctx, payload); err != nil {
			p.logger.WarnWithFields("Automation sink failed", map[string]interface{}{
				"error":           err.Error(),
				"conversation_id": payload.ConversationID.String(),
			})
		}
	}()
}
