package dispatch

import (
	"context"
	"fmt"
	"time"

	"unibox/internal/core/contact"
	"unibox/internal/core/conversation"
	"unibox/internal/core/message"
	"unibox/internal/core/platform"
	"unibox/internal/core/platformconfig"
	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

const sendTimeout = 15 * time.Second

// Dispatcher routes a logical send to the platform-specific transport
// chosen by the config resolver. Network calls run outside any database
// transaction; the ledger write happens only after the provider accepts.
type Dispatcher struct {
	resolver      *platformconfig.Resolver
	contacts      *contact.Service
	conversations *conversation.Service
	ledger        *message.Service
	apiSenders    map[platform.Platform]APISender
	sessionSender SessionSender
	logger        *logger.Logger
}

func NewDispatcher(
	resolver *platformconfig.Resolver,
	contacts *contact.Service,
	conversations *conversation.Service,
	ledger *message.Service,
	apiSenders map[platform.Platform]APISender,
	sessionSender SessionSender,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		resolver:      resolver,
		contacts:      contacts,
		conversations: conversations,
		ledger:        ledger,
		apiSenders:    apiSenders,
		sessionSender: sessionSender,
		logger:        log.WithModule("dispatch"),
	}
}

// SendUnifiedMessage sends text on an existing conversation. It always
// returns a structured result; transport and configuration failures are
// reported in it, never raised.
func (d *Dispatcher) SendUnifiedMessage(ctx context.Context, conv *conversation.Conversation, text string) *SendResult {
	p := conv.Platform
	if !p.IsValid() {
		return failure(p, fmt.Errorf("%w: %s", errors.ErrUnsupportedPlatform, p))
	}

	ct, err := d.contacts.Get(ctx, conv.ContactID)
	if err != nil {
		return failure(p, err)
	}

	recipient := ct.ExternalID(p)
	if recipient == "" {
		return failure(p, fmt.Errorf("contact %s has no %s identifier", ct.ID, p))
	}

	cfg, err := d.resolver.Resolve(ctx, p)
	if err != nil {
		return failure(p, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	messageID, err := d.transportSend(sendCtx, cfg, p, conv, recipient, text)
	if err != nil {
		d.logger.WarnWithFields("Outbound send failed", map[string]interface{}{
			"platform":        p.String(),
			"conversation_id": conv.ID.String(),
			"error":           err.Error(),
		})
		return failure(p, err)
	}

	// The provider accepted the message; a ledger failure here must not
	// turn the send into a reported failure.
	outbound := message.NewOutbound(conv.ID, ct.ID, messageID, text)
	if _, err := d.ledger.RecordOutbound(ctx, outbound); err != nil {
		d.logger.ErrorWithFields("Failed to record outbound message", map[string]interface{}{
			"conversation_id": conv.ID.String(),
			"error":           err.Error(),
		})
	}

	d.logger.InfoWithFields("Message dispatched", map[string]interface{}{
		"platform":        p.String(),
		"conversation_id": conv.ID.String(),
		"provider_msg_id": messageID,
		"transport":       string(cfg.Kind),
	})

	return success(p, messageID)
}

// SendToContact resolves the recipient identifier for the platform and
// delegates to SendUnifiedMessage through the contact's open conversation,
// opening one when needed.
func (d *Dispatcher) SendToContact(ctx context.Context, ct *contact.Contact, p platform.Platform, text string) *SendResult {
	if !p.IsValid() {
		return failure(p, fmt.Errorf("%w: %s", errors.ErrUnsupportedPlatform, p))
	}
	if ct.ExternalID(p) == "" {
		return failure(p, fmt.Errorf("contact %s has no %s identifier", ct.ID, p))
	}

	conv, err := d.conversations.EnsureOpen(ctx, ct.ID, p, time.Now())
	if err != nil {
		return failure(p, err)
	}

	return d.SendUnifiedMessage(ctx, conv, text)
}

func (d *Dispatcher) transportSend(ctx context.Context, cfg *platformconfig.Config, p platform.Platform, conv *conversation.Conversation, recipient, text string) (string, error) {
	if p == platform.WhatsApp && cfg.Kind == platformconfig.KindSession {
		if d.sessionSender == nil {
			return "", errors.ErrSessionNotConnected
		}
		return d.sessionSender.SendText(ctx, cfg.Session(), recipient, text)
	}

	sender, ok := d.apiSenders[p]
	if !ok {
		return "", fmt.Errorf("%w: %s", errors.ErrUnsupportedPlatform, p)
	}
	return sender.SendText(ctx, cfg, recipient, text)
}
