package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unibox/internal/adapters/whatsapp"
	"unibox/internal/core/contact"
	"unibox/internal/core/conversation"
	"unibox/internal/core/ingest"
	"unibox/internal/core/message"
	"unibox/internal/core/platform"
	"unibox/internal/core/platformconfig"
	"unibox/internal/core/shared/errors"
	"unibox/internal/core/webhooklog"
	"unibox/platform/logger"

	"github.com/google/uuid"
)

type memConfigRepo struct {
	configs []*platformconfig.Config
}

func (r *memConfigRepo) GetByID(_ context.Context, id uuid.UUID) (*platformconfig.Config, error) {
	for _, cfg := range r.configs {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return nil, errors.ErrConfigNotFound
}

func (r *memConfigRepo) GetActivePointer(context.Context, platform.Platform) (*platformconfig.ActivePointer, error) {
	return nil, errors.ErrConfigNotFound
}

func (r *memConfigRepo) GetLatest(_ context.Context, p platform.Platform, kind platformconfig.Kind) (*platformconfig.Config, error) {
	for _, cfg := range r.configs {
		if cfg.Platform == p && cfg.Kind == kind {
			return cfg, nil
		}
	}
	return nil, errors.ErrConfigNotFound
}

func (r *memConfigRepo) GetConnectedSession(context.Context, platform.Platform) (*platformconfig.Config, error) {
	return nil, errors.ErrConfigNotFound
}

func (r *memConfigRepo) GetBySessionName(context.Context, string) (*platformconfig.Config, error) {
	return nil, errors.ErrConfigNotFound
}

func (r *memConfigRepo) SetSessionConnected(context.Context, string, bool) error {
	return nil
}

func (r *memConfigRepo) SetSessionDevice(context.Context, string, *string) error {
	return nil
}

type memContactRepo struct {
	mu       sync.Mutex
	contacts map[uuid.UUID]*contact.Contact
}

func (r *memContactRepo) Create(_ context.Context, c *contact.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[c.ID] = c
	return nil
}

func (r *memContactRepo) GetByID(_ context.Context, id uuid.UUID) (*contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contacts[id]; ok {
		return c, nil
	}
	return nil, errors.ErrContactNotFound
}

func (r *memContactRepo) GetByExternalID(_ context.Context, p platform.Platform, externalID string) (*contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.ExternalID(p) == externalID {
			return c, nil
		}
	}
	return nil, errors.ErrContactNotFound
}

func (r *memContactRepo) UpdateLastSeen(context.Context, uuid.UUID, time.Time) error { return nil }

func (r *memContactRepo) UpdateDisplayName(context.Context, uuid.UUID, string) error { return nil }

type memConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*conversation.Conversation
}

func (r *memConversationRepo) Create(_ context.Context, conv *conversation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[conv.ID] = conv
	return nil
}

func (r *memConversationRepo) GetByID(_ context.Context, id uuid.UUID) (*conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv, ok := r.conversations[id]; ok {
		return conv, nil
	}
	return nil, errors.ErrConversationNotFound
}

func (r *memConversationRepo) GetOpen(_ context.Context, contactID uuid.UUID, p platform.Platform) (*conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conv := range r.conversations {
		if conv.ContactID == contactID && conv.Platform == p && conv.IsOpen() {
			return conv, nil
		}
	}
	return nil, errors.ErrConversationNotFound
}

func (r *memConversationRepo) UpdateState(context.Context, uuid.UUID, conversation.State, *uuid.UUID) error {
	return nil
}

type memMessageRepo struct {
	mu         sync.Mutex
	messages   []*message.Message
	failCreate bool
}

func (r *memMessageRepo) CreateInbound(_ context.Context, msg *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errors.ErrInternal
	}
	for _, existing := range r.messages {
		if existing.ExternalID != nil && msg.ExternalID != nil && *existing.ExternalID == *msg.ExternalID {
			return errors.ErrMessageDuplicate
		}
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *memMessageRepo) CreateOutbound(_ context.Context, msg *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *memMessageRepo) GetByID(context.Context, uuid.UUID) (*message.Message, error) {
	return nil, errors.ErrMessageNotFound
}

func (r *memMessageRepo) GetByExternalID(_ context.Context, externalID string) (*message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.messages {
		if msg.ExternalID != nil && *msg.ExternalID == externalID {
			return msg, nil
		}
	}
	return nil, errors.ErrMessageNotFound
}

func (r *memMessageRepo) ListByConversation(context.Context, uuid.UUID, int, int) ([]*message.Message, error) {
	return nil, nil
}

func (r *memMessageRepo) CountByConversation(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

type memWebhookLogRepo struct {
	mu         sync.Mutex
	entries    []*webhooklog.Entry
	failCreate bool
}

func (r *memWebhookLogRepo) Create(_ context.Context, entry *webhooklog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errors.ErrInternal
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memWebhookLogRepo) MarkProcessed(_ context.Context, id uuid.UUID, processingError *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.ID == id {
			now := time.Now()
			entry.ProcessedAt = &now
			entry.ProcessingError = processingError
		}
	}
	return nil
}

func (r *memWebhookLogRepo) ListRecent(_ context.Context, p platform.Platform, limit int) ([]*webhooklog.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, nil
}

type webhookFixture struct {
	router   http.Handler
	configs  *memConfigRepo
	messages *memMessageRepo
	logs     *memWebhookLogRepo
}

func strPtr(s string) *string { return &s }

func newWebhookFixture() *webhookFixture {
	log := logger.New(logger.TestConfig())

	configs := &memConfigRepo{}
	messages := &memMessageRepo{}
	logs := &memWebhookLogRepo{}

	pipeline := ingest.NewPipeline(
		contact.NewService(&memContactRepo{contacts: make(map[uuid.UUID]*contact.Contact)}, log),
		conversation.NewService(&memConversationRepo{conversations: make(map[uuid.UUID]*conversation.Conversation)}, log),
		message.NewService(messages, log),
		nil,
		nil,
		time.Second,
		log,
	)

	resolver := platformconfig.NewResolver(configs, log)
	handler := NewWebhookHandler(
		platformconfig.NewVerifier(resolver, log),
		map[platform.Platform]ingest.Normalizer{
			platform.WhatsApp: whatsapp.NewNormalizer(),
		},
		pipeline,
		logs,
		log,
	)

	r := chi.NewRouter()
	r.Get("/webhooks/{platform}", handler.Verify)
	r.Post("/webhooks/{platform}", handler.Receive)
	r.Get("/webhooks/{platform}/logs", handler.Logs)

	return &webhookFixture{router: r, configs: configs, messages: messages, logs: logs}
}

func (f *webhookFixture) seedVerifyToken(p platform.Platform, token string) {
	f.configs.configs = append(f.configs.configs, &platformconfig.Config{
		ID:          uuid.New(),
		Platform:    p,
		Kind:        platformconfig.KindAPI,
		AccessToken: strPtr("token"),
		VerifyToken: strPtr(token),
	})
}

func TestVerifyEchoesChallenge(t *testing.T) {
	f := newWebhookFixture()
	f.seedVerifyToken(platform.WhatsApp, "abc")

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=abc&hub.challenge=1158201444", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1158201444", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestVerifyTokenMismatchIsForbidden(t *testing.T) {
	f := newWebhookFixture()
	f.seedVerifyToken(platform.WhatsApp, "abc")

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=xyz&hub.challenge=1158201444", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVerifyUnknownModeIsBadRequest(t *testing.T) {
	f := newWebhookFixture()
	f.seedVerifyToken(platform.WhatsApp, "abc")

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=unsubscribe&hub.verify_token=abc&hub.challenge=1", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyWithoutConfigIsNotFound(t *testing.T) {
	f := newWebhookFixture()

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=abc&hub.challenge=1", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyUnknownPlatformIsNotFound(t *testing.T) {
	f := newWebhookFixture()

	req := httptest.NewRequest(http.MethodGet, "/webhooks/telegram?hub.mode=subscribe&hub.verify_token=abc&hub.challenge=1", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

const waTextPayload = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"contacts": [{"profile": {"name": "Ana"}, "wa_id": "5215550001111"}],
				"messages": [{
					"from": "5215550001111",
					"id": "wamid.handler",
					"timestamp": "1700000000",
					"type": "text",
					"text": {"body": "hola"}
				}]
			}
		}]
	}]
}`

func TestReceiveIngestsAndAcknowledges(t *testing.T) {
	f := newWebhookFixture()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(waTextPayload))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())
	assert.Len(t, f.messages.messages, 1)

	// Raw payload is audited and marked processed.
	require.Len(t, f.logs.entries, 1)
	assert.NotNil(t, f.logs.entries[0].ProcessedAt)
	assert.Nil(t, f.logs.entries[0].ProcessingError)
}

func TestReceiveDuplicateDeliveryStillAcknowledges(t *testing.T) {
	f := newWebhookFixture()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(waTextPayload))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Len(t, f.messages.messages, 1)
}

func TestReceiveUnparseablePayloadAcknowledges(t *testing.T) {
	f := newWebhookFixture()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(`<xml/>`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())
	assert.Empty(t, f.messages.messages)

	require.Len(t, f.logs.entries, 1)
	assert.NotNil(t, f.logs.entries[0].ProcessingError)
}

func TestReceiveAuditFaultReturnsServerError(t *testing.T) {
	f := newWebhookFixture()
	f.logs.failCreate = true

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(waTextPayload))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	// Without a durable audit record nothing is acked or ingested; the
	// provider redelivers and the ledger dedupes the retry.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
	assert.Empty(t, f.messages.messages)
	assert.Empty(t, f.logs.entries)
}

func TestLogsListsRecentDeliveries(t *testing.T) {
	f := newWebhookFixture()

	post := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(waTextPayload))
	f.router.ServeHTTP(httptest.NewRecorder(), post)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp/logs", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	assert.Contains(t, rec.Body.String(), "wamid.handler")
}

func TestReceiveStorageFaultReturnsServerError(t *testing.T) {
	f := newWebhookFixture()
	f.messages.failCreate = true

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(waTextPayload))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}
