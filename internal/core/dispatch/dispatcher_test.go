package dispatch

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unibox/internal/core/contact"
	"unibox/internal/core/conversation"
	"unibox/internal/core/message"
	"unibox/internal/core/platform"
	"unibox/internal/core/platformconfig"
	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

type memContactRepo struct {
	contacts map[uuid.UUID]*contact.Contact
}

func (r *memContactRepo) Create(_ context.Context, c *contact.Contact) error {
	r.contacts[c.ID] = c
	return nil
}

func (r *memContactRepo) GetByID(_ context.Context, id uuid.UUID) (*contact.Contact, error) {
	if c, ok := r.contacts[id]; ok {
		return c, nil
	}
	return nil, errors.ErrContactNotFound
}

func (r *memContactRepo) GetByExternalID(_ context.Context, p platform.Platform, externalID string) (*contact.Contact, error) {
	for _, c := range r.contacts {
		if c.ExternalID(p) == externalID {
			return c, nil
		}
	}
	return nil, errors.ErrContactNotFound
}

func (r *memContactRepo) UpdateLastSeen(_ context.Context, id uuid.UUID, seenAt time.Time) error {
	return nil
}

func (r *memContactRepo) UpdateDisplayName(_ context.Context, id uuid.UUID, displayName string) error {
	return nil
}

type memConversationRepo struct {
	conversations map[uuid.UUID]*conversation.Conversation
}

func (r *memConversationRepo) Create(_ context.Context, conv *conversation.Conversation) error {
	for _, existing := range r.conversations {
		if existing.ContactID == conv.ContactID && existing.Platform == conv.Platform && existing.IsOpen() {
			return errors.ErrAlreadyExists
		}
	}
	r.conversations[conv.ID] = conv
	return nil
}

func (r *memConversationRepo) GetByID(_ context.Context, id uuid.UUID) (*conversation.Conversation, error) {
	if conv, ok := r.conversations[id]; ok {
		return conv, nil
	}
	return nil, errors.ErrConversationNotFound
}

func (r *memConversationRepo) GetOpen(_ context.Context, contactID uuid.UUID, p platform.Platform) (*conversation.Conversation, error) {
	for _, conv := range r.conversations {
		if conv.ContactID == contactID && conv.Platform == p && conv.IsOpen() {
			return conv, nil
		}
	}
	return nil, errors.ErrConversationNotFound
}

func (r *memConversationRepo) UpdateState(_ context.Context, id uuid.UUID, state conversation.State, agentID *uuid.UUID) error {
	if conv, ok := r.conversations[id]; ok {
		conv.State = state
		conv.AgentID = agentID
		return nil
	}
	return errors.ErrConversationNotFound
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages []*message.Message
}

func (r *memMessageRepo) CreateInbound(_ context.Context, msg *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *memMessageRepo) GetByExternalID(context.Context, string) (*message.Message, error) {
	return nil, errors.ErrMessageNotFound
}

func (r *memMessageRepo) ListByConversation(context.Context, uuid.UUID, int, int) ([]*message.Message, error) {
	return nil, nil
}

func (r *memMessageRepo) CountByConversation(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

type memConfigRepo struct {
	configs []*platformconfig.Config
}

func (r *memConfigRepo) add(cfg *platformconfig.Config) *platformconfig.Config {
	cfg.ID = uuid.New()
	cfg.CreatedAt = time.Now().Add(time.Duration(len(r.configs)) * time.Second)
	r.configs = append(r.configs, cfg)
	return cfg
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
	var latest *platformconfig.Config
	for _, cfg := range r.configs {
		if cfg.Platform == p && cfg.Kind == kind {
			if latest == nil || cfg.CreatedAt.After(latest.CreatedAt) {
				latest = cfg
			}
		}
	}
	if latest == nil {
		return nil, errors.ErrConfigNotFound
	}
	return latest, nil
}

func (r *memConfigRepo) GetConnectedSession(_ context.Context, p platform.Platform) (*platformconfig.Config, error) {
	for _, cfg := range r.configs {
		if cfg.Platform == p && cfg.Kind == platformconfig.KindSession && cfg.Connected {
			return cfg, nil
		}
	}
	return nil, errors.ErrConfigNotFound
}

func (r *memConfigRepo) GetBySessionName(_ context.Context, sessionName string) (*platformconfig.Config, error) {
	for _, cfg := range r.configs {
		if cfg.Kind == platformconfig.KindSession && cfg.Session() == sessionName {
			return cfg, nil
		}
	}
	return nil, errors.ErrConfigNotFound
}

func (r *memConfigRepo) SetSessionConnected(context.Context, string, bool) error {
	return nil
}

func (r *memConfigRepo) SetSessionDevice(context.Context, string, *string) error {
	return nil
}

// fakeAPISender records calls and returns a canned outcome.
type fakeAPISender struct {
	messageID string
	err       error
	calls     int
	lastTo    string
	lastText  string
}

func (s *fakeAPISender) SendText(_ context.Context, _ *platformconfig.Config, recipientID, text string) (string, error) {
	s.calls++
	s.lastTo = recipientID
	s.lastText = text
	return s.messageID, s.err
}

type fakeSessionSender struct {
	messageID   string
	err         error
	calls       int
	lastSession string
}

func (s *fakeSessionSender) SendText(_ context.Context, sessionName, recipientID, text string) (string, error) {
	s.calls++
	s.lastSession = sessionName
	return s.messageID, s.err
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	contacts   *memContactRepo
	convs      *memConversationRepo
	messages   *memMessageRepo
	configs    *memConfigRepo
	api        map[platform.Platform]*fakeAPISender
	session    *fakeSessionSender
}

func newDispatcherFixture() *dispatcherFixture {
	log := logger.New(logger.TestConfig())
	contacts := &memContactRepo{contacts: make(map[uuid.UUID]*contact.Contact)}
	convs := &memConversationRepo{conversations: make(map[uuid.UUID]*conversation.Conversation)}
	messages := &memMessageRepo{}
	configs := &memConfigRepo{}

	api := map[platform.Platform]*fakeAPISender{
		platform.WhatsApp:  {messageID: "wamid.out"},
		platform.Facebook:  {messageID: "m_out"},
		platform.Instagram: {messageID: "ig_out"},
	}
	apiSenders := make(map[platform.Platform]APISender, len(api))
	for p, s := range api {
		apiSenders[p] = s
	}
	session := &fakeSessionSender{messageID: "3EB0SESSION"}

	return &dispatcherFixture{
		dispatcher: NewDispatcher(
			platformconfig.NewResolver(configs, log),
			contact.NewService(contacts, log),
			conversation.NewService(convs, log),
			message.NewService(messages, log),
			apiSenders,
			session,
			log,
		),
		contacts: contacts,
		convs:    convs,
		messages: messages,
		configs:  configs,
		api:      api,
		session:  session,
	}
}

func strPtr(s string) *string { return &s }

func (f *dispatcherFixture) seedContact(p platform.Platform, externalID string) *contact.Contact {
	ct := contact.New(p, externalID, "Ana", time.Now())
	f.contacts.contacts[ct.ID] = ct
	return ct
}

func (f *dispatcherFixture) seedConversation(ct *contact.Contact, p platform.Platform) *conversation.Conversation {
	conv := conversation.New(ct.ID, p, time.Now())
	f.convs.conversations[conv.ID] = conv
	return conv
}

func (f *dispatcherFixture) seedAPIConfig(p platform.Platform) {
	f.configs.add(&platformconfig.Config{
		Platform:    p,
		Kind:        platformconfig.KindAPI,
		AccessToken: strPtr("token"),
	})
}

func TestSendUnifiedMessageViaAPI(t *testing.T) {
	f := newDispatcherFixture()
	ct := f.seedContact(platform.Facebook, "psid-1")
	conv := f.seedConversation(ct, platform.Facebook)
	f.seedAPIConfig(platform.Facebook)

	result := f.dispatcher.SendUnifiedMessage(context.Background(), conv, "hola")

	assert.True(t, result.Success)
	assert.Equal(t, "m_out", result.MessageID)
	assert.Equal(t, platform.Facebook, result.Platform)
	assert.Empty(t, result.Error)
	assert.Equal(t, "psid-1", f.api[platform.Facebook].lastTo)

	// The accepted send lands in the ledger as saliente.
	require.Len(t, f.messages.messages, 1)
	assert.Equal(t, message.DirectionSaliente, f.messages.messages[0].Direction)
}

func TestSendUnifiedMessageFailureIsUniform(t *testing.T) {
	for _, p := range platform.All {
		t.Run(p.String(), func(t *testing.T) {
			f := newDispatcherFixture()
			ct := f.seedContact(p, "ext-1")
			conv := f.seedConversation(ct, p)
			f.seedAPIConfig(p)
			f.api[p].err = stderrors.New("(#551) This person isn't available right now")
			f.api[p].messageID = ""

			result := f.dispatcher.SendUnifiedMessage(context.Background(), conv, "hola")

			assert.False(t, result.Success)
			assert.Equal(t, p, result.Platform)
			assert.Empty(t, result.MessageID)
			// Provider error text is surfaced verbatim.
			assert.Equal(t, "(#551) This person isn't available right now", result.Error)
			// Failed transports leave no ledger entry.
			assert.Empty(t, f.messages.messages)
		})
	}
}

func TestSendUnifiedMessageSessionTransport(t *testing.T) {
	f := newDispatcherFixture()
	ct := f.seedContact(platform.WhatsApp, "5215550001111")
	conv := f.seedConversation(ct, platform.WhatsApp)
	f.configs.add(&platformconfig.Config{
		Platform:    platform.WhatsApp,
		Kind:        platformconfig.KindSession,
		SessionName: strPtr("principal"),
		Connected:   true,
	})

	result := f.dispatcher.SendUnifiedMessage(context.Background(), conv, "hola")

	assert.True(t, result.Success)
	assert.Equal(t, "3EB0SESSION", result.MessageID)
	assert.Equal(t, 1, f.session.calls)
	assert.Equal(t, "principal", f.session.lastSession)
	assert.Zero(t, f.api[platform.WhatsApp].calls)
}

func TestSendUnifiedMessagePrefersAPIOverSession(t *testing.T) {
	f := newDispatcherFixture()
	ct := f.seedContact(platform.WhatsApp, "5215550001111")
	conv := f.seedConversation(ct, platform.WhatsApp)
	f.configs.add(&platformconfig.Config{
		Platform:    platform.WhatsApp,
		Kind:        platformconfig.KindSession,
		SessionName: strPtr("principal"),
		Connected:   true,
	})
	f.seedAPIConfig(platform.WhatsApp)

	result := f.dispatcher.SendUnifiedMessage(context.Background(), conv, "hola")

	assert.True(t, result.Success)
	assert.Equal(t, 1, f.api[platform.WhatsApp].calls)
	assert.Zero(t, f.session.calls)
}

func TestSendUnifiedMessageNoConfiguration(t *testing.T) {
	f := newDispatcherFixture()
	ct := f.seedContact(platform.Instagram, "ig-1")
	conv := f.seedConversation(ct, platform.Instagram)

	result := f.dispatcher.SendUnifiedMessage(context.Background(), conv, "hola")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no configuration available")
}

func TestSendToContactOpensConversation(t *testing.T) {
	f := newDispatcherFixture()
	ct := f.seedContact(platform.WhatsApp, "5215550001111")
	f.seedAPIConfig(platform.WhatsApp)

	result := f.dispatcher.SendToContact(context.Background(), ct, platform.WhatsApp, "hola")

	assert.True(t, result.Success)
	assert.Len(t, f.convs.conversations, 1)

	// A second send reuses the same conversation.
	result = f.dispatcher.SendToContact(context.Background(), ct, platform.WhatsApp, "otra")
	assert.True(t, result.Success)
	assert.Len(t, f.convs.conversations, 1)
}

func TestSendToContactMissingIdentifier(t *testing.T) {
	f := newDispatcherFixture()
	ct := f.seedContact(platform.WhatsApp, "5215550001111")
	f.seedAPIConfig(platform.Facebook)

	result := f.dispatcher.SendToContact(context.Background(), ct, platform.Facebook, "hola")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "has no facebook identifier")
	assert.Empty(t, f.convs.conversations)
}
