package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	_ "github.com/mattn/go-sqlite3" // optional whatsmeow store driver

	"unibox/internal/adapters/automation"
	"unibox/internal/adapters/cache"
	"unibox/internal/adapters/database/postgres"
	"unibox/internal/adapters/http/handler"
	"unibox/internal/adapters/http/router"
	"unibox/internal/adapters/meta"
	"unibox/internal/adapters/whatsapp"
	"unibox/internal/core/contact"
	"unibox/internal/core/conversation"
	"unibox/internal/core/dispatch"
	"unibox/internal/core/ingest"
	"unibox/internal/core/message"
	"unibox/internal/core/platform"
	"unibox/internal/core/platformconfig"
	"unibox/internal/core/webhooklog"
	"unibox/platform/config"
	"unibox/platform/database"
	"unibox/platform/logger"
)

// Container wires every component of the application.
type Container struct {
	config   *config.Config
	logger   *logger.Logger
	database *database.Database

	// Repositories
	contactRepo      contact.Repository
	conversationRepo conversation.Repository
	messageRepo      message.Repository
	webhookLogRepo   webhooklog.Repository
	configRepo       platformconfig.Repository

	// Core services
	contactService      *contact.Service
	conversationService *conversation.Service
	messageService      *message.Service
	resolver            *platformconfig.Resolver
	verifier            *platformconfig.Verifier
	pipeline            *ingest.Pipeline
	dispatcher          *dispatch.Dispatcher

	// External adapters
	waGateway   *whatsapp.Gateway
	redisClient *redis.Client

	handler http.Handler
}

// Config is the container's own configuration.
type Config struct {
	AppConfig *config.Config
	Logger    *logger.Logger
	Database  *database.Database
}

// New builds the full dependency graph.
func New(ctx context.Context, cfg *Config) (*Container, error) {
	c := &Container{
		config:   cfg.AppConfig,
		logger:   cfg.Logger,
		database: cfg.Database,
	}

	if err := c.initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize container: %w", err)
	}

	cfg.Logger.Info("Dependency injection container initialized")
	return c, nil
}

func (c *Container) initialize(ctx context.Context) error {
	// 1. Repositories
	c.contactRepo = postgres.NewContactRepository(c.database.DB)
	c.conversationRepo = postgres.NewConversationRepository(c.database.DB)
	c.messageRepo = postgres.NewMessageRepository(c.database.DB)
	c.webhookLogRepo = postgres.NewWebhookLogRepository(c.database.DB)
	c.configRepo = postgres.NewPlatformConfigRepository(c.database.DB)

	// 2. Core services
	c.contactService = contact.NewService(c.contactRepo, c.logger)
	c.conversationService = conversation.NewService(c.conversationRepo, c.logger)
	c.messageService = message.NewService(c.messageRepo, c.logger)
	c.resolver = platformconfig.NewResolver(c.configRepo, c.logger)
	c.verifier = platformconfig.NewVerifier(c.resolver, c.logger)

	// 3. WhatsApp session gateway
	waGateway, err := whatsapp.NewGateway(ctx, c.config.WAStoreDriver, c.config.WAStoreDSN, c.configRepo, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create whatsapp gateway: %w", err)
	}
	c.waGateway = waGateway

	// 4. Automation sink
	var sink ingest.AutomationSink = automation.NoopSink{}
	if c.config.AutomationURL != "" {
		sink = automation.NewHTTPSink(c.config.AutomationURL, c.logger)
	}

	// 5. Optional Redis duplicate fast-path
	var dedup ingest.DedupCache
	if c.config.RedisURL != "" {
		opts, err := redis.ParseURL(c.config.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		c.redisClient = redis.NewClient(opts)
		dedup = cache.NewRedisDedup(c.redisClient, c.logger)
	}

	// 6. Ingestion pipeline
	c.pipeline = ingest.NewPipeline(
		c.contactService,
		c.conversationService,
		c.messageService,
		sink,
		dedup,
		c.config.AutomationTimeout,
		c.logger,
	)

	// 7. Outbound dispatcher
	metaClient := meta.NewClient(c.logger)
	apiSenders := map[platform.Platform]dispatch.APISender{
		platform.WhatsApp:  whatsapp.NewCloudSender(c.logger),
		platform.Facebook:  metaClient,
		platform.Instagram: metaClient,
	}
	c.dispatcher = dispatch.NewDispatcher(
		c.resolver,
		c.contactService,
		c.conversationService,
		c.messageService,
		apiSenders,
		c.waGateway,
		c.logger,
	)

	// 8. HTTP layer
	normalizers := map[platform.Platform]ingest.Normalizer{
		platform.WhatsApp:  whatsapp.NewNormalizer(),
		platform.Facebook:  meta.NewFacebookNormalizer(),
		platform.Instagram: meta.NewInstagramNormalizer(),
	}

	handlers := &router.Handlers{
		Webhook:      handler.NewWebhookHandler(c.verifier, normalizers, c.pipeline, c.webhookLogRepo, c.logger),
		Message:      handler.NewMessageHandler(c.dispatcher, c.contactService, c.conversationService, c.messageService, c.logger),
		Conversation: handler.NewConversationHandler(c.conversationService, c.logger),
		Session:      handler.NewSessionHandler(c.waGateway, c.logger),
	}
	c.handler = router.SetupRoutes(c.config, c.logger, handlers)

	return nil
}

// Handler returns the fully wired HTTP handler.
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Start brings up components that need a running phase. Stored sessions
// marked connected reconnect in the background.
func (c *Container) Start(ctx context.Context) error {
	go c.reconnectStoredSessions(ctx)
	return nil
}

func (c *Container) reconnectStoredSessions(ctx context.Context) {
	cfg, err := c.configRepo.GetConnectedSession(ctx, platform.WhatsApp)
	if err != nil {
		return
	}
	if name := cfg.Session(); name != "" {
		if err := c.waGateway.Connect(ctx, name); err != nil {
			c.logger.WarnWithFields("Failed to reconnect stored session", map[string]interface{}{
				"session_name": name,
				"error":        err.Error(),
			})
		}
	}
}

// Stop shuts components down in reverse dependency order.
func (c *Container) Stop() {
	c.waGateway.Stop()
	if c.redisClient != nil {
		_ = c.redisClient.Close()
	}
	c.logger.Info("Container components stopped")
}
