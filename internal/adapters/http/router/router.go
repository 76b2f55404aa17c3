package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"unibox/internal/adapters/http/handler"
	"unibox/internal/adapters/http/middleware"
	"unibox/platform/config"
	"unibox/platform/logger"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Webhook      *handler.WebhookHandler
	Message      *handler.MessageHandler
	Conversation *handler.ConversationHandler
	Session      *handler.SessionHandler
}

// SetupRoutes wires middlewares and all route groups.
func SetupRoutes(cfg *config.Config, appLogger *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	setupMiddlewares(r, cfg, appLogger)
	setupHealthRoutes(r)
	setupWebhookRoutes(r, h)
	setupAPIRoutes(r, h)

	return r
}

func setupMiddlewares(r *chi.Mux, cfg *config.Config, appLogger *logger.Logger) {
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					appLogger.ErrorWithFields("Panic recovered", map[string]interface{}{
						"error":  err,
						"path":   req.URL.Path,
						"method": req.Method,
					})
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, req)
		})
	})

	r.Use(middleware.HTTPLogger(appLogger))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.APIKeyAuth(cfg, appLogger))
}

func setupHealthRoutes(r *chi.Mux) {
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"unibox"}`))
	})
}

// setupWebhookRoutes mounts the provider-facing endpoints. These stay
// outside API-key auth; the handshake is their authentication.
func setupWebhookRoutes(r *chi.Mux, h *Handlers) {
	r.Route("/webhooks/{platform}", func(r chi.Router) {
		r.Get("/", h.Webhook.Verify)
		r.Post("/", h.Webhook.Receive)
		// Audit trail; requires the API key like the rest of the internal API.
		r.Get("/logs", h.Webhook.Logs)
	})
}

func setupAPIRoutes(r *chi.Mux, h *Handlers) {
	r.Post("/messages/send", h.Message.Send)

	r.Route("/contacts/{id}", func(r chi.Router) {
		r.Post("/send", h.Message.SendToContact)
	})

	r.Route("/conversations/{id}", func(r chi.Router) {
		r.Get("/", h.Conversation.Get)
		r.Get("/messages", h.Message.History)
		r.Post("/assign", h.Conversation.Assign)
		r.Post("/close", h.Conversation.Close)
	})

	r.Route("/sessions/{name}", func(r chi.Router) {
		r.Post("/connect", h.Session.Connect)
		r.Get("/qr", h.Session.QR)
		r.Get("/status", h.Session.Status)
		r.Post("/logout", h.Session.Logout)
	})
}
