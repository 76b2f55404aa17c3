package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"unibox/internal/adapters/http/shared"
	"unibox/platform/config"
	"unibox/platform/logger"
)

// APIKeyAuth guards the internal API with a static key. Webhook endpoints
// and the health check stay public: providers authenticate through the
// verify-token handshake, not headers.
func APIKeyAuth(cfg *config.Config, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.URL.Path) || !cfg.HasAPIKey() {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := extractAPIKey(r)
			if apiKey == "" {
				log.WarnWithFields("Missing API key", map[string]interface{}{
					"path":   r.URL.Path,
					"method": r.Method,
					"ip":     GetClientIP(r),
				})
				shared.WriteError(w, http.StatusUnauthorized, "API key is required. Provide it via Authorization header or X-API-Key header", "MISSING_API_KEY")
				return
			}

			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(cfg.APIKey)) != 1 {
				log.WarnWithFields("Invalid API key", map[string]interface{}{
					"path":    r.URL.Path,
					"method":  r.Method,
					"ip":      GetClientIP(r),
					"api_key": maskAPIKey(apiKey),
				})
				shared.WriteError(w, http.StatusUnauthorized, "Invalid API key", "INVALID_API_KEY")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isPublicRoute exempts the health check and the provider-facing webhook
// endpoints (/webhooks/{platform} exactly). Deeper webhook paths such as
// the audit log stay behind the key.
func isPublicRoute(path string) bool {
	if path == "/health" {
		return true
	}
	if rest, ok := strings.CutPrefix(path, "/webhooks/"); ok {
		rest = strings.TrimSuffix(rest, "/")
		return rest != "" && !strings.Contains(rest, "/")
	}
	return false
}

func extractAPIKey(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		return authHeader
	}
	return r.Header.Get("X-API-Key")
}

func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:4] + "****" + apiKey[len(apiKey)-4:]
}
