package platformconfig

import (
	"context"
	"crypto/subtle"
	"fmt"

	"unibox/internal/core/platform"
	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

// Verifier answers the provider subscription handshake for one platform.
// Tokens come from that platform's resolved configuration; token stores are
// never shared across platforms.
type Verifier struct {
	resolver *Resolver
	logger   *logger.Logger
}

func NewVerifier(resolver *Resolver, log *logger.Logger) *Verifier {
	return &Verifier{
		resolver: resolver,
		logger:   log.WithModule("webhook-verifier"),
	}
}

// VerifyHandshake validates a hub.mode/hub.verify_token pair and returns
// the challenge to echo back. Error mapping is part of the contract:
// ErrInvalidHandshakeMode (bad request), ErrNoConfigAvailable (not found),
// ErrVerifyTokenMismatch (forbidden).
func (v *Verifier) VerifyHandshake(ctx context.Context, p platform.Platform, mode, token, challenge string) (string, error) {
	if mode != "subscribe" {
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidHandshakeMode, mode)
	}

	cfg, err := v.resolver.Resolve(ctx, p)
	if err != nil {
		return "", err
	}
	if cfg.VerifyToken == nil || *cfg.VerifyToken == "" {
		return "", fmt.Errorf("%w: %s has no verify token", errors.ErrNoConfigAvailable, p)
	}

	if subtle.ConstantTimeCompare([]byte(*cfg.VerifyToken), []byte(token)) != 1 {
		v.logger.WarnWithFields("Webhook verification failed", map[string]interface{}{
			"platform": p.String(),
		})
		return "", errors.ErrVerifyTokenMismatch
	}

	v.logger.InfoWithFields("Webhook verification successful", map[string]interface{}{
		"platform": p.String(),
	})

	return challenge, nil
}
