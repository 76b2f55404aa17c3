package platformconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unibox/internal/core/platform"
	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

func newTestVerifier(repo Repository) *Verifier {
	log := logger.New(logger.TestConfig())
	return NewVerifier(NewResolver(repo, log), log)
}

func TestVerifyHandshakeEchoesChallenge(t *testing.T) {
	repo := newMemConfigRepo()
	cfg := repo.add(apiConfig(platform.Facebook, "page"))
	cfg.VerifyToken = strPtr("abc")

	challenge, err := newTestVerifier(repo).VerifyHandshake(context.Background(), platform.Facebook, "subscribe", "abc", "1158201444")
	require.NoError(t, err)
	assert.Equal(t, "1158201444", challenge)
}

func TestVerifyHandshakeTokenMismatch(t *testing.T) {
	repo := newMemConfigRepo()
	cfg := repo.add(apiConfig(platform.Facebook, "page"))
	cfg.VerifyToken = strPtr("abc")

	_, err := newTestVerifier(repo).VerifyHandshake(context.Background(), platform.Facebook, "subscribe", "xyz", "1158201444")
	assert.ErrorIs(t, err, errors.ErrVerifyTokenMismatch)
}

func TestVerifyHandshakeRejectsUnknownMode(t *testing.T) {
	repo := newMemConfigRepo()
	repo.add(apiConfig(platform.Facebook, "page"))

	_, err := newTestVerifier(repo).VerifyHandshake(context.Background(), platform.Facebook, "unsubscribe", "abc", "1158201444")
	assert.ErrorIs(t, err, errors.ErrInvalidHandshakeMode)
}

func TestVerifyHandshakeNoConfiguration(t *testing.T) {
	_, err := newTestVerifier(newMemConfigRepo()).VerifyHandshake(context.Background(), platform.Instagram, "subscribe", "abc", "1158201444")
	assert.ErrorIs(t, err, errors.ErrNoConfigAvailable)
}

func TestVerifyHandshakeConfigWithoutToken(t *testing.T) {
	repo := newMemConfigRepo()
	cfg := repo.add(apiConfig(platform.WhatsApp, "cloud"))
	cfg.VerifyToken = nil

	_, err := newTestVerifier(repo).VerifyHandshake(context.Background(), platform.WhatsApp, "subscribe", "abc", "1158201444")
	assert.ErrorIs(t, err, errors.ErrNoConfigAvailable)
}

func TestVerifyHandshakeTokensArePerPlatform(t *testing.T) {
	repo := newMemConfigRepo()
	fb := repo.add(apiConfig(platform.Facebook, "page"))
	fb.VerifyToken = strPtr("fb-token")
	wa := repo.add(apiConfig(platform.WhatsApp, "cloud"))
	wa.VerifyToken = strPtr("wa-token")

	verifier := newTestVerifier(repo)

	_, err := verifier.VerifyHandshake(context.Background(), platform.Facebook, "subscribe", "wa-token", "c")
	assert.ErrorIs(t, err, errors.ErrVerifyTokenMismatch)

	challenge, err := verifier.VerifyHandshake(context.Background(), platform.WhatsApp, "subscribe", "wa-token", "c")
	require.NoError(t, err)
	assert.Equal(t, "c", challenge)
}
