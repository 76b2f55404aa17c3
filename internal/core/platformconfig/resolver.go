package platformconfig

import (
	"context"
	stderrors "errors"
	"fmt"

	"unibox/internal/core/platform"
	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

// strategy is one step of the resolution chain. Returning
// errors.ErrConfigNotFound moves resolution to the next step; any other
// error aborts.
type strategy interface {
	name() string
	resolve(ctx context.Context, p platform.Platform) (*Config, error)
}

// Resolver picks the configuration dispatch should use for a platform.
// Order: the operator-designated active record; failing that, the
// most-recently-created API record; for WhatsApp only, any session record
// currently connected. Session records never outrank API records unless
// the operator pins one as active.
type Resolver struct {
	repository Repository
	strategies []strategy
	logger     *logger.Logger
}

func NewResolver(repo Repository, log *logger.Logger) *Resolver {
	return &Resolver{
		repository: repo,
		strategies: []strategy{
			activeStrategy{repo},
			latestAPIStrategy{repo},
			connectedSessionStrategy{repo},
		},
		logger: log.WithModule("config-resolver"),
	}
}

// Resolve walks the strategy chain. When nothing resolves it fails with
// errors.ErrNoConfigAvailable; dispatch never guesses a transport.
func (r *Resolver) Resolve(ctx context.Context, p platform.Platform) (*Config, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedPlatform, p)
	}

	for _, s := range r.strategies {
		cfg, err := s.resolve(ctx, p)
		if err == nil {
			r.logger.DebugWithFields("Configuration resolved", map[string]interface{}{
				"platform": p.String(),
				"strategy": s.name(),
				"kind":     string(cfg.Kind),
			})
			return cfg, nil
		}
		if stderrors.Is(err, errors.ErrConfigNotFound) {
			continue
		}
		return nil, fmt.Errorf("config resolution failed at %s: %w", s.name(), err)
	}

	return nil, fmt.Errorf("%w: %s", errors.ErrNoConfigAvailable, p)
}

// activeStrategy follows the operator-designated pointer record.
type activeStrategy struct {
	repo Repository
}

func (s activeStrategy) name() string { return "active" }

func (s activeStrategy) resolve(ctx context.Context, p platform.Platform) (*Config, error) {
	pointer, err := s.repo.GetActivePointer(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, pointer.ConfigID)
}

// latestAPIStrategy falls back to the newest stored API credential set.
// Session records are excluded here so a freshly paired session cannot
// shadow a REST configuration.
type latestAPIStrategy struct {
	repo Repository
}

func (s latestAPIStrategy) name() string { return "latest-api" }

func (s latestAPIStrategy) resolve(ctx context.Context, p platform.Platform) (*Config, error) {
	return s.repo.GetLatest(ctx, p, KindAPI)
}

// connectedSessionStrategy is the WhatsApp-only last resort: any session
// record whose transport is currently connected.
type connectedSessionStrategy struct {
	repo Repository
}

func (s connectedSessionStrategy) name() string { return "connected-session" }

func (s connectedSessionStrategy) resolve(ctx context.Context, p platform.Platform) (*Config, error) {
	if p != platform.WhatsApp {
		return nil, errors.ErrConfigNotFound
	}
	return s.repo.GetConnectedSession(ctx, p)
}
