// Package walks implements the walk-request lifecycle: offers, the
// assignment state machine and walker ratings. Every multi-row change runs
// inside one storage transaction; notifications go out only after commit.
package walks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/walk-matching/internal/eta"
	"github.com/example/walk-matching/internal/matcher"
	"github.com/example/walk-matching/internal/models"
	"github.com/example/walk-matching/internal/notify"
	"github.com/example/walk-matching/internal/storage"
)

const DefaultMaxPhotos = 10

// Notifier receives events of committed transitions. It must not block.
type Notifier interface {
	Emit(events ...notify.Event)
}

type Config struct {
	MaxPhotosPerAssignment int
	DefaultRadiusKm        float64
	// ETA annotates visible requests with travel time. Defaults to a
	// straight-line walking estimate.
	ETA eta.Estimator
}

type Service struct {
	store    storage.Store
	matcher  *matcher.Matcher
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

func NewService(store storage.Store, notifier Notifier, logger *slog.Logger, cfg Config) *Service {
	if cfg.MaxPhotosPerAssignment <= 0 {
		cfg.MaxPhotosPerAssignment = DefaultMaxPhotos
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ETA == nil {
		cfg.ETA = eta.Straight{}
	}
	return &Service{
		store:    store,
		matcher:  matcher.New(cfg.DefaultRadiusKm),
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// publish hands events to the notifier after commit. Failures are logged
// and never reach the caller.
func (s *Service) publish(events ...notify.Event) {
	if s.notifier == nil || len(events) == 0 {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("notification emit failed", "error", fmt.Sprint(rec), "events", len(events))
		}
	}()
	s.notifier.Emit(events...)
}

func requireRole(id models.Identity, r models.Role) error {
	if !id.Is(r) {
		return models.Forbidden()
	}
	return nil
}

func (s *Service) view(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.store.View(ctx, fn)
}
