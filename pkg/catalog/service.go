package catalog

import (
	"context"
	"time"

	"github.com/Sternrassler/square-catalog-cache/pkg/cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Reconciling produces a fresh snapshot.
type Reconciling interface {
	Reconcile(ctx context.Context) (Result, error)
}

// Service serves the product snapshot, reconciling when it is stale.
type Service struct {
	cache         *cache.Manager
	reconciler    Reconciling
	maxAgeMinutes int
	group         singleflight.Group
	logger        zerolog.Logger
	now           func() time.Time
}

// NewService creates a service serving snapshots younger than maxAgeMinutes.
func NewService(manager *cache.Manager, reconciler Reconciling, maxAgeMinutes int, logger zerolog.Logger) *Service {
	return &Service{
		cache:         manager,
		reconciler:    reconciler,
		maxAgeMinutes: maxAgeMinutes,
		logger:        logger,
		now:           time.Now,
	}
}

// Products returns the serialized snapshot (a JSON array).
// Concurrent stale requests in this process share one reconciliation, which
// keeps running when the caller that started it goes away.
func (s *Service) Products(ctx context.Context) ([]byte, error) {
	rec, err := s.cache.Load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if rec.IsFresh(now, s.maxAgeMinutes) {
		cache.CacheHits.Inc()
		s.logger.Debug().
			Dur("age", now.Sub(*rec.LastWrite)).
			Msg("Cache is fresh, serving stored snapshot")
		return rec.Snapshot, nil
	}

	reason := "stale"
	if rec.Snapshot == nil || rec.LastWrite == nil {
		reason = "cold"
	}
	cache.CacheMisses.WithLabelValues(reason).Inc()
	s.logger.Debug().Str("reason", reason).Msg("Cache miss, reconciling")

	// The shared reconciliation outlives any single caller; each caller
	// stops waiting when its own context ends.
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(cache.SnapshotKey().String(), func() (any, error) {
		res, err := s.reconciler.Reconcile(detached)
		if err != nil {
			return nil, err
		}
		return res.Snapshot, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			s.logger.Debug().Msg("Joined in-flight reconciliation")
		}
		return r.Val.([]byte), nil
	}
}
