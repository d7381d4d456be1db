package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/square-catalog-cache/pkg/kv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "square_rate_limit_blocks_total",
		Help: "Total number of provider requests refused during a 429 cool-down",
	})

	rateLimitHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "square_rate_limit_hits_total",
		Help: "Total number of 429 responses received from the provider",
	})

	rateLimitCooldownSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "square_rate_limit_cooldown_seconds",
		Help: "Length of the most recently recorded provider cool-down",
	})
)

// Tracker monitors provider 429 responses and gates requests.
type Tracker struct {
	store  kv.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a new rate limit tracker.
func NewTracker(store kv.Store, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// GetState retrieves the current rate limit state from the store.
// A missing or unreadable state is treated as "not blocked".
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	raw, err := t.store.Get(ctx, StoreKeyState)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return &RateLimitState{}, nil
		}
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	var state RateLimitState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		t.logger.Warn().Err(err).Msg("Discarding unreadable rate limit state")
		return &RateLimitState{}, nil
	}
	return &state, nil
}

// UpdateFromResponse records a cool-down when the provider answered 429.
// Other statuses leave the state untouched.
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	if statusCode != http.StatusTooManyRequests {
		return nil
	}

	now := t.now()
	cooldown := ParseRetryAfter(headers, now)
	state := RateLimitState{
		BlockedUntil: now.Add(cooldown),
		LastStatus:   statusCode,
		LastUpdate:   now,
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal rate limit state: %w", err)
	}
	if err := t.store.Put(ctx, StoreKeyState, string(data)); err != nil {
		return fmt.Errorf("store rate limit state: %w", err)
	}

	rateLimitHitsTotal.Inc()
	rateLimitCooldownSeconds.Set(cooldown.Seconds())

	t.logger.Warn().
		Dur("cooldown", cooldown).
		Time("blocked_until", state.BlockedUntil).
		Msg("Square rate limit hit - requests paused")

	return nil
}

// ShouldAllowRequest reports whether a provider request may be sent now.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, err
	}

	now := t.now()
	if state.IsBlocked(now) {
		t.logger.Debug().
			Dur("wait_duration", state.TimeUntilReset(now)).
			Msg("Square cool-down active - refusing request")
		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	return true, nil
}
