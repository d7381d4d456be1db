// Package ratelimit implements a cool-down gate for the Square API.
// When Square answers 429 Too Many Requests, the gate records how long to
// stay away (Retry-After, or a default) in the shared store so every
// instance stops hitting the provider until the window passes.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// StoreKeyState is the store key holding the serialized RateLimitState.
const StoreKeyState = "catalog:rate_limit:state"

// DefaultCooldown applies when a 429 carries no usable Retry-After header.
const DefaultCooldown = 60 * time.Second

// MaxCooldown caps the Retry-After value we are willing to honor.
const MaxCooldown = 10 * time.Minute

// RateLimitState represents the provider rate limit state.
// This state is shared across all instances via the store.
type RateLimitState struct {
	// BlockedUntil is when requests may be sent again.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastStatus is the HTTP status that produced this state.
	LastStatus int `json:"last_status"`

	// LastUpdate is when this state was written.
	LastUpdate time.Time `json:"last_update"`
}

// IsBlocked returns true if requests must not be sent at now.
func (s *RateLimitState) IsBlocked(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// TimeUntilReset returns the remaining cool-down at now.
// Returns 0 if the cool-down has already passed.
func (s *RateLimitState) TimeUntilReset(now time.Time) time.Duration {
	d := s.BlockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ParseRetryAfter reads the Retry-After header as either delay-seconds or an
// HTTP date. Falls back to DefaultCooldown and never exceeds MaxCooldown.
func ParseRetryAfter(headers http.Header, now time.Time) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return DefaultCooldown
	}

	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = at.Sub(now)
	} else {
		return DefaultCooldown
	}

	if d <= 0 {
		return DefaultCooldown
	}
	if d > MaxCooldown {
		return MaxCooldown
	}
	return d
}
