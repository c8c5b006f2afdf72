// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const rateLimitPrefix = "devdocs:ratelimit"

// RateLimitConfig tunes the sliding-window rate limiter.
type RateLimitConfig struct {
	// Limit is the maximum requests per window. Default: 50.
	Limit int64

	// Window is the sliding window size. Default: 10 minutes.
	Window time.Duration

	// FailOpen allows requests through when the counter store
	// errors. Default in the service config: true.
	FailOpen bool
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.Limit <= 0 {
		c.Limit = 50
	}
	if c.Window <= 0 {
		c.Window = 10 * time.Minute
	}
	return c
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// RateLimiter enforces a per-identity sliding window over a counter
// store.
//
// # Description
//
// The window is approximated the way Upstash's sliding-window limiter
// does it: requests are counted in fixed windows, and the effective
// count is the current window's count plus the previous window's
// count weighted by how much of it still overlaps the sliding window.
// Each check increments first and compares after, so the limit-plus-
// first request inside a window is the one that gets refused.
//
// # Thread Safety
//
// Safe for concurrent use; all state lives in the CounterStore.
type RateLimiter struct {
	store  CounterStore
	cfg    RateLimitConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRateLimiter builds a limiter over the given store.
func NewRateLimiter(store CounterStore, cfg RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Check records one request for the identity and decides whether it
// is within the limit.
//
// Inputs:
//
//	ctx - Request context.
//	identity - The network identity (client IP for HTTP callers).
//
// Outputs:
//
//	Decision - Allowed plus limit metadata for response headers.
//	error - Only when the store fails and FailOpen is false.
func (r *RateLimiter) Check(ctx context.Context, identity string) (Decision, error) {
	now := r.now()
	windowStart := now.Truncate(r.cfg.Window)
	prevStart := windowStart.Add(-r.cfg.Window)

	currentKey := r.key(identity, windowStart)
	prevKey := r.key(identity, prevStart)

	// Counters live for two windows so the previous window is still
	// readable while it overlaps the sliding window.
	current, err := r.store.Incr(ctx, currentKey, 2*r.cfg.Window)
	if err != nil {
		return r.storeFailure(now, windowStart, err)
	}

	previous, err := r.store.Get(ctx, prevKey)
	if err != nil {
		return r.storeFailure(now, windowStart, err)
	}

	// Weight of the previous window = the fraction of it still inside
	// the sliding window.
	elapsed := now.Sub(windowStart)
	weight := 1 - float64(elapsed)/float64(r.cfg.Window)
	effective := current + int64(float64(previous)*weight)

	decision := Decision{
		Allowed:   effective <= r.cfg.Limit,
		Limit:     r.cfg.Limit,
		Remaining: max64(0, r.cfg.Limit-effective),
		ResetAt:   windowStart.Add(r.cfg.Window),
	}
	return decision, nil
}

func (r *RateLimiter) storeFailure(now, windowStart time.Time, err error) (Decision, error) {
	if !r.cfg.FailOpen {
		return Decision{}, fmt.Errorf("rate limit check: %w", err)
	}
	r.logger.Error("rate limit store failed, allowing request", "error", err)
	return Decision{
		Allowed:   true,
		Limit:     r.cfg.Limit,
		Remaining: r.cfg.Limit,
		ResetAt:   windowStart.Add(r.cfg.Window),
	}, nil
}

func (r *RateLimiter) key(identity string, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%d", rateLimitPrefix, identity, windowStart.Unix())
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
