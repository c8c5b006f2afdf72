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

const usageKeyTTL = 24 * time.Hour

// Usage is a snapshot of an identity's daily consumption.
// Limit and Remaining are Unlimited (-1) for uncapped tiers.
type Usage struct {
	Used      int64     `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int64     `json:"remaining"`
	Tier      Tier      `json:"tier"`
	ResetsAt  time.Time `json:"resetsAt"`
}

// CheckResult is the outcome of a usage ceiling check.
type CheckResult struct {
	Allowed bool   `json:"allowed"`
	Usage   Usage  `json:"usage"`
	Message string `json:"message,omitempty"`
}

// UsageMeter enforces the per-day generation ceiling.
//
// # Description
//
// Identity is the user id for signed-in users, "anon:{sessionId}"
// otherwise, so a user's quota follows them across sessions while
// anonymous quota stays per session. Days roll over at UTC midnight:
// the counter key embeds the UTC date and the entry expires on its
// own, so rollover needs no sweeper.
//
// Check reads without consuming; Record consumes. Callers run Check
// before generating and Record after success, which leaves a small
// check-then-record race: two concurrent requests can both pass the
// check at ceiling-1. That last-request overshoot is accepted; the
// ceiling is a cost control, not a security boundary.
//
// When the store fails, behavior follows the FailOpen flag: open
// means generation is allowed and the failure is logged.
//
// # Thread Safety
//
// Safe for concurrent use.
type UsageMeter struct {
	store    CounterStore
	policy   *TierPolicy
	failOpen bool
	logger   *slog.Logger
	now      func() time.Time
}

// NewUsageMeter builds a meter over the given store and policy.
func NewUsageMeter(store CounterStore, policy *TierPolicy, failOpen bool, logger *slog.Logger) *UsageMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageMeter{
		store:    store,
		policy:   policy,
		failOpen: failOpen,
		logger:   logger,
		now:      time.Now,
	}
}

// Identifier resolves the quota identity for a request.
func Identifier(userID, sessionID string) string {
	if userID != "" {
		return userID
	}
	return "anon:" + sessionID
}

// Check decides whether the identity may generate, without consuming
// quota.
func (m *UsageMeter) Check(ctx context.Context, userID, sessionID string, tier Tier) (CheckResult, error) {
	tier = ParseTier(string(tier))
	limit := m.policy.GenerationLimit(tier)
	now := m.now()

	if limit == Unlimited {
		return CheckResult{Allowed: true, Usage: m.unlimitedUsage(tier, now)}, nil
	}

	used, err := m.store.Get(ctx, m.dailyKey(Identifier(userID, sessionID), now))
	if err != nil {
		if !m.failOpen {
			return CheckResult{}, fmt.Errorf("usage check: %w", err)
		}
		m.logger.Error("usage check failed, allowing generation", "error", err)
		return CheckResult{Allowed: true, Usage: m.freshUsage(tier, limit, now)}, nil
	}

	usage := Usage{
		Used:      used,
		Limit:     limit,
		Remaining: max64(0, int64(limit)-used),
		Tier:      tier,
		ResetsAt:  nextUTCMidnight(now),
	}

	if used >= int64(limit) {
		message := "You've reached your daily limit. Resets at midnight UTC."
		if tier == TierAnonymous {
			message = "Sign in with GitHub to get 5 free generations per day!"
		}
		return CheckResult{Allowed: false, Usage: usage, Message: message}, nil
	}

	return CheckResult{Allowed: true, Usage: usage}, nil
}

// Record consumes one unit of quota after a successful generation
// and returns the updated snapshot. Store failures are non-fatal
// when FailOpen is set: the generation already happened, losing one
// count beats failing the response.
func (m *UsageMeter) Record(ctx context.Context, userID, sessionID string, tier Tier) (Usage, error) {
	tier = ParseTier(string(tier))
	limit := m.policy.GenerationLimit(tier)
	now := m.now()

	used, err := m.store.Incr(ctx, m.dailyKey(Identifier(userID, sessionID), now), usageKeyTTL)
	if err != nil {
		if !m.failOpen {
			return Usage{}, fmt.Errorf("record usage: %w", err)
		}
		m.logger.Error("failed to record usage", "error", err)
		if limit == Unlimited {
			return m.unlimitedUsage(tier, now), nil
		}
		return m.freshUsage(tier, limit, now), nil
	}

	if limit == Unlimited {
		usage := m.unlimitedUsage(tier, now)
		usage.Used = used
		return usage, nil
	}

	return Usage{
		Used:      used,
		Limit:     limit,
		Remaining: max64(0, int64(limit)-used),
		Tier:      tier,
		ResetsAt:  nextUTCMidnight(now),
	}, nil
}

// Current returns the identity's usage snapshot without consuming or
// gating anything. Store failures degrade to a zero snapshot.
func (m *UsageMeter) Current(ctx context.Context, userID, sessionID string, tier Tier) Usage {
	tier = ParseTier(string(tier))
	limit := m.policy.GenerationLimit(tier)
	now := m.now()

	if limit == Unlimited {
		return m.unlimitedUsage(tier, now)
	}

	used, err := m.store.Get(ctx, m.dailyKey(Identifier(userID, sessionID), now))
	if err != nil {
		m.logger.Error("usage read failed", "error", err)
		return m.freshUsage(tier, limit, now)
	}

	return Usage{
		Used:      used,
		Limit:     limit,
		Remaining: max64(0, int64(limit)-used),
		Tier:      tier,
		ResetsAt:  nextUTCMidnight(now),
	}
}

func (m *UsageMeter) dailyKey(identifier string, now time.Time) string {
	return fmt.Sprintf("usage:daily:%s:%s", identifier, now.UTC().Format("2006-01-02"))
}

func (m *UsageMeter) freshUsage(tier Tier, limit int, now time.Time) Usage {
	return Usage{
		Used:      0,
		Limit:     limit,
		Remaining: int64(limit),
		Tier:      tier,
		ResetsAt:  nextUTCMidnight(now),
	}
}

func (m *UsageMeter) unlimitedUsage(tier Tier, now time.Time) Usage {
	return Usage{
		Used:      0,
		Limit:     Unlimited,
		Remaining: Unlimited,
		Tier:      tier,
		ResetsAt:  nextUTCMidnight(now),
	}
}

// nextUTCMidnight is when daily counters roll over.
func nextUTCMidnight(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
