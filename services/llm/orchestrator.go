// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var orchTracer = otel.Tracer("devdocs.llm.orchestrator")

// Options tunes orchestrator retry and pacing behavior. Zero values
// take documented defaults.
type Options struct {
	// MaxAttempts is the total attempts per backend before falling
	// through to the next one. Default: 2.
	MaxAttempts int

	// RetryDelay is the base backoff between attempts on the same
	// backend. The delay grows linearly: attempt n waits n*RetryDelay.
	// Default: 2s.
	RetryDelay time.Duration

	// AttemptTimeout bounds a single backend call. Default: 60s.
	AttemptTimeout time.Duration

	// RequestsPerSecond enables client-side pacing of outbound calls
	// across all backends. 0 disables pacing.
	RequestsPerSecond float64

	// Burst is the pacing burst size. Only meaningful when
	// RequestsPerSecond is set. Default: 1.
	Burst int

	// Logger receives per-attempt diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// AttemptObserver, when set, is called once per backend attempt
	// with "success" or the failure class as the outcome.
	AttemptObserver func(provider Provider, outcome string)
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 2
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 60 * time.Second
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Request describes one generation request to the orchestrator.
type Request struct {
	// Prompt is the section prompt to send.
	Prompt string

	// Context is optional project context framing the prompt.
	Context string

	// Preferred, when set and configured, is tried first. The
	// remaining backends keep their priority order behind it.
	Preferred Provider

	// Allowed, when non-nil, restricts the request to these
	// providers. Callers use this for tier gating.
	Allowed []Provider
}

// Orchestrator fans a generation request across the configured
// backends in priority order until one succeeds.
//
// # Description
//
// Backends are injected at construction and the set is immutable
// afterwards; there is no global registry. Each backend gets a small
// retry budget for transient failures (overloaded, network) with a
// linearly growing delay. Rate-limit rejections skip the retry budget
// and fall through to the next backend immediately, since a backend
// that just throttled us will throttle the retry too. Permanent and
// unclassified failures also fall through without retry.
//
// When every backend has failed, the returned error is an
// *AggregateError listing each backend's classified failure.
//
// # Thread Safety
//
// Safe for concurrent use. No state is mutated between calls.
type Orchestrator struct {
	backends []Backend
	opts     Options
	limiter  *rate.Limiter
}

// NewOrchestrator creates an orchestrator over the given backends.
//
// Inputs:
//
//	backends - The configured backends, in any order. They are sorted
//	           by Provider priority at construction. May be empty;
//	           Generate then returns ErrNoBackends.
//	opts - Retry and pacing tuning. Zero values take defaults.
//
// Outputs:
//
//	*Orchestrator - Ready to use.
func NewOrchestrator(backends []Backend, opts Options) *Orchestrator {
	sorted := make([]Backend, len(backends))
	copy(sorted, backends)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Provider().Priority() < sorted[j].Provider().Priority()
	})

	opts = opts.withDefaults()

	o := &Orchestrator{backends: sorted, opts: opts}
	if opts.RequestsPerSecond > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}

	providers := make([]string, len(sorted))
	for i, b := range sorted {
		providers[i] = string(b.Provider())
	}
	opts.Logger.Info("generation backends configured", "providers", providers)

	return o
}

// Providers returns the configured provider tags in priority order.
func (o *Orchestrator) Providers() []Provider {
	providers := make([]Provider, len(o.backends))
	for i, b := range o.backends {
		providers[i] = b.Provider()
	}
	return providers
}

// Has reports whether the provider is configured.
func (o *Orchestrator) Has(p Provider) bool {
	for _, b := range o.backends {
		if b.Provider() == p {
			return true
		}
	}
	return false
}

// Generate runs the request against the backends in order until one
// succeeds.
//
// Inputs:
//
//	ctx - Bounds the whole operation, including retries and backoff.
//	req - The generation request.
//
// Outputs:
//
//	*Result - The first successful generation.
//	error - ErrNoBackends if nothing is configured or allowed,
//	        ctx.Err() if the context expired mid-flight, otherwise
//	        an *AggregateError covering every attempted backend.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := orchTracer.Start(ctx, "Orchestrator.Generate")
	defer span.End()

	order := o.order(req.Preferred, req.Allowed)
	if len(order) == 0 {
		span.SetStatus(codes.Error, "no backends")
		return nil, ErrNoBackends
	}

	var failures []*ProviderError
	for _, backend := range order {
		result, perr := o.tryBackend(ctx, backend, req)
		if perr == nil {
			span.SetAttributes(attribute.String("llm.provider", string(result.Provider)))
			return result, nil
		}
		if ctx.Err() != nil {
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context expired")
			return nil, fmt.Errorf("generation aborted: %w", ctx.Err())
		}
		o.opts.Logger.Warn("backend failed, trying next",
			"provider", backend.Provider(),
			"class", perr.Class,
			"error", perr.Err,
		)
		failures = append(failures, perr)
	}

	agg := &AggregateError{Errors: failures}
	span.RecordError(agg)
	span.SetStatus(codes.Error, "all backends failed")
	return nil, agg
}

// tryBackend runs the per-backend retry sub-loop. It returns the last
// classified failure when the budget is exhausted or the failure class
// rules out a retry.
func (o *Orchestrator) tryBackend(ctx context.Context, backend Backend, req Request) (*Result, *ProviderError) {
	provider := backend.Provider()

	var last *ProviderError
	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return nil, networkError(provider, err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.opts.AttemptTimeout)
		result, err := backend.Generate(attemptCtx, req.Prompt, req.Context)
		cancel()

		if err == nil {
			o.observe(provider, "success")
			return result, nil
		}

		last = asProviderError(provider, err)
		o.observe(provider, string(last.Class))
		o.opts.Logger.Warn("generation attempt failed",
			"provider", provider,
			"attempt", attempt,
			"max_attempts", o.opts.MaxAttempts,
			"class", last.Class,
		)

		if !last.Class.Retryable() || attempt == o.opts.MaxAttempts {
			return nil, last
		}

		// Linear backoff: attempt n waits n * RetryDelay.
		if err := sleepCtx(ctx, time.Duration(attempt)*o.opts.RetryDelay); err != nil {
			return nil, last
		}
	}
	return nil, last
}

// order returns the backends to try, honoring the allowed filter and
// moving the preferred provider to the front without disturbing the
// relative order of the rest.
func (o *Orchestrator) order(preferred Provider, allowed []Provider) []Backend {
	allowedSet := map[Provider]bool{}
	for _, p := range allowed {
		allowedSet[p] = true
	}

	var candidates []Backend
	for _, b := range o.backends {
		if allowed != nil && !allowedSet[b.Provider()] {
			continue
		}
		candidates = append(candidates, b)
	}

	if preferred == "" {
		return candidates
	}
	for i, b := range candidates {
		if b.Provider() == preferred {
			reordered := make([]Backend, 0, len(candidates))
			reordered = append(reordered, b)
			reordered = append(reordered, candidates[:i]...)
			reordered = append(reordered, candidates[i+1:]...)
			return reordered
		}
	}
	// Unknown or unconfigured preference falls back to priority order.
	return candidates
}

func (o *Orchestrator) observe(provider Provider, outcome string) {
	if o.opts.AttemptObserver != nil {
		o.opts.AttemptObserver(provider, outcome)
	}
}

// asProviderError normalizes backend errors: adapters should already
// return *ProviderError, but anything else is treated as unknown.
func asProviderError(provider Provider, err error) *ProviderError {
	if pe, ok := err.(*ProviderError); ok {
		return pe
	}
	return &ProviderError{Provider: provider, Class: FailureUnknown, Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
