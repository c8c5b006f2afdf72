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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBackend returns a scripted sequence of outcomes, then repeats
// the last one.
type mockBackend struct {
	provider Provider
	script   []error // nil entry means success
	calls    int
}

func (m *mockBackend) Provider() Provider { return m.provider }

func (m *mockBackend) Generate(ctx context.Context, prompt, contextText string) (*Result, error) {
	idx := m.calls
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	m.calls++
	if err := m.script[idx]; err != nil {
		return nil, err
	}
	return &Result{Content: "generated by " + string(m.provider), Provider: m.provider}, nil
}

func failure(p Provider, class FailureClass) *ProviderError {
	return &ProviderError{Provider: p, Class: class, Err: fmt.Errorf("scripted %s failure", class)}
}

func fastOptions() Options {
	return Options{
		MaxAttempts:    2,
		RetryDelay:     time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func TestNewOrchestrator_SortsByPriority(t *testing.T) {
	o := NewOrchestrator([]Backend{
		&mockBackend{provider: ProviderOllama, script: []error{nil}},
		&mockBackend{provider: ProviderGroq, script: []error{nil}},
		&mockBackend{provider: ProviderOpenAI, script: []error{nil}},
	}, fastOptions())

	assert.Equal(t, []Provider{ProviderGroq, ProviderOpenAI, ProviderOllama}, o.Providers())
}

func TestGenerate_FirstBackendWins(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{nil}}
	gemini := &mockBackend{provider: ProviderGemini, script: []error{nil}}
	o := NewOrchestrator([]Backend{gemini, groq}, fastOptions())

	result, err := o.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGroq, result.Provider)
	assert.Equal(t, 1, groq.calls)
	assert.Equal(t, 0, gemini.calls, "later backends must not be touched after a success")
}

func TestGenerate_FallsThroughOnFailure(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{failure(ProviderGroq, FailurePermanent)}}
	gemini := &mockBackend{provider: ProviderGemini, script: []error{nil}}
	o := NewOrchestrator([]Backend{groq, gemini}, fastOptions())

	result, err := o.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, result.Provider)
}

func TestGenerate_PreferredMovesToFront(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{nil}}
	anthropic := &mockBackend{provider: ProviderAnthropic, script: []error{nil}}
	o := NewOrchestrator([]Backend{groq, anthropic}, fastOptions())

	result, err := o.Generate(context.Background(), Request{Prompt: "p", Preferred: ProviderAnthropic})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, result.Provider)
	assert.Equal(t, 0, groq.calls)
}

func TestGenerate_UnconfiguredPreferredFallsBack(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{nil}}
	o := NewOrchestrator([]Backend{groq}, fastOptions())

	result, err := o.Generate(context.Background(), Request{Prompt: "p", Preferred: ProviderOpenAI})
	require.NoError(t, err)
	assert.Equal(t, ProviderGroq, result.Provider)
}

func TestGenerate_PreferredFailureStillFallsThrough(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{nil}}
	anthropic := &mockBackend{provider: ProviderAnthropic, script: []error{failure(ProviderAnthropic, FailurePermanent)}}
	o := NewOrchestrator([]Backend{groq, anthropic}, fastOptions())

	result, err := o.Generate(context.Background(), Request{Prompt: "p", Preferred: ProviderAnthropic})
	require.NoError(t, err)
	assert.Equal(t, ProviderGroq, result.Provider)
	assert.Equal(t, 1, anthropic.calls)
}

func TestGenerate_RateLimitedSkipsRetry(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{failure(ProviderGroq, FailureRateLimited)}}
	gemini := &mockBackend{provider: ProviderGemini, script: []error{nil}}
	o := NewOrchestrator([]Backend{groq, gemini}, fastOptions())

	result, err := o.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, result.Provider)
	assert.Equal(t, 1, groq.calls, "rate-limited backend must not be retried")
}

func TestGenerate_OverloadedIsRetried(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{
		failure(ProviderGroq, FailureOverloaded),
		nil,
	}}
	o := NewOrchestrator([]Backend{groq}, fastOptions())

	result, err := o.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGroq, result.Provider)
	assert.Equal(t, 2, groq.calls)
}

func TestGenerate_NetworkIsRetried(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{
		failure(ProviderGroq, FailureNetwork),
		nil,
	}}
	o := NewOrchestrator([]Backend{groq}, fastOptions())

	_, err := o.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 2, groq.calls)
}

func TestGenerate_RetryBudgetExhausted(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{failure(ProviderGroq, FailureOverloaded)}}
	gemini := &mockBackend{provider: ProviderGemini, script: []error{nil}}
	o := NewOrchestrator([]Backend{groq, gemini}, fastOptions())

	result, err := o.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, result.Provider)
	assert.Equal(t, 2, groq.calls, "overloaded backend gets exactly MaxAttempts tries")
}

func TestGenerate_AllFailAggregates(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{failure(ProviderGroq, FailureRateLimited)}}
	gemini := &mockBackend{provider: ProviderGemini, script: []error{failure(ProviderGemini, FailurePermanent)}}
	o := NewOrchestrator([]Backend{groq, gemini}, fastOptions())

	_, err := o.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Errors, 2)
	assert.Equal(t, FailureRateLimited, agg.ByProvider(ProviderGroq).Class)
	assert.Equal(t, FailurePermanent, agg.ByProvider(ProviderGemini).Class)
	assert.Nil(t, agg.ByProvider(ProviderOllama))
}

func TestGenerate_NoBackends(t *testing.T) {
	o := NewOrchestrator(nil, fastOptions())

	_, err := o.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrNoBackends)
}

func TestGenerate_AllowedFilter(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{nil}}
	openai := &mockBackend{provider: ProviderOpenAI, script: []error{nil}}
	o := NewOrchestrator([]Backend{groq, openai}, fastOptions())

	result, err := o.Generate(context.Background(), Request{
		Prompt:  "p",
		Allowed: []Provider{ProviderOpenAI},
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, result.Provider)
	assert.Equal(t, 0, groq.calls)

	// Empty (non-nil) allowed set blocks everything.
	_, err = o.Generate(context.Background(), Request{
		Prompt:  "p",
		Allowed: []Provider{},
	})
	assert.ErrorIs(t, err, ErrNoBackends)
}

func TestGenerate_ContextCancelledDuringBackoff(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{failure(ProviderGroq, FailureOverloaded)}}
	opts := fastOptions()
	opts.RetryDelay = time.Minute // backoff long enough to be interrupted

	o := NewOrchestrator([]Backend{groq}, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := o.Generate(ctx, Request{Prompt: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerate_AttemptObserverSeesEveryAttempt(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{failure(ProviderGroq, FailureOverloaded)}}
	gemini := &mockBackend{provider: ProviderGemini, script: []error{nil}}

	type attempt struct {
		provider Provider
		outcome  string
	}
	var seen []attempt

	opts := fastOptions()
	opts.AttemptObserver = func(p Provider, outcome string) {
		seen = append(seen, attempt{p, outcome})
	}
	o := NewOrchestrator([]Backend{groq, gemini}, opts)

	_, err := o.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)

	assert.Equal(t, []attempt{
		{ProviderGroq, string(FailureOverloaded)},
		{ProviderGroq, string(FailureOverloaded)},
		{ProviderGemini, "success"},
	}, seen)
}

func TestGenerate_NonProviderErrorTreatedUnknown(t *testing.T) {
	groq := &mockBackend{provider: ProviderGroq, script: []error{errors.New("raw error")}}
	o := NewOrchestrator([]Backend{groq}, fastOptions())

	_, err := o.Generate(context.Background(), Request{Prompt: "p"})
	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, FailureUnknown, agg.Errors[0].Class)
	assert.Equal(t, 1, groq.calls, "unknown failures are not retried")
}
