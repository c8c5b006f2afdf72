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
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FailureClass categorizes a backend failure. The orchestrator keys
// its retry and fallthrough decisions off this class, never off error
// message text.
type FailureClass string

const (
	// FailureRateLimited: the backend rejected us for quota/rate
	// reasons. Retrying the same backend is pointless; fall through
	// to the next one immediately.
	FailureRateLimited FailureClass = "rate_limited"

	// FailureOverloaded: the backend is temporarily saturated.
	// Worth a short-delay retry on the same backend.
	FailureOverloaded FailureClass = "overloaded"

	// FailureNetwork: the request never completed (transport error,
	// timeout). Worth a retry.
	FailureNetwork FailureClass = "network"

	// FailurePermanent: the request is wrong for this backend (bad
	// credentials, unknown model, malformed request). Retrying cannot
	// help.
	FailurePermanent FailureClass = "permanent"

	// FailureUnknown: anything unclassifiable. Treated as
	// non-retryable.
	FailureUnknown FailureClass = "unknown"
)

// Retryable reports whether the same backend is worth another attempt.
func (c FailureClass) Retryable() bool {
	return c == FailureOverloaded || c == FailureNetwork
}

// ProviderError is a classified failure from a single backend.
type ProviderError struct {
	Provider Provider
	Class    FailureClass
	Status   int // HTTP status, 0 when not applicable
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Class, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// newProviderError builds a ProviderError with the class derived from
// the HTTP status.
func newProviderError(provider Provider, status int, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Class:    classifyStatus(status),
		Status:   status,
		Err:      err,
	}
}

// networkError wraps a transport-level failure (request never got a
// response).
func networkError(provider Provider, err error) *ProviderError {
	return &ProviderError{Provider: provider, Class: FailureNetwork, Err: err}
}

// classifyStatus maps an HTTP status code to a FailureClass.
func classifyStatus(status int) FailureClass {
	switch {
	case status == http.StatusTooManyRequests:
		return FailureRateLimited
	case status == http.StatusServiceUnavailable || status == 529:
		// 529 is Anthropic's "overloaded" status.
		return FailureOverloaded
	case status >= 500:
		return FailureOverloaded
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusNotFound,
		status == http.StatusBadRequest:
		return FailurePermanent
	case status >= 400:
		return FailurePermanent
	default:
		return FailureUnknown
	}
}

// ClassOf extracts the FailureClass from an error chain, defaulting
// to FailureUnknown.
func ClassOf(err error) FailureClass {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Class
	}
	return FailureUnknown
}

// ErrNoBackends is returned when generation is requested but no
// backend is configured.
var ErrNoBackends = errors.New("no generation backends are configured")

// AggregateError is returned when every configured backend failed.
// It preserves each backend's classified error for the caller.
type AggregateError struct {
	Errors []*ProviderError
}

func (e *AggregateError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, pe := range e.Errors {
		parts[i] = pe.Error()
	}
	return "all generation backends failed: " + strings.Join(parts, "; ")
}

// ByProvider returns the recorded error for a provider, or nil.
func (e *AggregateError) ByProvider(p Provider) *ProviderError {
	for _, pe := range e.Errors {
		if pe.Provider == p {
			return pe
		}
	}
	return nil
}
