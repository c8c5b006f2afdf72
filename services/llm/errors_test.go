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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FailureClass
	}{
		{429, FailureRateLimited},
		{503, FailureOverloaded},
		{529, FailureOverloaded}, // Anthropic overloaded
		{500, FailureOverloaded},
		{502, FailureOverloaded},
		{400, FailurePermanent},
		{401, FailurePermanent},
		{403, FailurePermanent},
		{404, FailurePermanent},
		{422, FailurePermanent},
		{0, FailureUnknown},
		{200, FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStatus(tt.status))
		})
	}
}

func TestFailureClass_Retryable(t *testing.T) {
	assert.True(t, FailureOverloaded.Retryable())
	assert.True(t, FailureNetwork.Retryable())
	assert.False(t, FailureRateLimited.Retryable())
	assert.False(t, FailurePermanent.Retryable())
	assert.False(t, FailureUnknown.Retryable())
}

func TestProviderError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	pe := newProviderError(ProviderGroq, 429, inner)

	assert.ErrorIs(t, pe, inner)
	assert.Equal(t, FailureRateLimited, pe.Class)
	assert.Contains(t, pe.Error(), "groq")
	assert.Contains(t, pe.Error(), "429")
}

func TestClassOf(t *testing.T) {
	pe := networkError(ProviderOllama, errors.New("conn refused"))
	wrapped := fmt.Errorf("outer: %w", pe)

	assert.Equal(t, FailureNetwork, ClassOf(wrapped))
	assert.Equal(t, FailureUnknown, ClassOf(errors.New("plain")))
}

func TestProvider_Priority(t *testing.T) {
	// Groq < Gemini < OpenAI < Anthropic < Ollama
	ordered := []Provider{ProviderGroq, ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOllama}
	for i := 1; i < len(ordered); i++ {
		assert.Less(t, ordered[i-1].Priority(), ordered[i].Priority())
	}
	assert.Greater(t, Provider("bogus").Priority(), ProviderOllama.Priority())
}

func TestProvider_Valid(t *testing.T) {
	assert.True(t, ProviderGroq.Valid())
	assert.True(t, ProviderOllama.Valid())
	assert.False(t, Provider("").Valid())
	assert.False(t, Provider("bard").Valid())
}
