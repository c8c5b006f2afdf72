// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package docserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdocs-ai/devdocs/services/llm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubBackend struct {
	provider llm.Provider
}

func (b *stubBackend) Provider() llm.Provider { return b.provider }

func (b *stubBackend) Generate(context.Context, string, string) (*llm.Result, error) {
	return &llm.Result{Content: "stub content", Provider: b.provider}, nil
}

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := New(Config{
		GinMode:         gin.TestMode,
		InMemoryStorage: true,
		DisableMetrics:  true,
		Backends: []llm.Backend{
			&stubBackend{provider: llm.ProviderGroq},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { svc.(*service).cleanup() })
	return svc
}

func TestApplyConfigDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})

	assert.Equal(t, 12300, cfg.Port)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.False(t, cfg.DisableMetrics)
	assert.Equal(t, int64(50), cfg.RateLimit)
	assert.Equal(t, 10*time.Minute, cfg.RateLimitWindow)
	require.NotNil(t, cfg.FailOpen)
	assert.True(t, *cfg.FailOpen)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	require.NotNil(t, cfg.Logger)
}

func TestApplyConfigDefaults_ExplicitValuesKept(t *testing.T) {
	failClosed := false
	cfg := applyConfigDefaults(Config{
		Port:           9000,
		DisableMetrics: true,
		RateLimit:      3,
		FailOpen:       &failClosed,
	})

	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.DisableMetrics)
	assert.Equal(t, int64(3), cfg.RateLimit)
	assert.False(t, *cfg.FailOpen)
}

func TestNew_ServesHealth(t *testing.T) {
	svc := newTestService(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestNew_ProvidersReflectInjectedBackends(t *testing.T) {
	svc := newTestService(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "groq")
}
