// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdocs-ai/devdocs/services/analyzer"
	"github.com/devdocs-ai/devdocs/services/cache"
	"github.com/devdocs-ai/devdocs/services/docserver/datatypes"
	"github.com/devdocs-ai/devdocs/services/docserver/middleware"
	"github.com/devdocs-ai/devdocs/services/docserver/pipeline"
	"github.com/devdocs-ai/devdocs/services/llm"
	"github.com/devdocs-ai/devdocs/services/quota"
	storage "github.com/devdocs-ai/devdocs/services/storage/badger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Test Router
// =============================================================================

type stubGenerator struct {
	result *llm.Result
	err    error
}

func (g *stubGenerator) Generate(context.Context, llm.Request) (*llm.Result, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func (g *stubGenerator) Providers() []llm.Provider {
	return []llm.Provider{llm.ProviderGroq, llm.ProviderGemini}
}

func goodResult() *llm.Result {
	return &llm.Result{
		Content:    strings.Repeat("## Header\n\nThis project does a concrete thing. ", 5),
		Provider:   llm.ProviderGroq,
		TokensUsed: 64,
	}
}

func createTestRouter(t *testing.T, gen pipeline.Generator, rateLimit int64) *gin.Engine {
	t.Helper()

	db, err := storage.OpenDB(storage.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := quota.NewBadgerCounterStore(db)
	policy := quota.NewTierPolicy()

	p, err := pipeline.New(pipeline.Config{
		Analyzer:      analyzer.New(),
		Policy:        policy,
		RateLimiter:   quota.NewRateLimiter(store, quota.RateLimitConfig{Limit: rateLimit, Window: 10 * time.Minute}, nil),
		UsageMeter:    quota.NewUsageMeter(store, policy, true, nil),
		ContentCache:  cache.NewContentCache(db, 0, nil),
		AnalysisCache: cache.NewAnalysisCache(0),
		Generator:     gen,
	})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/health", HealthCheck)
	v1 := router.Group("/v1")
	v1.Use(middleware.IdentityMiddleware())
	{
		v1.POST("/analyze", Analyze(p, nil))
		v1.POST("/generate", Generate(p, nil))
		v1.GET("/usage", Usage(p, nil))
		v1.GET("/providers", Providers(p))
	}
	return router
}

func performJSON(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func generateBody(sectionID string) datatypes.GenerateRequest {
	return datatypes.GenerateRequest{
		SectionID:   sectionID,
		ProjectName: "my-app",
		Stack:       analyzer.DetectedStack{Primary: analyzer.StackNextJS},
	}
}

// =============================================================================
// Health / Providers
// =============================================================================

func TestHealthCheck_ReturnsOK(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 100)

	w := performJSON(router, "GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestProviders_ListsBackends(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 100)

	w := performJSON(router, "GET", "/v1/providers", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ProvidersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"groq", "gemini"}, resp.Providers)
}

// =============================================================================
// Analyze
// =============================================================================

func TestAnalyze_WithFiles(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 100)

	w := performJSON(router, "POST", "/v1/analyze", datatypes.AnalyzeRequest{
		Files: []analyzer.FileInput{
			{Name: "package.json", Content: `{"dependencies": {"react": "18.0.0"}}`},
		},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, analyzer.StackReact, resp.Data.Stack.Primary)
	assert.NotEmpty(t, resp.Data.SuggestedSections)
}

func TestAnalyze_NoInputIs400(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 100)

	w := performJSON(router, "POST", "/v1/analyze", datatypes.AnalyzeRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "repoUrl or files")
}

// =============================================================================
// Generate
// =============================================================================

func TestGenerate_Success(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 100)

	w := performJSON(router, "POST", "/v1/generate", generateBody("header"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "header", resp.Data.SectionID)
	assert.Equal(t, "groq", resp.Data.Provider)
	assert.NotEmpty(t, resp.Data.Explanation)
	assert.Equal(t, int64(1), resp.Usage.Used)
}

func TestGenerate_MintsSessionHeader(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 100)

	w := performJSON(router, "POST", "/v1/generate", generateBody("header"), nil)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderSessionID))
}

func TestGenerate_MissingSectionIDIs400(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 100)

	w := performJSON(router, "POST", "/v1/generate", map[string]string{"projectName": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_UnknownSectionIs404(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 100)

	w := performJSON(router, "POST", "/v1/generate", generateBody("bogus"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerate_PremiumSectionIs403(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 100)

	w := performJSON(router, "POST", "/v1/generate", generateBody("tech-stack"), nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.ReasonPremiumFeature, resp.Reason)
	assert.Equal(t, "registered", resp.RequiredTier)
}

func TestGenerate_RegisteredTierUnlocksSection(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 100)

	w := performJSON(router, "POST", "/v1/generate", generateBody("tech-stack"), map[string]string{
		middleware.HeaderUserID:   "user-1",
		middleware.HeaderUserTier: "registered",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerate_UsageLimitIs429(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 100)
	headers := map[string]string{middleware.HeaderSessionID: "sess-1"}

	for i := 0; i < 2; i++ {
		body := generateBody("header")
		body.ProjectName = "app-" + string(rune('a'+i))
		w := performJSON(router, "POST", "/v1/generate", body, headers)
		require.Equal(t, http.StatusOK, w.Code)
	}

	body := generateBody("header")
	body.ProjectName = "app-z"
	w := performJSON(router, "POST", "/v1/generate", body, headers)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.ReasonUsageLimit, resp.Reason)
	assert.Contains(t, resp.Error, "Sign in with GitHub")
	require.NotNil(t, resp.ResetAt)
}

func TestGenerate_RateLimitIs429(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 1)

	w := performJSON(router, "POST", "/v1/generate", generateBody("header"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performJSON(router, "POST", "/v1/generate", generateBody("header"), nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.ReasonRateLimited, resp.Reason)
	require.NotNil(t, resp.Remaining)
	assert.Equal(t, int64(0), *resp.Remaining)
}

func TestGenerate_RateLimitPrecedesBodyParsing(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 1)

	w := performJSON(router, "POST", "/v1/generate", generateBody("header"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// A throttled caller gets 429 even when the body would not parse.
	req := httptest.NewRequest("POST", "/v1/generate", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.ReasonRateLimited, resp.Reason)
}

func TestGenerate_RateWindowCountedOncePerRequest(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 2)

	w := performJSON(router, "POST", "/v1/generate", generateBody("header"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = performJSON(router, "POST", "/v1/generate", generateBody("header"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performJSON(router, "POST", "/v1/generate", generateBody("header"), nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, datatypes.ReasonRateLimited, resp.Reason)
}

func TestGenerate_AllBackendsFailedIs500(t *testing.T) {
	agg := &llm.AggregateError{Errors: []*llm.ProviderError{
		{Provider: llm.ProviderGroq, Class: llm.FailureOverloaded},
	}}
	router := createTestRouter(t, &stubGenerator{err: agg}, 100)

	w := performJSON(router, "POST", "/v1/generate", generateBody("header"), nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "try again later")
}

// =============================================================================
// Usage
// =============================================================================

func TestUsage_ReturnsCurrentSnapshot(t *testing.T) {
	router := createTestRouter(t, &stubGenerator{result: goodResult()}, 100)
	headers := map[string]string{middleware.HeaderSessionID: "sess-1"}

	w := performJSON(router, "POST", "/v1/generate", generateBody("header"), headers)
	require.Equal(t, http.StatusOK, w.Code)

	w = performJSON(router, "GET", "/v1/usage", nil, headers)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.UsageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.Usage.Used)
	assert.Equal(t, 2, resp.Usage.Limit)
}
