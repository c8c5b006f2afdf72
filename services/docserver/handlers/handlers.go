// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the docserver HTTP handlers. Each
// handler binds the request, calls the pipeline, and maps typed
// pipeline errors to HTTP status codes and rejection reasons.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devdocs-ai/devdocs/services/docserver/datatypes"
	"github.com/devdocs-ai/devdocs/services/docserver/middleware"
	"github.com/devdocs-ai/devdocs/services/docserver/observability"
	"github.com/devdocs-ai/devdocs/services/docserver/pipeline"
	"github.com/devdocs-ai/devdocs/services/github"
	"github.com/devdocs-ai/devdocs/services/llm"
)

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Providers lists the configured generation backends in priority
// order.
func Providers(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		providers := p.Providers()
		names := make([]string, 0, len(providers))
		for _, prov := range providers {
			names = append(names, string(prov))
		}
		c.JSON(http.StatusOK, datatypes.ProvidersResponse{Providers: names})
	}
}

// Usage reports the caller's current daily consumption.
func Usage(p *pipeline.Pipeline, metrics *observability.GenerationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := middleware.GetIdentity(c)
		usage := p.Usage(c.Request.Context(), id)
		metrics.RecordRequest("usage", true)
		c.JSON(http.StatusOK, datatypes.UsageResponse{Success: true, Usage: usage})
	}
}

// Analyze classifies a repository or uploaded file set.
func Analyze(p *pipeline.Pipeline, metrics *observability.GenerationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.RecordRequest("analyze", false)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error: "invalid request body", Details: err.Error(),
			})
			return
		}

		out, err := p.Analyze(c.Request.Context(), pipeline.AnalyzeInput{
			RepoURL: req.RepoURL,
			Files:   req.Files,
		})
		if err != nil {
			metrics.RecordRequest("analyze", false)
			switch {
			case errors.Is(err, pipeline.ErrNoInput):
				c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			case errors.Is(err, github.ErrInvalidRepoURL):
				c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid repository URL"})
			default:
				slog.Error("analysis failed", "error", err)
				c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
					Error: "failed to analyze repository",
				})
			}
			return
		}

		metrics.RecordRequest("analyze", true)
		c.JSON(http.StatusOK, datatypes.AnalyzeResponse{
			Success: true,
			Data: datatypes.AnalyzeData{
				Stack:             out.Stack,
				SuggestedSections: out.SuggestedSections,
				Files:             out.FileNames,
			},
		})
	}
}

// Generate produces one README section for the caller. The rate
// limiter runs before the body is even parsed: a throttled caller
// gets 429 no matter what they sent.
func Generate(p *pipeline.Pipeline, metrics *observability.GenerationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := middleware.GetIdentity(c)

		decision, err := p.CheckRate(c.Request.Context(), id.ClientIP)
		if err != nil {
			writeGenerateError(c, metrics, err)
			return
		}
		if !decision.Allowed {
			writeGenerateError(c, metrics, &pipeline.RateLimitError{Decision: decision})
			return
		}

		var req datatypes.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.RecordRequest("generate", false)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error: "invalid request body", Details: err.Error(),
			})
			return
		}

		out, err := p.GenerateSection(c.Request.Context(), pipeline.GenerateInput{
			Identity:     id,
			SectionID:    req.SectionID,
			ProjectName:  req.ProjectName,
			Stack:        req.Stack,
			RepoURL:      req.RepoURL,
			RepoData:     req.RepoData,
			Preferred:    llm.Provider(req.Preferred),
			RateDecision: &decision,
		})
		if err != nil {
			writeGenerateError(c, metrics, err)
			return
		}

		metrics.RecordRequest("generate", true)
		c.JSON(http.StatusOK, datatypes.GenerateResponse{
			Success: true,
			Data: datatypes.GeneratedSection{
				SectionID:   out.SectionID,
				Content:     out.Content,
				Explanation: out.Explanation,
				Provider:    out.Provider,
				Cached:      out.Cached,
			},
			Usage: out.Usage,
			RateLimit: datatypes.RateLimitInfo{
				Remaining: out.RateLimit.Remaining,
				ResetAt:   out.RateLimit.ResetAt,
			},
		})
	}
}

// writeGenerateError maps pipeline errors to the API's error shape.
func writeGenerateError(c *gin.Context, metrics *observability.GenerationMetrics, err error) {
	metrics.RecordRequest("generate", false)

	var (
		rateLimited  *pipeline.RateLimitError
		notFound     *pipeline.SectionNotFoundError
		premium      *pipeline.PremiumFeatureError
		usageLimit   *pipeline.UsageLimitError
		allExhausted *llm.AggregateError
	)

	switch {
	case errors.As(err, &rateLimited):
		metrics.RecordRejection(string(datatypes.ReasonRateLimited))
		resetAt := rateLimited.Decision.ResetAt
		remaining := rateLimited.Decision.Remaining
		c.JSON(http.StatusTooManyRequests, datatypes.ErrorResponse{
			Error:     "Rate limit exceeded",
			Reason:    datatypes.ReasonRateLimited,
			ResetAt:   &resetAt,
			Remaining: &remaining,
		})

	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: "Section not found"})

	case errors.As(err, &premium):
		metrics.RecordRejection(string(datatypes.ReasonPremiumFeature))
		c.JSON(http.StatusForbidden, datatypes.ErrorResponse{
			Error:        "This section requires a higher tier",
			Reason:       datatypes.ReasonPremiumFeature,
			RequiredTier: string(premium.RequiredTier),
		})

	case errors.As(err, &usageLimit):
		metrics.RecordRejection(string(datatypes.ReasonUsageLimit))
		resetAt := usageLimit.Result.Usage.ResetsAt
		remaining := usageLimit.Result.Usage.Remaining
		c.JSON(http.StatusTooManyRequests, datatypes.ErrorResponse{
			Error:     usageLimit.Result.Message,
			Reason:    datatypes.ReasonUsageLimit,
			ResetAt:   &resetAt,
			Remaining: &remaining,
		})

	case errors.As(err, &allExhausted):
		slog.Error("all generation backends failed", "error", err)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error:   "Failed to generate content. Please try again later.",
			Details: allExhausted.Error(),
		})

	default:
		slog.Error("generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: "Failed to generate section",
		})
	}
}
