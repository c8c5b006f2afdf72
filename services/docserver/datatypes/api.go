// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the request and response bodies of the
// docserver HTTP API.
package datatypes

import (
	"time"

	"github.com/devdocs-ai/devdocs/services/analyzer"
	"github.com/devdocs-ai/devdocs/services/quota"
	"github.com/devdocs-ai/devdocs/services/sections"
)

// =============================================================================
// Rejection Reasons
// =============================================================================

// Reason labels why a request was refused. Clients branch on it to
// show the right upsell or retry message.
type Reason string

const (
	// ReasonRateLimited means the per-IP sliding window is exhausted.
	ReasonRateLimited Reason = "rate_limited"

	// ReasonPremiumFeature means the section needs a higher tier.
	ReasonPremiumFeature Reason = "premium_feature"

	// ReasonUsageLimit means the daily generation ceiling is reached.
	ReasonUsageLimit Reason = "usage_limit"
)

// =============================================================================
// Analyze
// =============================================================================

// AnalyzeRequest carries either a repository URL or an uploaded file
// set. Exactly one is required.
type AnalyzeRequest struct {
	RepoURL string               `json:"repoUrl,omitempty"`
	Files   []analyzer.FileInput `json:"files,omitempty"`
}

// AnalyzeData is the analysis result payload.
type AnalyzeData struct {
	Stack             analyzer.DetectedStack `json:"stack"`
	SuggestedSections []sections.Section     `json:"suggestedSections"`
	Files             []string               `json:"files"`
}

// AnalyzeResponse wraps a successful analysis.
type AnalyzeResponse struct {
	Success bool        `json:"success"`
	Data    AnalyzeData `json:"data"`
}

// =============================================================================
// Generate
// =============================================================================

// GenerateRequest asks for one README section.
type GenerateRequest struct {
	SectionID   string                 `json:"sectionId" binding:"required"`
	ProjectName string                 `json:"projectName"`
	Stack       analyzer.DetectedStack `json:"stack"`
	RepoURL     string                 `json:"repoUrl,omitempty"`
	RepoData    *sections.RepoData     `json:"repoData,omitempty"`

	// Preferred names the backend to try first; empty uses the
	// default priority order.
	Preferred string `json:"preferred,omitempty"`
}

// GeneratedSection is the generation result payload.
type GeneratedSection struct {
	SectionID   string `json:"sectionId"`
	Content     string `json:"content"`
	Explanation string `json:"explanation"`
	Provider    string `json:"provider"`
	Cached      bool   `json:"cached"`
}

// RateLimitInfo is echoed on every generate response so clients can
// pace themselves.
type RateLimitInfo struct {
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// GenerateResponse wraps a successful generation.
type GenerateResponse struct {
	Success   bool             `json:"success"`
	Data      GeneratedSection `json:"data"`
	Usage     quota.Usage      `json:"usage"`
	RateLimit RateLimitInfo    `json:"rateLimit"`
}

// =============================================================================
// Usage / Providers
// =============================================================================

// UsageResponse reports the caller's current daily usage.
type UsageResponse struct {
	Success bool        `json:"success"`
	Usage   quota.Usage `json:"usage"`
}

// ProvidersResponse lists the configured generation backends in
// priority order. Debug surface.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

// =============================================================================
// Errors
// =============================================================================

// ErrorResponse is the uniform error body. Only the fields relevant
// to the reason are populated.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Reason  Reason `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`

	// Rate limit and usage rejections.
	ResetAt   *time.Time `json:"resetAt,omitempty"`
	Remaining *int64     `json:"remaining,omitempty"`

	// Tier rejections.
	RequiredTier string `json:"requiredTier,omitempty"`
}
