// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/devdocs-ai/devdocs/services/analyzer"
)

// DefaultAnalysisTTL is how long a repository analysis stays fresh.
// Analyses are cheap to recompute, so staleness only costs a rerun.
const DefaultAnalysisTTL = 15 * time.Minute

const analysisLRUSize = 256

// AnalysisResult is everything one repository analysis produced. The
// file list rides along with the stack so a cache hit answers exactly
// what a fresh analysis would.
type AnalysisResult struct {
	Stack     analyzer.DetectedStack
	FileNames []string
}

// AnalysisCache memoizes analysis results by repository URL. Purely
// in-process: an analysis is derived data and not worth persisting.
//
// # Thread Safety
//
// Safe for concurrent use.
type AnalysisCache struct {
	lru *expirable.LRU[string, AnalysisResult]
}

// NewAnalysisCache builds an analysis cache. A ttl of zero means
// DefaultAnalysisTTL.
func NewAnalysisCache(ttl time.Duration) *AnalysisCache {
	if ttl <= 0 {
		ttl = DefaultAnalysisTTL
	}
	return &AnalysisCache{
		lru: expirable.NewLRU[string, AnalysisResult](analysisLRUSize, nil, ttl),
	}
}

// Get returns the cached analysis for a repository URL.
func (c *AnalysisCache) Get(repoURL string) (AnalysisResult, bool) {
	return c.lru.Get(repoURL)
}

// Put caches an analysis for a repository URL.
func (c *AnalysisCache) Put(repoURL string, result AnalysisResult) {
	c.lru.Add(repoURL, result)
}
