// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline composes analysis, quota, cache, and generation
// into the two operations the API exposes.
//
// # Request Flow
//
// GenerateSection enforces a strict short-circuit order; each gate
// runs only if every earlier gate passed:
//
//	rate limit → section lookup → tier gate → usage ceiling
//	    → cache lookup → generate (singleflight) → store → record
//
// Cache hits still count against the daily ceiling: the user asked
// for and received content; how it was produced is not their
// concern.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devdocs-ai/devdocs/services/analyzer"
	"github.com/devdocs-ai/devdocs/services/cache"
	"github.com/devdocs-ai/devdocs/services/docserver/middleware"
	"github.com/devdocs-ai/devdocs/services/docserver/observability"
	"github.com/devdocs-ai/devdocs/services/github"
	"github.com/devdocs-ai/devdocs/services/llm"
	"github.com/devdocs-ai/devdocs/services/quota"
	"github.com/devdocs-ai/devdocs/services/sections"
)

// =============================================================================
// Errors
// =============================================================================

// ErrNoInput means an analyze request carried neither a repository
// URL nor files.
var ErrNoInput = errors.New("provide either repoUrl or files")

// RateLimitError reports an exhausted sliding window.
type RateLimitError struct {
	Decision quota.Decision
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.Decision.ResetAt.Format(time.RFC3339))
}

// SectionNotFoundError reports an unknown section id.
type SectionNotFoundError struct {
	SectionID string
}

func (e *SectionNotFoundError) Error() string {
	return fmt.Sprintf("section not found: %s", e.SectionID)
}

// PremiumFeatureError reports a section above the caller's tier.
type PremiumFeatureError struct {
	SectionID    string
	RequiredTier quota.Tier
}

func (e *PremiumFeatureError) Error() string {
	return fmt.Sprintf("section %s requires tier %s", e.SectionID, e.RequiredTier)
}

// UsageLimitError reports an exhausted daily ceiling.
type UsageLimitError struct {
	Result quota.CheckResult
}

func (e *UsageLimitError) Error() string {
	return e.Result.Message
}

// =============================================================================
// Dependencies
// =============================================================================

// Generator is the llm.Orchestrator surface the pipeline needs.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Result, error)
	Providers() []llm.Provider
}

// RepoFetcher is the github.Client surface the pipeline needs.
type RepoFetcher interface {
	FetchRepoFiles(ctx context.Context, repoURL string) ([]analyzer.FileInput, error)
}

// Config wires the pipeline's collaborators. Analyzer, Policy,
// RateLimiter, UsageMeter, ContentCache, and Generator are required;
// the rest are optional.
type Config struct {
	Analyzer      *analyzer.Analyzer
	Policy        *quota.TierPolicy
	RateLimiter   *quota.RateLimiter
	UsageMeter    *quota.UsageMeter
	ContentCache  *cache.ContentCache
	AnalysisCache *cache.AnalysisCache
	Generator     Generator
	Fetcher       RepoFetcher
	Metrics       *observability.GenerationMetrics
	Logger        *slog.Logger
}

// Pipeline executes the analyze and generate operations.
//
// # Thread Safety
//
// Safe for concurrent use; identical in-flight generations are
// coalesced through singleflight.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	group  singleflight.Group
}

// New validates the wiring and builds a pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Analyzer == nil:
		return nil, errors.New("pipeline: analyzer is required")
	case cfg.Policy == nil:
		return nil, errors.New("pipeline: tier policy is required")
	case cfg.RateLimiter == nil:
		return nil, errors.New("pipeline: rate limiter is required")
	case cfg.UsageMeter == nil:
		return nil, errors.New("pipeline: usage meter is required")
	case cfg.ContentCache == nil:
		return nil, errors.New("pipeline: content cache is required")
	case cfg.Generator == nil:
		return nil, errors.New("pipeline: generator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: cfg.Logger}, nil
}

// Providers returns the configured backends in priority order.
func (p *Pipeline) Providers() []llm.Provider {
	return p.cfg.Generator.Providers()
}

// CheckRate consumes one rate limit token for the client. It runs
// before anything else so a throttled caller learns nothing about how
// the rest of the request would have fared; handlers call it ahead of
// body parsing and pass the decision on via GenerateInput.
func (p *Pipeline) CheckRate(ctx context.Context, clientIP string) (quota.Decision, error) {
	decision, err := p.cfg.RateLimiter.Check(ctx, clientIP)
	if err != nil {
		return quota.Decision{}, fmt.Errorf("rate limit check: %w", err)
	}
	return decision, nil
}

// =============================================================================
// Analyze
// =============================================================================

// AnalyzeInput is one analysis request: a repository URL or an
// uploaded file set.
type AnalyzeInput struct {
	RepoURL string
	Files   []analyzer.FileInput
}

// AnalyzeOutput is a completed analysis.
type AnalyzeOutput struct {
	Stack             analyzer.DetectedStack
	SuggestedSections []sections.Section
	FileNames         []string
}

// Analyze classifies a project and returns the sections that apply
// to it. Results for repository URLs are memoized briefly.
func (p *Pipeline) Analyze(ctx context.Context, in AnalyzeInput) (AnalyzeOutput, error) {
	if in.RepoURL == "" && len(in.Files) == 0 {
		return AnalyzeOutput{}, ErrNoInput
	}

	files := in.Files
	if in.RepoURL != "" {
		if p.cfg.AnalysisCache != nil {
			if cached, ok := p.cfg.AnalysisCache.Get(in.RepoURL); ok {
				return AnalyzeOutput{
					Stack:             cached.Stack,
					SuggestedSections: sections.ForStack(cached.Stack),
					FileNames:         cached.FileNames,
				}, nil
			}
		}
		if p.cfg.Fetcher == nil {
			return AnalyzeOutput{}, errors.New("repository fetching is not configured")
		}
		fetched, err := p.cfg.Fetcher.FetchRepoFiles(ctx, in.RepoURL)
		if err != nil {
			return AnalyzeOutput{}, err
		}
		files = fetched
	}

	stack := p.cfg.Analyzer.Analyze(files)

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}

	if in.RepoURL != "" && p.cfg.AnalysisCache != nil {
		p.cfg.AnalysisCache.Put(in.RepoURL, cache.AnalysisResult{Stack: stack, FileNames: names})
	}

	return AnalyzeOutput{
		Stack:             stack,
		SuggestedSections: sections.ForStack(stack),
		FileNames:         names,
	}, nil
}

// =============================================================================
// GenerateSection
// =============================================================================

// GenerateInput is one section generation request.
type GenerateInput struct {
	Identity    middleware.Identity
	SectionID   string
	ProjectName string
	Stack       analyzer.DetectedStack
	RepoURL     string
	RepoData    *sections.RepoData
	Preferred   llm.Provider

	// RateDecision carries an already-consumed rate limit decision
	// from CheckRate, so callers can gate before touching the request
	// body without the window being counted twice. When nil,
	// GenerateSection consults the limiter itself.
	RateDecision *quota.Decision
}

// GenerateOutput is a completed generation, with the quota and rate
// limit state the response echoes back.
type GenerateOutput struct {
	SectionID   string
	Content     string
	Explanation string
	Provider    string
	Cached      bool
	Usage       quota.Usage
	RateLimit   quota.Decision
}

// GenerateSection runs the full gated generation flow.
//
// Outputs:
//
//	GenerateOutput - On success.
//	error - *RateLimitError, *SectionNotFoundError,
//	    *PremiumFeatureError, *UsageLimitError for refusals;
//	    *llm.AggregateError when every backend failed; other errors
//	    are internal.
func (p *Pipeline) GenerateSection(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	var decision quota.Decision
	if in.RateDecision != nil {
		decision = *in.RateDecision
	} else {
		var err error
		decision, err = p.CheckRate(ctx, in.Identity.ClientIP)
		if err != nil {
			return GenerateOutput{}, err
		}
	}
	if !decision.Allowed {
		return GenerateOutput{}, &RateLimitError{Decision: decision}
	}

	section, ok := sections.Find(in.SectionID)
	if !ok {
		return GenerateOutput{}, &SectionNotFoundError{SectionID: in.SectionID}
	}

	if !p.cfg.Policy.SectionAllowed(in.Identity.Tier, section.ID) {
		required, _ := p.cfg.Policy.RequiredTier(section.ID)
		return GenerateOutput{}, &PremiumFeatureError{SectionID: section.ID, RequiredTier: required}
	}

	check, err := p.cfg.UsageMeter.Check(ctx, in.Identity.UserID, in.Identity.SessionID, in.Identity.Tier)
	if err != nil {
		return GenerateOutput{}, fmt.Errorf("usage check: %w", err)
	}
	if !check.Allowed {
		return GenerateOutput{}, &UsageLimitError{Result: check}
	}

	projectName := in.ProjectName
	if projectName == "" {
		projectName = "Project"
	}

	var structure []string
	if in.RepoData != nil {
		structure = in.RepoData.Structure
	}
	key := cache.Fingerprint(projectName, section.ID, string(in.Stack.Primary), structure)

	if entry, ok := p.cfg.ContentCache.Get(ctx, key); ok {
		p.cfg.Metrics.RecordCache(true)
		usage := p.recordUsage(ctx, in.Identity)
		return GenerateOutput{
			SectionID:   section.ID,
			Content:     entry.Content,
			Explanation: entry.Explanation,
			Provider:    entry.Provider,
			Cached:      true,
			Usage:       usage,
			RateLimit:   decision,
		}, nil
	}
	p.cfg.Metrics.RecordCache(false)

	result, err := p.generate(ctx, key, section, projectName, in)
	if err != nil {
		return GenerateOutput{}, err
	}

	usage := p.recordUsage(ctx, in.Identity)
	return GenerateOutput{
		SectionID:   section.ID,
		Content:     result.Content,
		Explanation: section.WhyImportant,
		Provider:    string(result.Provider),
		Usage:       usage,
		RateLimit:   decision,
	}, nil
}

// generate runs the orchestrator behind singleflight, so concurrent
// identical requests share one backend call, and stores valid output.
func (p *Pipeline) generate(ctx context.Context, key string, section sections.Section, projectName string, in GenerateInput) (*llm.Result, error) {
	v, err, _ := p.group.Do(key, func() (any, error) {
		contextText := sections.BuildContext(in.RepoData, in.Stack, projectName, in.RepoURL)
		prompt := sections.BuildPrompt(section, projectName, in.Stack, contextText, in.RepoURL)

		started := time.Now()
		result, err := p.cfg.Generator.Generate(ctx, llm.Request{
			Prompt:    prompt,
			Context:   contextText,
			Preferred: in.Preferred,
			Allowed:   p.cfg.Policy.AllowedBackends(in.Identity.Tier),
		})
		if err != nil {
			return nil, err
		}
		p.cfg.Metrics.RecordGeneration(string(result.Provider), time.Since(started).Seconds(), result.TokensUsed)

		entry := cache.Entry{
			Content:     result.Content,
			Explanation: section.WhyImportant,
			Provider:    string(result.Provider),
			SectionID:   section.ID,
		}
		if cache.IsValid(entry) {
			if err := p.cfg.ContentCache.Put(ctx, key, entry); err != nil {
				p.logger.Warn("failed to cache generated content", "section", section.ID, "error", err)
			}
		} else {
			p.logger.Warn("not caching suspect generation output",
				"section", section.ID, "provider", result.Provider)
		}

		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*llm.Result), nil
}

// recordUsage consumes one unit of quota. Failures are logged, not
// surfaced: the content was already produced.
func (p *Pipeline) recordUsage(ctx context.Context, id middleware.Identity) quota.Usage {
	usage, err := p.cfg.UsageMeter.Record(ctx, id.UserID, id.SessionID, id.Tier)
	if err != nil {
		p.logger.Error("failed to record usage", "error", err)
		return p.cfg.UsageMeter.Current(ctx, id.UserID, id.SessionID, id.Tier)
	}
	return usage
}

// Usage reports the caller's current consumption without gating.
func (p *Pipeline) Usage(ctx context.Context, id middleware.Identity) quota.Usage {
	return p.cfg.UsageMeter.Current(ctx, id.UserID, id.SessionID, id.Tier)
}

// ensure github.Client satisfies RepoFetcher
var _ RepoFetcher = (*github.Client)(nil)
