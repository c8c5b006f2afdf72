// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package quota enforces the layered request admission policy:
// a sliding-window rate limit per network identity, a per-day usage
// ceiling per user identity, and a tier policy deciding which
// sections and backends each tier may use.
package quota

import (
	"github.com/devdocs-ai/devdocs/services/llm"
)

// Tier is a user's entitlement level.
type Tier string

const (
	// TierAnonymous is the default for unauthenticated sessions.
	TierAnonymous Tier = "anonymous"

	// TierRegistered covers signed-in users on the free plan.
	TierRegistered Tier = "registered"

	// TierElevated has no daily ceiling and full section access.
	TierElevated Tier = "elevated"
)

// ParseTier maps a raw string to a Tier, defaulting to anonymous for
// anything unrecognized. Unknown input never grants more access.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierRegistered:
		return TierRegistered
	case TierElevated:
		return TierElevated
	default:
		return TierAnonymous
	}
}

// rank orders tiers for monotonicity checks and upgrade prompts.
func (t Tier) rank() int {
	switch t {
	case TierRegistered:
		return 1
	case TierElevated:
		return 2
	default:
		return 0
	}
}

// Unlimited marks a tier without a daily generation ceiling.
const Unlimited = -1

// tierEntitlements is one row of the policy table.
type tierEntitlements struct {
	generationsPerDay int
	sections          []string
	backends          []llm.Provider
}

// TierPolicy is the pure lookup table for tier entitlements.
// Entitlements are strictly increasing with tier rank: every section
// and backend available to a tier is available to all higher tiers.
type TierPolicy struct {
	entitlements map[Tier]tierEntitlements
}

// NewTierPolicy returns the default policy.
func NewTierPolicy() *TierPolicy {
	basicSections := []string{
		"header", "installation", "environment", "license",
	}
	registeredSections := append(append([]string{}, basicSections...),
		"features", "tech-stack", "scripts", "docker",
	)
	elevatedSections := append(append([]string{}, registeredSections...),
		"api-docs", "deployment", "testing", "contributing",
	)

	basicBackends := []llm.Provider{llm.ProviderGemini, llm.ProviderGroq}
	allBackends := []llm.Provider{
		llm.ProviderGroq, llm.ProviderGemini, llm.ProviderOpenAI,
		llm.ProviderAnthropic, llm.ProviderOllama,
	}

	return &TierPolicy{
		entitlements: map[Tier]tierEntitlements{
			TierAnonymous: {
				generationsPerDay: 2,
				sections:          basicSections,
				backends:          basicBackends,
			},
			TierRegistered: {
				generationsPerDay: 5,
				sections:          registeredSections,
				backends:          basicBackends,
			},
			TierElevated: {
				generationsPerDay: Unlimited,
				sections:          elevatedSections,
				backends:          allBackends,
			},
		},
	}
}

// GenerationLimit returns the daily generation ceiling for the tier,
// or Unlimited.
func (p *TierPolicy) GenerationLimit(tier Tier) int {
	return p.entitlements[ParseTier(string(tier))].generationsPerDay
}

// AllowedSections returns the section ids the tier may generate.
// The returned slice is a copy.
func (p *TierPolicy) AllowedSections(tier Tier) []string {
	src := p.entitlements[ParseTier(string(tier))].sections
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// SectionAllowed reports whether the tier may generate the section.
func (p *TierPolicy) SectionAllowed(tier Tier, sectionID string) bool {
	for _, s := range p.entitlements[ParseTier(string(tier))].sections {
		if s == sectionID {
			return true
		}
	}
	return false
}

// RequiredTier returns the lowest tier allowed to generate the
// section, or false if no tier may (unknown section id).
func (p *TierPolicy) RequiredTier(sectionID string) (Tier, bool) {
	for _, tier := range []Tier{TierAnonymous, TierRegistered, TierElevated} {
		if p.SectionAllowed(tier, sectionID) {
			return tier, true
		}
	}
	return "", false
}

// AllowedBackends returns the providers the tier may use, in
// priority order. The returned slice is a copy.
func (p *TierPolicy) AllowedBackends(tier Tier) []llm.Provider {
	src := p.entitlements[ParseTier(string(tier))].backends
	out := make([]llm.Provider, len(src))
	copy(out, src)
	return out
}

// BackendAllowed reports whether the tier may use the provider.
func (p *TierPolicy) BackendAllowed(tier Tier, provider llm.Provider) bool {
	for _, b := range p.entitlements[ParseTier(string(tier))].backends {
		if b == provider {
			return true
		}
	}
	return false
}
