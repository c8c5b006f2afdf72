// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sections

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdocs-ai/devdocs/services/analyzer"
)

func TestAll_CatalogShape(t *testing.T) {
	all := All()
	require.Len(t, all, 12)

	// Orders are unique and ascending.
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].Order, all[i-1].Order)
	}

	ids := make(map[string]bool)
	for _, s := range all {
		assert.NotEmpty(t, s.Name)
		assert.NotEmpty(t, s.WhyImportant)
		assert.NotEmpty(t, s.HowToWrite)
		assert.False(t, ids[s.ID], "duplicate id %s", s.ID)
		ids[s.ID] = true
	}

	assert.True(t, ids["header"])
	assert.True(t, ids["license"])
}

func TestAll_ReturnsCopy(t *testing.T) {
	All()[0].ID = "mutated"
	assert.Equal(t, "header", All()[0].ID)
}

func TestFind(t *testing.T) {
	s, ok := Find("docker")
	require.True(t, ok)
	assert.Equal(t, "Docker Setup", s.Name)

	_, ok = Find("no-such-section")
	assert.False(t, ok)
}

func TestForStack_DropsForeignSections(t *testing.T) {
	stack := analyzer.DetectedStack{Primary: analyzer.StackDjango}
	got := ForStack(stack)

	ids := sectionIDs(got)
	// scripts is JS-only, api-docs includes django.
	assert.NotContains(t, ids, "scripts")
	assert.Contains(t, ids, "api-docs")
	assert.Contains(t, ids, "header")
}

func TestForStack_NextJSKeepsScriptsDropsAPIDocs(t *testing.T) {
	stack := analyzer.DetectedStack{Primary: analyzer.StackNextJS}
	ids := sectionIDs(ForStack(stack))

	assert.Contains(t, ids, "scripts")
	assert.NotContains(t, ids, "api-docs")
}

func TestForStack_DockerAndTestingFollowDetection(t *testing.T) {
	with := ForStack(analyzer.DetectedStack{Primary: analyzer.StackGo, HasDocker: true, HasTesting: true})
	assert.True(t, findIn(t, with, "docker").Recommended)
	assert.True(t, findIn(t, with, "testing").Recommended)

	without := ForStack(analyzer.DetectedStack{Primary: analyzer.StackGo})
	assert.False(t, findIn(t, without, "docker").Recommended)
	assert.False(t, findIn(t, without, "testing").Recommended)
}

func TestForStack_SortedByOrder(t *testing.T) {
	got := ForStack(analyzer.DetectedStack{Primary: analyzer.StackUnknown})
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Order, got[i-1].Order)
	}
}

func TestBuildContext_FullRepoData(t *testing.T) {
	repo := &RepoData{
		Structure: []string{"src/app/api/generate/route.ts", "src/app/api/analyze/route.ts", "package.json"},
		PackageJSON: map[string]any{
			"name":        "devdocs",
			"description": "AI README generator",
			"scripts":     map[string]any{"dev": "next dev", "build": "next build"},
			"dependencies": map[string]any{
				"next": "14.0.0", "react": "18.0.0",
			},
		},
		EnvExample: "OPENAI_API_KEY=\nGROQ_API_KEY=",
		HasDocker:  true,
		HasCI:      true,
	}
	stack := analyzer.DetectedStack{
		Primary: analyzer.StackNextJS, Language: "TypeScript", PackageManager: "npm",
	}

	ctx := BuildContext(repo, stack, "devdocs", "https://github.com/acme/devdocs")

	assert.Contains(t, ctx, "=== PROJECT: devdocs ===")
	assert.Contains(t, ctx, "Stack: nextjs (TypeScript)")
	assert.Contains(t, ctx, "Repository: https://github.com/acme/devdocs")
	assert.Contains(t, ctx, "PROJECT TYPE: README/Documentation Generator")
	assert.Contains(t, ctx, "src/app/api/generate/route.ts")
	assert.Contains(t, ctx, `DESCRIPTION: "AI README generator"`)
	assert.Contains(t, ctx, "dev: next dev")
	assert.Contains(t, ctx, "next, react")
	assert.Contains(t, ctx, "OPENAI_API_KEY=")
	assert.Contains(t, ctx, "- Docker")
	assert.Contains(t, ctx, "- CI/CD")
	assert.NotContains(t, ctx, "- Tests")
}

func TestBuildContext_NoRepoData(t *testing.T) {
	stack := analyzer.DetectedStack{Primary: analyzer.StackGo, Language: "Go"}
	ctx := BuildContext(nil, stack, "mytool", "")

	assert.Contains(t, ctx, "No repository data available.")
	assert.NotContains(t, ctx, "Repository:")
}

func TestBuildPrompt_IncludesPurposeContextAndTask(t *testing.T) {
	section, ok := Find("features")
	require.True(t, ok)

	stack := analyzer.DetectedStack{Primary: analyzer.StackNextJS}
	prompt := BuildPrompt(section, "devdocs", stack, "uses openai and groq and /api/generate", "")

	assert.Contains(t, prompt, "PROJECT PURPOSE")
	assert.Contains(t, prompt, "README/documentation generator")
	assert.Contains(t, prompt, "=== PROJECT DATA ===")
	assert.Contains(t, prompt, `TASK: Generate the "Features" section.`)
	assert.Contains(t, prompt, "DO NOT add features without evidence")
}

func TestBuildPrompt_BadgesOnlyWithGitHubURL(t *testing.T) {
	section, ok := Find("header")
	require.True(t, ok)
	stack := analyzer.DetectedStack{Primary: analyzer.StackNextJS}

	with := BuildPrompt(section, "devdocs", stack, "", "https://github.com/acme/devdocs.git")
	assert.Contains(t, with, "img.shields.io/github/license/acme/devdocs")
	assert.Contains(t, with, "img.shields.io/github/stars/acme/devdocs?style=social")

	without := BuildPrompt(section, "devdocs", stack, "", "")
	assert.NotContains(t, without, "img.shields.io")
}

func TestBuildPrompt_EmptyContextFallsBack(t *testing.T) {
	section, ok := Find("license")
	require.True(t, ok)

	prompt := BuildPrompt(section, "mytool", analyzer.DetectedStack{Primary: analyzer.StackRust}, "", "")
	assert.Contains(t, prompt, "Project: mytool, Stack: rust")
}

func TestBuildPrompt_UnknownTemplateUsesHowToWrite(t *testing.T) {
	custom := Section{ID: "custom", Name: "Custom", HowToWrite: "write it by hand"}
	prompt := BuildPrompt(custom, "mytool", analyzer.DetectedStack{}, "", "")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(prompt), "write it by hand"))
}

func TestInferProjectPurpose_Generic(t *testing.T) {
	purpose := inferProjectPurpose("just some files", "widget")
	assert.Contains(t, purpose, "Analyze the actual API routes")
}

func TestParseGitHubURL(t *testing.T) {
	gh, ok := parseGitHubURL("https://github.com/acme/shop.git")
	require.True(t, ok)
	assert.Equal(t, "acme", gh.Owner)
	assert.Equal(t, "shop", gh.Repo)

	_, ok = parseGitHubURL("https://gitlab.com/acme/shop")
	assert.False(t, ok)
}

func sectionIDs(sections []Section) []string {
	ids := make([]string, 0, len(sections))
	for _, s := range sections {
		ids = append(ids, s.ID)
	}
	return ids
}

func findIn(t *testing.T, sections []Section, id string) Section {
	t.Helper()
	for _, s := range sections {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("section %s not found", id)
	return Section{}
}
