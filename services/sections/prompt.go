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
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/devdocs-ai/devdocs/services/analyzer"
)

// RepoData is the repository material available to the prompt
// builder. All fields are optional; the builder degrades to whatever
// is present.
type RepoData struct {
	Files          []analyzer.FileInput `json:"files,omitempty"`
	Structure      []string             `json:"structure,omitempty"`
	PackageJSON    map[string]any       `json:"packageJson,omitempty"`
	ExistingReadme string               `json:"existingReadme,omitempty"`
	EnvExample     string               `json:"envExample,omitempty"`
	HasDocker      bool                 `json:"hasDocker,omitempty"`
	HasTests       bool                 `json:"hasTests,omitempty"`
	HasCI          bool                 `json:"hasCI,omitempty"`
}

type githubInfo struct {
	Owner string
	Repo  string
}

var githubURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)

func parseGitHubURL(repoURL string) (githubInfo, bool) {
	m := githubURLPattern.FindStringSubmatch(repoURL)
	if m == nil {
		return githubInfo{}, false
	}
	return githubInfo{Owner: m[1], Repo: strings.TrimSuffix(m[2], ".git")}, true
}

// BuildContext assembles the project context block fed to the
// generation backends: identity, detected stack, API routes, manifest
// summary, env example, and detected feature flags. The richer the
// context, the less the model has to invent.
func BuildContext(repo *RepoData, stack analyzer.DetectedStack, projectName, repoURL string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== PROJECT: %s ===\n", projectName)
	fmt.Fprintf(&b, "Stack: %s (%s)\n", stack.Primary, stack.Language)
	fmt.Fprintf(&b, "Package Manager: %s\n", stack.PackageManager)
	if repoURL != "" {
		fmt.Fprintf(&b, "Repository: %s\n", repoURL)
	}

	if repo == nil {
		b.WriteString("\nNo repository data available.\n")
		return b.String()
	}

	if len(repo.Structure) > 0 {
		if looksLikeGenerator(repo.Structure) {
			b.WriteString("\nPROJECT TYPE: README/Documentation Generator\n")
		}
		if routes := apiRoutes(repo.Structure); len(routes) > 0 {
			b.WriteString("\nAPI ROUTES:\n")
			for _, r := range routes {
				fmt.Fprintf(&b, "  - %s\n", r)
			}
		}
		fmt.Fprintf(&b, "\nFILES: %d total\n", len(repo.Structure))
	}

	writePackageJSON(&b, repo.PackageJSON)

	if repo.EnvExample != "" {
		b.WriteString("\n=== .ENV.EXAMPLE ===\n")
		b.WriteString(repo.EnvExample)
		b.WriteString("\n")
	}

	b.WriteString("\n=== DETECTED FEATURES ===\n")
	if repo.HasDocker {
		b.WriteString("- Docker\n")
	}
	if repo.HasCI {
		b.WriteString("- CI/CD\n")
	}
	if repo.HasTests {
		b.WriteString("- Tests\n")
	}

	return b.String()
}

func looksLikeGenerator(structure []string) bool {
	for _, f := range structure {
		lower := strings.ToLower(f)
		if strings.Contains(f, "api/generate") || strings.Contains(f, "api/analyze") ||
			strings.Contains(lower, "readme") || strings.Contains(lower, "preview") ||
			strings.Contains(lower, "wizard") {
			return true
		}
	}
	return false
}

func apiRoutes(structure []string) []string {
	var routes []string
	for _, f := range structure {
		if strings.Contains(f, "api/") {
			routes = append(routes, f)
			if len(routes) == 10 {
				break
			}
		}
	}
	return routes
}

func writePackageJSON(b *strings.Builder, pkg map[string]any) {
	if pkg == nil {
		return
	}
	b.WriteString("\n=== PACKAGE.JSON ===\n")
	if desc, ok := pkg["description"].(string); ok && desc != "" {
		fmt.Fprintf(b, "DESCRIPTION: %q\n", desc)
	}
	if name, ok := pkg["name"].(string); ok && name != "" {
		fmt.Fprintf(b, "Name: %s\n", name)
	}
	if version, ok := pkg["version"].(string); ok && version != "" {
		fmt.Fprintf(b, "Version: %s\n", version)
	}
	if scripts, ok := pkg["scripts"].(map[string]any); ok && len(scripts) > 0 {
		b.WriteString("\nSCRIPTS:\n")
		for _, name := range sortedKeys(scripts) {
			fmt.Fprintf(b, "  %s: %v\n", name, scripts[name])
		}
	}
	writeDepList(b, pkg, "dependencies", "DEPENDENCIES")
	writeDepList(b, pkg, "devDependencies", "DEV DEPENDENCIES")
}

func writeDepList(b *strings.Builder, pkg map[string]any, field, label string) {
	deps, ok := pkg[field].(map[string]any)
	if !ok || len(deps) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s (%d):\n%s\n", label, len(deps), strings.Join(sortedKeys(deps), ", "))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildPrompt produces the full generation prompt for a section:
// inferred project purpose, grounding rules, assembled context, badge
// instructions when the GitHub coordinates are known, and the
// section's own template.
func BuildPrompt(section Section, projectName string, stack analyzer.DetectedStack, contextText, repoURL string) string {
	gh, hasGH := parseGitHubURL(repoURL)
	purpose := inferProjectPurpose(contextText, projectName)

	badgeBlock := ""
	if hasGH {
		badgeBlock = "\nBadges (use exactly):\n" + badgeMarkdown(gh) + "\n"
	}

	projectData := contextText
	if projectData == "" {
		projectData = fmt.Sprintf("Project: %s, Stack: %s", projectName, stack.Primary)
	}

	var b strings.Builder
	b.WriteString("You are a technical writer creating a README section.\n\n")
	b.WriteString("=== PROJECT PURPOSE (USE THIS!) ===\n")
	b.WriteString(purpose)
	b.WriteString("\n=== STRICT RULES ===\n")
	b.WriteString("1. Use the PROJECT PURPOSE above as the main description\n")
	b.WriteString("2. ONLY describe features based on actual code/dependencies\n")
	b.WriteString("3. DO NOT invent features\n")
	b.WriteString("4. If you see API routes like /api/generate, /api/analyze -> this is a GENERATOR tool\n")
	b.WriteString("5. If you see react-markdown + AI libs -> this is a DOCUMENTATION tool\n\n")
	b.WriteString("=== PROJECT DATA ===\n")
	b.WriteString(projectData)
	b.WriteString("\n")
	b.WriteString(badgeBlock)
	b.WriteString("\nOUTPUT: Clean markdown, no meta-commentary, under 250 words.\n\n")
	fmt.Fprintf(&b, "TASK: Generate the %q section.\n\n", section.Name)
	b.WriteString(sectionTemplate(section, projectName, repoURL, gh, hasGH))
	return b.String()
}

func badgeMarkdown(gh githubInfo) string {
	return fmt.Sprintf("![License](https://img.shields.io/github/license/%[1]s/%[2]s)\n"+
		"![Stars](https://img.shields.io/github/stars/%[1]s/%[2]s?style=social)\n"+
		"![Issues](https://img.shields.io/github/issues/%[1]s/%[2]s)", gh.Owner, gh.Repo)
}

func sectionTemplate(section Section, projectName, repoURL string, gh githubInfo, hasGH bool) string {
	switch section.ID {
	case "header":
		badges := ""
		if hasGH {
			badges = badgeMarkdown(gh) + "\n"
		}
		return fmt.Sprintf(`# %[1]s

%[2]s
INSTRUCTIONS:
1. Write a clear 1-2 sentence description of WHAT THIS PROJECT DOES
2. Use the PROJECT PURPOSE from above
3. Quick Start with actual commands from the project data
4. List 3-4 highlights based on ACTUAL dependencies only`, projectName, badges)

	case "features":
		return `## Features

INSTRUCTIONS:
1. Each feature must be based on an ACTUAL dependency or API route
2. Format: - **Feature Name** - Description

Look for:
- API routes (what they do)
- UI components (what they render)
- Dependencies (what functionality they provide)

DO NOT add features without evidence in the code.`

	case "installation":
		cloneURL := repoURL
		if cloneURL == "" {
			cloneURL = fmt.Sprintf("https://github.com/username/%s.git", projectName)
		}
		return fmt.Sprintf("## Installation\n\n"+
			"### Prerequisites\n"+
			"State the runtime and version from the project data.\n\n"+
			"### Steps\n\n"+
			"1. **Clone the repository**\n"+
			"```bash\ngit clone %s\ncd %s\n```\n\n"+
			"2. **Install dependencies** (use the detected package manager)\n\n"+
			"3. **Set up environment variables** (copy .env.example when present)\n\n"+
			"4. **Run the project** with the actual start command", cloneURL, projectName)

	case "tech-stack":
		return `## Tech Stack

Render a two-column markdown table: | Category | Technology |

Add ONLY technologies that exist in the dependency list.
DO NOT add technologies not in the manifest.`

	case "environment":
		return `## Environment Variables

CRITICAL: Use EXACT variables from .env.example if provided in context.
If not provided, infer from dependencies.

Render a table with: | Variable | Description | Required |
Never include real secret values.`

	case "scripts":
		return `## Available Scripts

Render a table with: | Command | Description |

Only include scripts that actually exist in the manifest.`

	case "deployment":
		return `## Deployment

Include:
- Production build and start commands from the project data
- A recommended hosting platform for this stack
- A reminder to set required environment variables in production`

	case "contributing":
		return "## Contributing\n\n" +
			"Contributions are welcome! Here's how:\n\n" +
			"1. Fork the repository\n" +
			"2. Create a feature branch: `git checkout -b feature/amazing-feature`\n" +
			"3. Commit changes: `git commit -m 'Add amazing feature'`\n" +
			"4. Push to branch: `git push origin feature/amazing-feature`\n" +
			"5. Open a Pull Request\n\n" +
			"### Guidelines\n" +
			"- Follow existing code style\n" +
			"- Write meaningful commit messages\n" +
			"- Add tests for new features\n" +
			"- Update documentation as needed"

	case "license":
		return "## License\n\n" +
			"State the project's license and link to the LICENSE file. " +
			"If no license file exists, suggest MIT and link to choosealicense.com."

	case "testing":
		return `## Testing

Document, using the actual commands from the project data:
- How to run all tests
- Watch mode if available
- Coverage reporting if available`

	default:
		return section.HowToWrite
	}
}

// inferProjectPurpose guesses what kind of project this is from the
// assembled context, so the header and features sections describe the
// project specifically instead of generically.
func inferProjectPurpose(contextText, projectName string) string {
	ctx := strings.ToLower(contextText)
	name := strings.ToLower(projectName)

	isReadmeGenerator := strings.Contains(ctx, "/api/generate") ||
		strings.Contains(ctx, "/api/analyze") ||
		strings.Contains(ctx, "readme") ||
		strings.Contains(name, "readme") ||
		strings.Contains(name, "docs") ||
		strings.Contains(name, "devdocs")

	isDocTool := strings.Contains(ctx, "react-markdown") &&
		(strings.Contains(ctx, "openai") || strings.Contains(ctx, "generative-ai"))

	aiProviders := 0
	for _, marker := range []string{"openai", "anthropic", "groq"} {
		if strings.Contains(ctx, marker) {
			aiProviders++
		}
	}
	if strings.Contains(ctx, "generative-ai") || strings.Contains(ctx, "gemini") {
		aiProviders++
	}
	hasMultipleAI := aiProviders >= 2

	switch {
	case isReadmeGenerator || (strings.Contains(name, "doc") && hasMultipleAI):
		return fmt.Sprintf(`
PROJECT PURPOSE: %s is an AI-powered README/documentation generator.

It analyzes repositories, detects the tech stack, and uses AI backends
to generate professional, customized README files.

Key functionality:
- Analyzes repository structure and dependencies
- Detects tech stack automatically
- Generates README sections using AI
- Supports multiple AI providers with fallback
- Caches results for performance

USE THIS DESCRIPTION - don't say "AI-powered tool" generically.
`, projectName)

	case isDocTool:
		return fmt.Sprintf(`
PROJECT PURPOSE: %s is an AI-powered documentation tool.

It uses AI to help create and manage documentation with markdown preview.
`, projectName)

	case hasMultipleAI:
		return fmt.Sprintf(`
PROJECT PURPOSE: %s is an AI-powered tool using multiple AI providers.

Analyze the API routes to determine exactly what it generates/creates.
`, projectName)

	default:
		return fmt.Sprintf(`
PROJECT PURPOSE: Analyze the actual API routes and components to determine what %s does.
Look at the routes and main components to understand the core functionality.
`, projectName)
	}
}
