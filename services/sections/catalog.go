// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sections defines the README section catalog and builds the
// generation prompts for each section.
package sections

import (
	"sort"

	"github.com/devdocs-ai/devdocs/services/analyzer"
)

// Section describes one README building block.
type Section struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// WhyImportant is shown to users as the educational explanation
	// for the section and is returned alongside generated content.
	WhyImportant string `json:"whyImportant"`

	// HowToWrite is the fallback generation guidance when a section
	// has no dedicated prompt template.
	HowToWrite string `json:"howToWrite"`

	DocsURL     string `json:"docsUrl,omitempty"`
	Recommended bool   `json:"isRecommended"`
	Required    bool   `json:"isRequired"`

	// StackSpecific limits the section to certain primary stacks.
	// Empty means the section applies to every project.
	StackSpecific []analyzer.StackType `json:"stackSpecific"`

	Order int `json:"order"`
}

var catalog = []Section{
	{
		ID:          "header",
		Name:        "Project Header",
		Description: "Title, badges, and short description",
		WhyImportant: "The header is the first thing people see. It tells them instantly what your project does " +
			"and shows professionalism through badges (build status, version, license). Recruiters often spend " +
			"less than 30 seconds on a README - make those seconds count!",
		HowToWrite: "1. Start with your project name as an H1\n" +
			"2. Add a one-line description that answers \"What does this do?\"\n" +
			"3. Include relevant badges (we'll generate these for you)\n" +
			"4. Optionally add a screenshot or demo GIF",
		DocsURL:     "https://shields.io",
		Recommended: true,
		Required:    true,
		Order:       1,
	},
	{
		ID:          "features",
		Name:        "Features",
		Description: "Key features and capabilities",
		WhyImportant: "Features help users quickly understand if your project solves their problem. " +
			"It's also a great way to showcase your technical skills to potential employers!",
		HowToWrite: "List 4-6 main features using bullet points. Each feature should:\n" +
			"- Start with an emoji for visual appeal\n" +
			"- Be concise (one line)\n" +
			"- Focus on benefits, not just functionality",
		Recommended: true,
		Order:       2,
	},
	{
		ID:          "tech-stack",
		Name:        "Tech Stack",
		Description: "Technologies and tools used",
		WhyImportant: "Showing your tech stack helps developers quickly assess if they can contribute. " +
			"For job seekers, it's a way to demonstrate your knowledge of industry tools.",
		HowToWrite: "Group technologies by category:\n" +
			"- Frontend: React, TypeScript, Tailwind\n" +
			"- Backend: Node.js, Express, PostgreSQL\n" +
			"- DevOps: Docker, GitHub Actions",
		Recommended: true,
		Order:       3,
	},
	{
		ID:          "installation",
		Name:        "Installation",
		Description: "How to install and set up locally",
		WhyImportant: "Clear installation instructions lower the barrier to contribution. " +
			"Nothing frustrates developers more than spending hours trying to run a project locally!",
		HowToWrite: "Use numbered steps with exact commands:\n" +
			"1. Clone the repo\n" +
			"2. Install dependencies\n" +
			"3. Set up environment variables\n" +
			"4. Run the project",
		Recommended: true,
		Required:    true,
		Order:       4,
	},
	{
		ID:          "environment",
		Name:        "Environment Variables",
		Description: "Required environment configuration",
		WhyImportant: "Environment variables keep sensitive data (API keys, database URLs) secure. " +
			"Documenting them prevents the #1 setup issue: \"It works on my machine!\"",
		HowToWrite: "Create a table with:\n" +
			"- Variable name\n" +
			"- Description\n" +
			"- Example value (never real secrets!)\n" +
			"- Whether it's required",
		Recommended: true,
		Order:       5,
	},
	{
		ID:          "scripts",
		Name:        "Available Scripts",
		Description: "npm/yarn/pnpm scripts explained",
		WhyImportant: "Documenting scripts saves time for contributors. They won't need to " +
			"dig through package.json to figure out how to run tests or build the project.",
		HowToWrite: "List each script with:\n" +
			"- The command to run it\n" +
			"- What it does\n" +
			"- When to use it",
		Recommended: true,
		StackSpecific: []analyzer.StackType{
			analyzer.StackNextJS, analyzer.StackReact, analyzer.StackVue,
			analyzer.StackAngular, analyzer.StackExpress, analyzer.StackNestJS,
		},
		Order: 6,
	},
	{
		ID:          "api-docs",
		Name:        "API Documentation",
		Description: "API endpoints and usage",
		WhyImportant: "If your project has an API, documenting it is crucial. " +
			"Good API docs can make or break developer adoption of your project.",
		HowToWrite: "For each endpoint, document:\n" +
			"- HTTP method and path\n" +
			"- Request parameters/body\n" +
			"- Response format\n" +
			"- Example request/response",
		Recommended: true,
		StackSpecific: []analyzer.StackType{
			analyzer.StackExpress, analyzer.StackNestJS, analyzer.StackFastAPI,
			analyzer.StackDjango, analyzer.StackFlask, analyzer.StackGo,
		},
		Order: 7,
	},
	{
		ID:          "deployment",
		Name:        "Deployment",
		Description: "How to deploy to production",
		WhyImportant: "Deployment instructions show you understand the full development lifecycle. " +
			"It helps users actually USE your project, not just look at the code.",
		HowToWrite: "Include:\n" +
			"- Recommended hosting platform\n" +
			"- Step-by-step deployment instructions\n" +
			"- Any special configuration needed",
		Recommended: true,
		Order:       8,
	},
	{
		ID:          "docker",
		Name:        "Docker Setup",
		Description: "Container configuration",
		WhyImportant: "Docker ensures consistent environments across all machines. " +
			"Including Docker setup shows you understand modern DevOps practices.",
		HowToWrite: "Document:\n" +
			"- How to build the image\n" +
			"- How to run the container\n" +
			"- Docker Compose commands if applicable\n" +
			"- Volume mappings and ports",
		Order: 9,
	},
	{
		ID:          "testing",
		Name:        "Testing",
		Description: "How to run tests",
		WhyImportant: "Tests prove your code works and show you care about quality. " +
			"Recruiters love seeing testing in personal projects - it shows maturity!",
		HowToWrite: "Include:\n" +
			"- How to run all tests\n" +
			"- How to run specific test suites\n" +
			"- How to check coverage\n" +
			"- Testing conventions used",
		Recommended: true,
		Order:       10,
	},
	{
		ID:          "contributing",
		Name:        "Contributing",
		Description: "Guidelines for contributors",
		WhyImportant: "Contributing guidelines make your project welcoming to new contributors. " +
			"Open source contributions look GREAT on a resume!",
		HowToWrite: "Cover:\n" +
			"- How to report bugs\n" +
			"- How to suggest features\n" +
			"- Pull request process\n" +
			"- Code style guidelines",
		DocsURL:     "https://docs.github.com/en/communities/setting-up-your-project-for-healthy-contributions",
		Recommended: true,
		Order:       11,
	},
	{
		ID:          "license",
		Name:        "License",
		Description: "Project license information",
		WhyImportant: "A license tells others how they can use your code. Without one, " +
			"your project is technically \"all rights reserved\" - not truly open source!",
		HowToWrite: "Simply state the license type and link to the full text.\n" +
			"Common choices:\n" +
			"- MIT: Very permissive, good for portfolios\n" +
			"- Apache 2.0: Like MIT but with patent protection\n" +
			"- GPL: Requires derivative works to also be open source",
		DocsURL:     "https://choosealicense.com",
		Recommended: true,
		Required:    true,
		Order:       12,
	},
}

// All returns every section in catalog order.
func All() []Section {
	out := make([]Section, len(catalog))
	copy(out, catalog)
	return out
}

// Find returns the section with the given id.
func Find(id string) (Section, bool) {
	for _, s := range catalog {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// ForStack returns the sections that apply to a detected stack, in
// catalog order. Stack-specific sections are dropped when the primary
// stack does not match, and the docker and testing recommendations
// follow what the analysis actually found.
func ForStack(stack analyzer.DetectedStack) []Section {
	out := make([]Section, 0, len(catalog))
	for _, s := range catalog {
		if !appliesTo(s, stack.Primary) {
			continue
		}
		switch s.ID {
		case "docker":
			s.Recommended = stack.HasDocker
		case "testing":
			s.Recommended = stack.HasTesting
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func appliesTo(s Section, primary analyzer.StackType) bool {
	if len(s.StackSpecific) == 0 {
		return true
	}
	for _, st := range s.StackSpecific {
		if st == primary {
			return true
		}
	}
	return false
}
