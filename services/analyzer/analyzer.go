// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyzer classifies a repository's technology stack from a
// flat list of file names and contents.
//
// Classification is heuristic and entirely local: manifests are parsed
// where cheap (package.json), substring-matched where that is what the
// ecosystem supports (requirements.txt, go.mod, Cargo.toml). Ecosystem
// detectors run in a fixed order (JavaScript, Python, Go, Rust) and the
// first ecosystem whose manifest is present claims the primary stack;
// later matches are recorded as secondary. Malformed manifests degrade
// to weaker answers, never to errors.
//
// The analyzer does no I/O and holds no state between calls, so a
// single Analyzer value is safe for concurrent use.
package analyzer

import (
	"encoding/json"
	"strings"
)

// StackType identifies a primary technology stack.
type StackType string

const (
	StackNextJS  StackType = "nextjs"
	StackReact   StackType = "react"
	StackVue     StackType = "vue"
	StackAngular StackType = "angular"
	StackExpress StackType = "express"
	StackNestJS  StackType = "nestjs"
	StackDjango  StackType = "django"
	StackFlask   StackType = "flask"
	StackFastAPI StackType = "fastapi"
	StackGo      StackType = "go"
	StackRust    StackType = "rust"
	StackUnknown StackType = "unknown"
)

// FileInput is one repository file presented to the analyzer.
// Content may be empty for files where only the name matters
// (lockfiles, Dockerfile, CI configs).
type FileInput struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// DetectedStack is the analyzer's classification of a repository.
type DetectedStack struct {
	// Primary is the main detected stack, or StackUnknown.
	Primary StackType `json:"primary"`

	// Secondary lists languages of ecosystems whose manifests were
	// present but did not claim Primary.
	Secondary []string `json:"secondary"`

	// Language is the primary implementation language
	// ("TypeScript", "JavaScript", "Python", "Go", "Rust", "unknown").
	Language string `json:"language"`

	// PackageManager is the inferred package manager
	// (npm, yarn, pnpm, pip, poetry, go, cargo).
	PackageManager string `json:"packageManager"`

	HasDocker  bool `json:"hasDocker"`
	HasCI      bool `json:"hasCI"`
	HasTesting bool `json:"hasTesting"`
	HasEnvFile bool `json:"hasEnvFile"`

	// Frameworks lists detected frameworks and notable tooling,
	// in detection order.
	Frameworks []string `json:"frameworks"`

	// Dependencies holds the merged dependencies and devDependencies
	// from package.json (name -> version), when one was parseable.
	Dependencies map[string]string `json:"dependencies"`

	// DomainHints are guesses at the application's domain, derived
	// from file names and dependency usage. Deduplicated.
	DomainHints []string `json:"domainHints"`
}

// Analyzer performs stack classification. The zero value is ready
// to use.
type Analyzer struct{}

// New returns a ready Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze classifies the given files.
//
// Description:
//
//	Runs the ecosystem detectors in fixed priority order (JavaScript,
//	Python, Go, Rust). The first ecosystem with a manifest present
//	claims Primary, Language, and PackageManager; later ecosystems
//	contribute frameworks, testing flags, and a Secondary entry.
//	Boolean project flags (Docker, CI, env template) come from file
//	presence alone.
//
// Inputs:
//
//	files - Repository files. An empty or nil slice is valid.
//
// Outputs:
//
//	DetectedStack - Never nil fields for slices/maps that matched;
//	Primary is StackUnknown and all flags false for empty input.
//
// Thread Safety: Safe for concurrent use.
func (a *Analyzer) Analyze(files []FileInput) DetectedStack {
	fs := newFileSet(files)

	stack := DetectedStack{
		Primary:        StackUnknown,
		Secondary:      []string{},
		Language:       "unknown",
		PackageManager: "npm",
		HasDocker:      fs.has("Dockerfile") || fs.has("docker-compose.yml"),
		HasCI:          fs.has(".github/workflows") || fs.has(".gitlab-ci.yml"),
		HasEnvFile:     fs.has(".env.example") || fs.has(".env.sample"),
		Frameworks:     []string{},
		Dependencies:   map[string]string{},
		DomainHints:    extractDomainHints(fs),
	}

	if content, ok := fs.find("package.json"); ok {
		analyzeJavaScript(content, fs, &stack)
	}
	if _, ok := fs.find("requirements.txt"); ok {
		analyzePython(fs, &stack)
	} else if fs.has("pyproject.toml") {
		analyzePython(fs, &stack)
	}
	if content, ok := fs.find("go.mod"); ok {
		analyzeGo(content, &stack)
	}
	if content, ok := fs.find("Cargo.toml"); ok {
		analyzeRust(content, &stack)
	}

	return stack
}

// claim records ecosystem-level facts if no earlier ecosystem has
// claimed the repository, and returns whether this one now owns it.
func claim(stack *DetectedStack, language, packageManager string) bool {
	if stack.Language != "unknown" {
		stack.Secondary = append(stack.Secondary, language)
		return false
	}
	stack.Language = language
	stack.PackageManager = packageManager
	return true
}

// =============================================================================
// Ecosystem Detectors
// =============================================================================

func analyzeJavaScript(packageJSON string, fs fileSet, stack *DetectedStack) {
	deps := parsePackageJSON(packageJSON)

	language := "JavaScript"
	if _, ok := deps["typescript"]; ok {
		language = "TypeScript"
	}

	packageManager := "npm"
	if fs.has("pnpm-lock.yaml") {
		packageManager = "pnpm"
	} else if fs.has("yarn.lock") {
		packageManager = "yarn"
	}

	owner := claim(stack, language, packageManager)
	if len(deps) > 0 {
		stack.Dependencies = deps
	}

	// Framework precedence within the JS ecosystem: meta-frameworks
	// before view libraries before server frameworks.
	type fw struct {
		dep     string
		primary StackType
		name    string
	}
	for _, f := range []fw{
		{"next", StackNextJS, "Next.js"},
		{"react", StackReact, "React"},
		{"vue", StackVue, "Vue.js"},
		{"@angular/core", StackAngular, "Angular"},
		{"express", StackExpress, "Express.js"},
		{"@nestjs/core", StackNestJS, "NestJS"},
	} {
		if _, ok := deps[f.dep]; ok {
			if owner {
				stack.Primary = f.primary
			}
			stack.Frameworks = append(stack.Frameworks, f.name)
			break
		}
	}

	if _, ok := deps["tailwindcss"]; ok {
		stack.Frameworks = append(stack.Frameworks, "Tailwind CSS")
	}
	if _, ok := deps["prisma"]; ok {
		stack.Frameworks = append(stack.Frameworks, "Prisma")
	}
	if _, ok := deps["mongoose"]; ok {
		stack.Frameworks = append(stack.Frameworks, "MongoDB/Mongoose")
	}
	if hasAny(deps, "jest", "vitest") {
		stack.HasTesting = true
	}
}

func analyzePython(fs fileSet, stack *DetectedStack) {
	packageManager := "pip"
	if fs.has("poetry.lock") {
		packageManager = "poetry"
	}
	owner := claim(stack, "Python", packageManager)

	requirements, _ := fs.find("requirements.txt")

	switch {
	case strings.Contains(requirements, "django") || fs.has("manage.py"):
		if owner {
			stack.Primary = StackDjango
		}
		stack.Frameworks = append(stack.Frameworks, "Django")
	case strings.Contains(requirements, "flask"):
		if owner {
			stack.Primary = StackFlask
		}
		stack.Frameworks = append(stack.Frameworks, "Flask")
	case strings.Contains(requirements, "fastapi"):
		if owner {
			stack.Primary = StackFastAPI
		}
		stack.Frameworks = append(stack.Frameworks, "FastAPI")
	}

	if strings.Contains(requirements, "pytest") {
		stack.HasTesting = true
	}
}

func analyzeGo(goMod string, stack *DetectedStack) {
	if claim(stack, "Go", "go") {
		stack.Primary = StackGo
	}

	if strings.Contains(goMod, "gin-gonic") {
		stack.Frameworks = append(stack.Frameworks, "Gin")
	}
	if strings.Contains(goMod, "echo") {
		stack.Frameworks = append(stack.Frameworks, "Echo")
	}
	if strings.Contains(goMod, "fiber") {
		stack.Frameworks = append(stack.Frameworks, "Fiber")
	}
}

func analyzeRust(cargoToml string, stack *DetectedStack) {
	if claim(stack, "Rust", "cargo") {
		stack.Primary = StackRust
	}

	if strings.Contains(cargoToml, "actix-web") {
		stack.Frameworks = append(stack.Frameworks, "Actix Web")
	}
	if strings.Contains(cargoToml, "axum") {
		stack.Frameworks = append(stack.Frameworks, "Axum")
	}
}

// =============================================================================
// Manifest Parsing
// =============================================================================

// parsePackageJSON merges dependencies and devDependencies.
// Malformed JSON yields an empty map; analysis continues without
// dependency information.
func parsePackageJSON(content string) map[string]string {
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return map[string]string{}
	}

	deps := make(map[string]string, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name, version := range pkg.Dependencies {
		deps[name] = version
	}
	for name, version := range pkg.DevDependencies {
		deps[name] = version
	}
	return deps
}

func hasAny(deps map[string]string, names ...string) bool {
	for _, name := range names {
		if _, ok := deps[name]; ok {
			return true
		}
	}
	return false
}

// =============================================================================
// File Lookup
// =============================================================================

// fileSet wraps the input files with the lookup semantics detectors
// need: exact name, path suffix, or substring match.
type fileSet struct {
	files []FileInput
}

func newFileSet(files []FileInput) fileSet {
	return fileSet{files: files}
}

// find returns the content of the first file matching name exactly or
// by path suffix.
func (fs fileSet) find(name string) (string, bool) {
	for _, f := range fs.files {
		if f.Name == name || strings.HasSuffix(f.Name, "/"+name) {
			return f.Content, true
		}
	}
	return "", false
}

// has reports whether any file name contains the given name. The
// loose substring match is intentional: it catches directory markers
// like ".github/workflows" appearing anywhere in a path.
func (fs fileSet) has(name string) bool {
	for _, f := range fs.files {
		if f.Name == name || strings.Contains(f.Name, name) || strings.HasSuffix(f.Name, "/"+name) {
			return true
		}
	}
	return false
}

// lowerNames returns all file names lowercased, for hint matching.
func (fs fileSet) lowerNames() []string {
	names := make([]string, len(fs.files))
	for i, f := range fs.files {
		names[i] = strings.ToLower(f.Name)
	}
	return names
}
