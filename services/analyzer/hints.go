// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyzer

import "strings"

// Domain hint tables. One hint per table at most; ordering of the
// tables fixes the ordering of the output.

// nameHints maps hint labels to file-name keywords that suggest them.
var nameHints = []struct {
	hint     string
	keywords []string
}{
	{"e-commerce", []string{"cart", "product", "order", "payment", "checkout"}},
	{"food-restaurant", []string{"menu", "recipe", "order", "delivery", "food"}},
	{"social-media", []string{"post", "comment", "like", "follow", "profile"}},
	{"task-management", []string{"task", "todo", "project", "deadline"}},
	{"blog-cms", []string{"blog", "post", "article", "content"}},
	{"analytics-dashboard", []string{"dashboard", "analytics", "chart", "report"}},
	{"education", []string{"course", "lesson", "quiz", "student"}},
	{"health-fitness", []string{"workout", "exercise", "health", "fitness"}},
}

// depHints maps hint labels to package.json dependencies that imply them.
var depHints = []struct {
	hint string
	deps []string
}{
	{"payment-processing", []string{"stripe", "paypal-rest-sdk", "square"}},
	{"location-services", []string{"google-maps", "mapbox", "leaflet"}},
	{"image-processing", []string{"sharp", "jimp", "canvas"}},
	{"email-services", []string{"nodemailer", "sendgrid", "aws-ses"}},
	{"authentication", []string{"auth0", "firebase-auth", "next-auth"}},
	{"mongodb-database", []string{"mongoose", "mongodb"}},
	{"orm-database", []string{"prisma", "sequelize", "typeorm"}},
}

// extractDomainHints guesses the application domain from file names
// and package.json dependencies. Hints are deduplicated; parse
// failures contribute nothing.
func extractDomainHints(fs fileSet) []string {
	seen := map[string]bool{}
	hints := []string{}
	add := func(hint string) {
		if !seen[hint] {
			seen[hint] = true
			hints = append(hints, hint)
		}
	}

	names := fs.lowerNames()
	containsKeyword := func(keyword string) bool {
		for _, name := range names {
			if strings.Contains(name, keyword) {
				return true
			}
		}
		return false
	}

	for _, table := range nameHints {
		for _, keyword := range table.keywords {
			if containsKeyword(keyword) {
				add(table.hint)
				break
			}
		}
	}

	if content, ok := fs.find("package.json"); ok {
		deps := parsePackageJSON(content)
		for _, table := range depHints {
			if hasAny(deps, table.deps...) {
				add(table.hint)
			}
		}
	}

	return hints
}
