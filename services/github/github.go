// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package github fetches the repository material the analyzer needs
// from the GitHub contents API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/devdocs-ai/devdocs/services/analyzer"
)

const (
	apiBaseURL     = "https://api.github.com"
	defaultTimeout = 15 * time.Second

	// maxFileBytes bounds how much of any one file is read. Manifests
	// are small; anything bigger is not worth shipping to a model.
	maxFileBytes = 256 * 1024
)

// ErrInvalidRepoURL marks URLs that are not GitHub repository URLs.
// Callers map it to a client error.
var ErrInvalidRepoURL = errors.New("invalid github repository url")

// importantFiles are fetched with content; everything else in the
// listing is recorded by name only, which is all structure detection
// needs.
var importantFiles = map[string]bool{
	"package.json":       true,
	"requirements.txt":   true,
	"pyproject.toml":     true,
	"go.mod":             true,
	"Cargo.toml":         true,
	".env.example":       true,
	"Dockerfile":         true,
	"docker-compose.yml": true,
}

var repoURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)

// ParseRepoURL extracts the owner and repository name from a GitHub
// URL.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	m := repoURLPattern.FindStringSubmatch(repoURL)
	if m == nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidRepoURL, repoURL)
	}
	return m[1], strings.TrimSuffix(m[2], ".git"), nil
}

// Client talks to the GitHub contents API. A token raises the API
// rate limit but is not required for public repositories.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient builds a client, reading GITHUB_TOKEN from the
// environment when set.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    apiBaseURL,
		token:      os.Getenv("GITHUB_TOKEN"),
	}
}

type contentItem struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

// FetchRepoFiles lists the repository root and returns the analyzer's
// input set: manifests and infra files with content, everything else
// by name.
//
// Inputs:
//
//	ctx - Request context; bounds the whole fetch.
//	repoURL - A github.com repository URL.
//
// Outputs:
//
//	[]analyzer.FileInput - Root files; content only for manifests.
//	error - ErrInvalidRepoURL for bad URLs, otherwise transport or
//	    API failures.
func (c *Client) FetchRepoFiles(ctx context.Context, repoURL string) ([]analyzer.FileInput, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	listing, err := c.listContents(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	var files []analyzer.FileInput
	for _, item := range listing {
		if item.Type != "file" || !importantFiles[item.Name] || item.DownloadURL == "" {
			continue
		}
		content, err := c.download(ctx, item.DownloadURL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", item.Name, err)
		}
		files = append(files, analyzer.FileInput{Name: item.Name, Content: content})
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.Name] = true
	}
	for _, item := range listing {
		if !seen[item.Name] {
			files = append(files, analyzer.FileInput{Name: item.Name})
		}
	}

	return files, nil
}

func (c *Client) listContents(ctx context.Context, owner, repo string) ([]contentItem, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents", c.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list repository contents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api returned status %d for %s/%s", resp.StatusCode, owner, repo)
	}

	var listing []contentItem
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode repository listing: %w", err)
	}
	return listing, nil
}

func (c *Client) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
