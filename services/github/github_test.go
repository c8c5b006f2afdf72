// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	owner, repo, err := ParseRepoURL("https://github.com/acme/shop")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "shop", repo)

	owner, repo, err = ParseRepoURL("git@github.com/acme/shop.git")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "shop", repo)

	_, _, err = ParseRepoURL("https://gitlab.com/acme/shop")
	assert.ErrorIs(t, err, ErrInvalidRepoURL)
}

func newTestClient(ts *httptest.Server) *Client {
	return &Client{
		httpClient: ts.Client(),
		baseURL:    ts.URL,
	}
}

func TestFetchRepoFiles(t *testing.T) {
	var mux http.ServeMux
	ts := httptest.NewServer(&mux)
	defer ts.Close()

	mux.HandleFunc("/repos/acme/shop/contents", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		fmt.Fprintf(w, `[
			{"name": "package.json", "type": "file", "download_url": %q},
			{"name": "Dockerfile", "type": "file", "download_url": %q},
			{"name": "src", "type": "dir", "download_url": ""},
			{"name": "README.md", "type": "file", "download_url": %q}
		]`, ts.URL+"/raw/package.json", ts.URL+"/raw/Dockerfile", ts.URL+"/raw/README.md")
	})
	mux.HandleFunc("/raw/package.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "shop", "dependencies": {"next": "14.0.0"}}`)
	})
	mux.HandleFunc("/raw/Dockerfile", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "FROM node:20")
	})

	files, err := newTestClient(ts).FetchRepoFiles(context.Background(), "https://github.com/acme/shop")
	require.NoError(t, err)

	byName := make(map[string]string, len(files))
	for _, f := range files {
		byName[f.Name] = f.Content
	}

	// Manifests come with content.
	assert.Contains(t, byName["package.json"], `"next"`)
	assert.Equal(t, "FROM node:20", byName["Dockerfile"])

	// Everything else is name-only for structure detection; README
	// content was never downloaded.
	content, ok := byName["README.md"]
	require.True(t, ok)
	assert.Empty(t, content)
	_, ok = byName["src"]
	assert.True(t, ok)
}

func TestFetchRepoFiles_SendsToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[]`)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	c.token = "secret"
	_, err := c.FetchRepoFiles(context.Background(), "https://github.com/acme/shop")
	require.NoError(t, err)
}

func TestFetchRepoFiles_InvalidURL(t *testing.T) {
	_, err := NewClient().FetchRepoFiles(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrInvalidRepoURL)
}

func TestFetchRepoFiles_APIFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := newTestClient(ts).FetchRepoFiles(context.Background(), "https://github.com/acme/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestFetchRepoFiles_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(ts).FetchRepoFiles(ctx, "https://github.com/acme/shop")
	assert.Error(t, err)
}
