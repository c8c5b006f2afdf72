// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command devdocs runs the documentation generation service.
//
// Configuration is read from an optional YAML file (--config), with
// environment variables taking precedence. A .env file in the working
// directory is loaded first for local development. Recognized variables:
//
//	DEVDOCS_PORT                 HTTP listen port (default 12300)
//	DEVDOCS_DATA_DIR             Badger storage directory (default ./data)
//	DEVDOCS_LOG_DIR              write a JSON log file here as well as stderr
//	OTEL_EXPORTER_OTLP_ENDPOINT  OTLP gRPC endpoint; tracing disabled if unset
//	GIN_MODE                     gin mode (debug/release/test)
//	GROQ_API_KEY                 enables the Groq backend
//	GOOGLE_AI_API_KEY            enables the Gemini backend
//	ANTHROPIC_API_KEY            enables the Anthropic backend
//	OPENAI_API_KEY               enables the OpenAI backend
//	OLLAMA_BASE_URL              Ollama base URL (default http://localhost:11434)
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "devdocs",
	Short: "AI-assisted README and documentation generation service",
	Long: `devdocs analyzes repository contents, detects the technology stack,
and generates README sections through a prioritized set of LLM backends
with caching and per-tier usage quotas.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP generation service",
	Run:   runServe,
}

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "List the README sections the service can generate",
	Run:   runSections,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sectionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
