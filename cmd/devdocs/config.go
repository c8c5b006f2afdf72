// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/devdocs-ai/devdocs/pkg/logging"
	"github.com/devdocs-ai/devdocs/services/docserver"
)

// Config is the YAML file layout for the devdocs service. Every field has
// a working default so an empty (or absent) file is a valid configuration.
type Config struct {
	Server struct {
		Port    int    `yaml:"port"`
		GinMode string `yaml:"gin_mode"`
	} `yaml:"server"`

	Storage struct {
		DataDir  string `yaml:"data_dir"`
		InMemory bool   `yaml:"in_memory"`
	} `yaml:"storage"`

	RateLimit struct {
		Limit         int   `yaml:"limit"`
		WindowMinutes int   `yaml:"window_minutes"`
		FailOpen      *bool `yaml:"fail_open"`
	} `yaml:"rate_limit"`

	Cache struct {
		TTLHours int `yaml:"ttl_hours"`
	} `yaml:"cache"`

	Observability struct {
		OTelEndpoint   string `yaml:"otel_endpoint"`
		DisableMetrics bool   `yaml:"disable_metrics"`
	} `yaml:"observability"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`
}

// loadConfig reads the optional .env file, the optional YAML file at path,
// then applies environment variable overrides. Environment always wins.
func loadConfig(path string) (Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.Server.Port = getEnvInt("DEVDOCS_PORT", cfg.Server.Port)
	cfg.Server.GinMode = getEnvString("GIN_MODE", cfg.Server.GinMode)
	cfg.Storage.DataDir = getEnvString("DEVDOCS_DATA_DIR", cfg.Storage.DataDir)
	cfg.Observability.OTelEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Logging.Dir = getEnvString("DEVDOCS_LOG_DIR", cfg.Logging.Dir)

	return cfg, nil
}

// newLogger builds the process logger from the logging section.
func (c Config) newLogger() *logging.Logger {
	level := logging.LevelInfo
	if c.Logging.Level == "debug" {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: "docserver",
		JSON:    c.Logging.JSON,
	})
}

// docserverConfig converts the file layout into the service configuration,
// leaving zero values for docserver.New to fill with its own defaults.
func (c Config) docserverConfig() docserver.Config {
	return docserver.Config{
		Port:            c.Server.Port,
		GinMode:         c.Server.GinMode,
		DataDir:         c.Storage.DataDir,
		InMemoryStorage: c.Storage.InMemory,
		RateLimit:       int64(c.RateLimit.Limit),
		RateLimitWindow: time.Duration(c.RateLimit.WindowMinutes) * time.Minute,
		FailOpen:        c.RateLimit.FailOpen,
		CacheTTL:        time.Duration(c.Cache.TTLHours) * time.Hour,
		OTelEndpoint:    c.Observability.OTelEndpoint,
		DisableMetrics:  c.Observability.DisableMetrics,
	}
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
