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
	"log"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devdocs-ai/devdocs/services/docserver"
)

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := cfg.newLogger()
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	svcCfg := cfg.docserverConfig()
	svcCfg.Logger = logger.Slog()
	slog.Info("starting devdocs service",
		"port", svcCfg.Port,
		"data_dir", svcCfg.DataDir,
		"otel_endpoint", svcCfg.OTelEndpoint,
	)

	svc, err := docserver.New(svcCfg)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Service exited with error: %v", err)
	}
}
