// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devdocs-ai/devdocs/services/docserver/handlers"
	"github.com/devdocs-ai/devdocs/services/docserver/middleware"
	"github.com/devdocs-ai/devdocs/services/docserver/observability"
	"github.com/devdocs-ai/devdocs/services/docserver/pipeline"
)

// SetupRoutes registers every docserver route on the router.
func SetupRoutes(router *gin.Engine, p *pipeline.Pipeline, metrics *observability.GenerationMetrics) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.IdentityMiddleware())
	{
		v1.POST("/analyze", handlers.Analyze(p, metrics))
		v1.POST("/generate", handlers.Generate(p, metrics))
		v1.GET("/usage", handlers.Usage(p, metrics))
		v1.GET("/providers", handlers.Providers(p))
	}
}
