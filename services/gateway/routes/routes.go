// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dataclinic/chatgate/services/assistant"
	"github.com/dataclinic/chatgate/services/gateway/handlers"
	"github.com/dataclinic/chatgate/services/gateway/observability"
	"github.com/dataclinic/chatgate/services/gateway/services"
)

// SetupRoutes registers the gateway's HTTP surface on the router.
//
// engine and pipeline may be nil when upstream credentials are missing; the
// affected endpoints then answer 500 and /health reports degraded.
func SetupRoutes(router *gin.Engine, engine assistant.Engine, pipeline *services.ChatPipeline,
	metrics *observability.GatewayMetrics, health handlers.HealthState) {

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.HealthCheck(health))
	router.GET("/debug/env", handlers.DebugEnv)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/start", handlers.StartConversation(engine, metrics))
	router.POST("/chat", handlers.HandleChat(pipeline, metrics))
}
