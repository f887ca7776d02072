// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gin HTTP handlers for the gateway.
package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/dataclinic/chatgate/services/gateway/datatypes"
)

// HealthState is the configuration snapshot reported by HealthCheck.
type HealthState struct {
	APIKeySet       bool
	AssistantIDSet  bool
	RetrievalActive bool
}

// HealthCheck reports gateway liveness plus upstream configuration state.
// "healthy" means both credentials are configured; "degraded" means the
// gateway is running without them and /chat will fail. Degraded is still
// HTTP 200: the gateway itself is alive.
func HealthCheck(state HealthState) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		if !state.APIKeySet || !state.AssistantIDSet {
			status = "degraded"
		}
		c.JSON(http.StatusOK, datatypes.HealthResponse{
			Status:          status,
			APIKeySet:       state.APIKeySet,
			AssistantIDSet:  state.AssistantIDSet,
			RetrievalActive: state.RetrievalActive,
		})
	}
}

// Root is a minimal service banner for humans hitting the base URL.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "chatgate",
		"message": "RAG chat gateway is running",
	})
}

// debugEnvKeys is the set of configuration variables reported by DebugEnv.
var debugEnvKeys = []string{
	"GATEWAY_PORT",
	"OPENAI_API_KEY",
	"ASSISTANT_ID",
	"OPENAI_EMBEDDING_MODEL",
	"RETRIEVAL_BACKEND",
	"QDRANT_URL",
	"QDRANT_API_KEY",
	"QDRANT_COLLECTION_NAME",
	"WEAVIATE_SERVICE_URL",
	"RATE_LIMIT_PER_MINUTE",
	"RATE_LIMIT_PER_HOUR",
	"MAX_INPUT_LENGTH",
	"RUN_POLL_INTERVAL_SECONDS",
	"RUN_MAX_ATTEMPTS",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

// DebugEnv reports which configuration variables are set. Values are never
// returned, only presence, so secrets cannot leak through this endpoint.
func DebugEnv(c *gin.Context) {
	present := make(map[string]bool, len(debugEnvKeys))
	for _, key := range debugEnvKeys {
		present[key] = os.Getenv(key) != ""
	}
	c.JSON(http.StatusOK, gin.H{"configured": present})
}
