// Copyright (C) 2025 DataClinic
// Tests for route registration

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/dataclinic/chatgate/services/gateway/handlers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSetupRoutes_RegistersSurface(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, nil, nil, nil, handlers.HealthState{})

	expected := map[string]string{
		"GET /":          "GET",
		"GET /health":    "GET",
		"GET /debug/env": "GET",
		"GET /metrics":   "GET",
		"GET /start":     "GET",
		"POST /chat":     "POST",
	}

	registered := make(map[string]bool)
	for _, route := range router.Routes() {
		registered[route.Method+" "+route.Path] = true
	}
	for key := range expected {
		assert.True(t, registered[key], "route %s must be registered", key)
	}
}

func TestSetupRoutes_NilEngineDegradesGracefully(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, nil, nil, nil, handlers.HealthState{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/start", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSetupRoutes_MetricsEndpointResponds(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, nil, nil, nil, handlers.HealthState{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
