// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// chatgate is a hardened RAG chat gateway. It fronts a hosted assistant
// engine with rate limiting, input sanitization, prompt-injection screening,
// grounded prompt assembly, and response guarding.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/dataclinic/chatgate/services/assistant"
	"github.com/dataclinic/chatgate/services/gateway/handlers"
	"github.com/dataclinic/chatgate/services/gateway/observability"
	"github.com/dataclinic/chatgate/services/gateway/routes"
	gatewayservices "github.com/dataclinic/chatgate/services/gateway/services"
	"github.com/dataclinic/chatgate/services/retrieval"
	"github.com/dataclinic/chatgate/services/security"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("chatgate")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// envString reads an env var, trimming quotes and whitespace that container
// runtimes sometimes pass literally.
func envString(key, fallback string) string {
	value := strings.Trim(os.Getenv(key), "\"' ")
	if value == "" {
		return fallback
	}
	return value
}

// envInt reads an integer env var; invalid values log a warning and fall
// back to the default.
func envInt(key string, fallback int) int {
	raw := strings.Trim(os.Getenv(key), "\"' ")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer env var, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return value
}

// buildRetriever selects the retrieval backend from RETRIEVAL_BACKEND.
// Any construction failure degrades to the noop retriever so the gateway
// still answers, just ungrounded.
func buildRetriever(apiKey string) (retrieval.Retriever, bool) {
	backend := envString("RETRIEVAL_BACKEND", "")
	if backend == "" || backend == "none" {
		slog.Info("No retrieval backend configured, answers will be ungrounded")
		return retrieval.NoopRetriever{}, false
	}

	embedder, err := retrieval.NewOpenAIEmbedder(apiKey, envString("OPENAI_EMBEDDING_MODEL", ""))
	if err != nil {
		slog.Warn("Retrieval disabled, embedder unavailable", "error", err)
		return retrieval.NoopRetriever{}, false
	}

	switch backend {
	case "qdrant":
		retriever, err := retrieval.NewQdrantRetriever(retrieval.QdrantConfig{
			URL:            envString("QDRANT_URL", ""),
			APIKey:         envString("QDRANT_API_KEY", ""),
			CollectionName: envString("QDRANT_COLLECTION_NAME", ""),
		}, embedder)
		if err != nil {
			slog.Warn("Retrieval disabled, qdrant unavailable", "error", err)
			return retrieval.NoopRetriever{}, false
		}
		return retriever, true
	case "weaviate":
		retriever, err := retrieval.NewWeaviateRetriever(
			envString("WEAVIATE_SERVICE_URL", ""),
			envString("WEAVIATE_CLASS_NAME", "Document"),
			embedder)
		if err != nil {
			slog.Warn("Retrieval disabled, weaviate unavailable", "error", err)
			return retrieval.NoopRetriever{}, false
		}
		return retriever, true
	default:
		slog.Warn("Unknown RETRIEVAL_BACKEND, retrieval disabled", "backend", backend)
		return retrieval.NoopRetriever{}, false
	}
}

func main() {
	port := envString("GATEWAY_PORT", "8000")

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	detector, err := security.NewRuleEngine()
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the security rule engine: %v", err)
	}
	sanitizer := security.NewSanitizer(envInt("MAX_INPUT_LENGTH", security.DefaultMaxInputLength))
	limiter := security.NewRateLimiter(
		envInt("RATE_LIMIT_PER_MINUTE", security.DefaultRequestsPerMinute),
		envInt("RATE_LIMIT_PER_HOUR", security.DefaultRequestsPerHour))
	recorder := security.NewEventRecorder(nil, 0)
	defer recorder.Close()
	guard := security.NewResponseGuard(detector, recorder)

	// The engine is optional at startup: without credentials the gateway
	// runs degraded and /health says so.
	apiKey := envString("OPENAI_API_KEY", "")
	assistantID := envString("ASSISTANT_ID", "")

	var engine assistant.Engine
	var pipeline *gatewayservices.ChatPipeline
	retrievalActive := false

	if apiKey != "" && assistantID != "" {
		openaiEngine, err := assistant.NewOpenAIEngine(apiKey, assistantID)
		if err != nil {
			log.Fatalf("Failed to initialize assistant engine: %v", err)
		}
		engine = openaiEngine

		orchestrator := assistant.NewOrchestrator(engine, assistant.OrchestratorConfig{
			PollInterval: time.Duration(envInt("RUN_POLL_INTERVAL_SECONDS", 1)) * time.Second,
			MaxAttempts:  envInt("RUN_MAX_ATTEMPTS", assistant.DefaultMaxAttempts),
		})

		var retriever retrieval.Retriever
		retriever, retrievalActive = buildRetriever(apiKey)

		pipeline, err = gatewayservices.NewChatPipeline(gatewayservices.PipelineConfig{
			Limiter:      limiter,
			Sanitizer:    sanitizer,
			Detector:     detector,
			Guard:        guard,
			Recorder:     recorder,
			Retriever:    retriever,
			Orchestrator: orchestrator,
			Metrics:      metrics,
		})
		if err != nil {
			log.Fatalf("Failed to initialize chat pipeline: %v", err)
		}
	} else {
		slog.Warn("OPENAI_API_KEY or ASSISTANT_ID not set. Running in degraded mode, /chat is unavailable.")
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("chatgate"))

	routes.SetupRoutes(router, engine, pipeline, metrics, handlers.HealthState{
		APIKeySet:       apiKey != "",
		AssistantIDSet:  assistantID != "",
		RetrievalActive: retrievalActive,
	})

	log.Println("Starting the gateway server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
