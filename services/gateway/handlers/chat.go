// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/dataclinic/chatgate/services/assistant"
	"github.com/dataclinic/chatgate/services/gateway/datatypes"
	"github.com/dataclinic/chatgate/services/gateway/observability"
	"github.com/dataclinic/chatgate/services/gateway/services"
)

var chatTracer = otel.Tracer("chatgate.gateway.handlers")

// Generic client-facing error strings. Internal detail stays in the logs;
// security rejections deliberately do not say which rule fired.
const (
	msgInvalidBody     = "invalid request body"
	msgInvalidInput    = "Invalid input. Please rephrase your question."
	msgRateLimited     = "Too many requests. Please try again later."
	msgUpstreamTimeout = "The assistant took too long to respond. Please try again."
	msgInternal        = "An internal error occurred. Please try again later."
	msgEngineNotReady  = "The assistant engine is not configured."
)

// HandleChat processes one chat turn through the security pipeline.
//
// Error mapping:
//   - malformed body or failed validation: 400
//   - rate limited: 429
//   - security rejection: 400 with a generic message
//   - run polling ceiling reached: 504
//   - everything else (run failed, requires action, no messages): 500
func HandleChat(pipeline *services.ChatPipeline, metrics *observability.GatewayMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		if pipeline == nil {
			metrics.RecordRequest("chat", "error")
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: msgEngineNotReady})
			return
		}

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the chat request", "error", err)
			metrics.RecordRequest("chat", "error")
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: msgInvalidBody})
			return
		}
		if err := req.Validate(); err != nil {
			metrics.RecordRequest("chat", "error")
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: msgInvalidBody})
			return
		}

		// Caller identity for rate limiting. No auth layer, so the client
		// IP is the identity.
		callerID := "ip_" + c.ClientIP()

		answer, err := pipeline.Process(ctx, req.ThreadID, req.Message, callerID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordRequest("chat", "error")

			switch {
			case errors.Is(err, services.ErrRateLimited):
				c.JSON(http.StatusTooManyRequests, datatypes.ErrorResponse{Error: msgRateLimited})
			case errors.Is(err, services.ErrSecurityRejected):
				c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: msgInvalidInput})
			case errors.Is(err, assistant.ErrRunTimeout):
				slog.Error("Chat run timed out", "thread_id", req.ThreadID)
				c.JSON(http.StatusGatewayTimeout, datatypes.ErrorResponse{Error: msgUpstreamTimeout})
			default:
				slog.Error("Chat pipeline failed", "thread_id", req.ThreadID, "error", err)
				c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: msgInternal})
			}
			return
		}

		metrics.RecordRequest("chat", "success")
		c.JSON(http.StatusOK, datatypes.ChatResponse{
			Response: answer,
			ThreadID: req.ThreadID,
		})
	}
}
