// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/dataclinic/chatgate/services/assistant"
	"github.com/dataclinic/chatgate/services/gateway/datatypes"
	"github.com/dataclinic/chatgate/services/gateway/observability"
)

// StartConversation creates a new conversation thread and returns its id.
// Threads are only ever created here; /chat requires an existing thread.
func StartConversation(engine assistant.Engine, metrics *observability.GatewayMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "StartConversation")
		defer span.End()

		if engine == nil {
			metrics.RecordRequest("start", "error")
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: msgEngineNotReady})
			return
		}

		threadID, err := engine.CreateConversation(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to start conversation", "error", err)
			metrics.RecordRequest("start", "error")
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: msgInternal})
			return
		}

		metrics.RecordRequest("start", "success")
		c.JSON(http.StatusOK, datatypes.StartResponse{
			ThreadID: threadID,
			Message:  "Conversation started successfully",
		})
	}
}
