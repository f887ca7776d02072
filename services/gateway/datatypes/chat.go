// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request and response types for the gateway
// HTTP surface.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// chatValidate is the shared validator instance for gateway datatypes.
var chatValidate = validator.New()

// ChatRequest represents the POST /chat request body.
//
// # Description
//
// ChatRequest carries one user turn for an existing conversation thread.
// The thread must have been created via GET /start; the gateway does not
// create threads implicitly.
//
// # Fields
//
//   - ThreadID: Required. The conversation thread identifier returned by
//     GET /start.
//   - Message: Required. The raw user message. Sanitization and security
//     screening happen downstream; validation here only rejects the
//     structurally empty request.
//
// # Validation
//
// Uses go-playground/validator:
//   - ThreadID: required
//   - Message: required, at least 1 character
type ChatRequest struct {
	ThreadID string `json:"thread_id" validate:"required"`
	Message  string `json:"message" validate:"required,min=1"`
}

// Validate validates the ChatRequest fields after JSON binding.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ChatResponse represents the POST /chat response body.
//
// The Response field is either the guarded assistant answer or the fixed
// refusal message; a caller cannot distinguish the two from the shape.
type ChatResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
}

// StartResponse represents the GET /start response body.
type StartResponse struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// ErrorResponse is the uniform error body for all gateway endpoints.
// Detail stays generic on security rejections so the response does not
// reveal which rule fired.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the GET /health response body.
//
// Status is "healthy" when both upstream credentials are configured,
// "degraded" otherwise. The per-credential flags tell an operator which
// one is missing without exposing any value.
type HealthResponse struct {
	Status          string `json:"status"`
	APIKeySet       bool   `json:"openai_api_key_set"`
	AssistantIDSet  bool   `json:"assistant_id_set"`
	RetrievalActive bool   `json:"retrieval_active"`
}
