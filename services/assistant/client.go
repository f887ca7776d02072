// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package assistant drives the hosted assistant-style completion engine:
// a narrow client over the thread/run/message API and the polling state
// machine that takes an asynchronous run to a terminal state.
package assistant

import (
	"context"
	"errors"
)

// RunState is the orchestrator's view of an asynchronous run.
// Completed, RequiresAction, Failed, Cancelled, Expired, and TimedOut are
// terminal.
type RunState string

const (
	StateCreated        RunState = "created"
	StatePolling        RunState = "polling"
	StateCompleted      RunState = "completed"
	StateRequiresAction RunState = "requires_action"
	StateFailed         RunState = "failed"
	StateCancelled      RunState = "cancelled"
	StateExpired        RunState = "expired"
	StateTimedOut       RunState = "timed_out"
)

// Upstream run status strings as reported by the completion engine.
const (
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
	StatusRequiresAction = "requires_action"
	StatusCancelling     = "cancelling"
	StatusCancelled      = "cancelled"
	StatusExpired        = "expired"
)

// Sentinel errors surfaced by the orchestrator. Handlers map these onto
// HTTP status codes; the pipeline never retries them itself.
var (
	// ErrRunFailed wraps an engine-reported run failure; the upstream
	// error message is attached to the wrapping error.
	ErrRunFailed = errors.New("assistant run failed")

	// ErrRunInterrupted covers cancelling/cancelled/expired runs. These
	// are retryable by the caller, not a gateway defect.
	ErrRunInterrupted = errors.New("assistant run interrupted")

	// ErrUnsupportedAction is returned for requires_action runs.
	// Deliberately unimplemented; surfaced distinctly so operators can
	// tell "needs a feature" from "broke".
	ErrUnsupportedAction = errors.New("assistant requires action - not implemented")

	// ErrRunTimeout means the polling ceiling was reached while the run
	// was still in progress. The remote run may still complete, but its
	// result is never read.
	ErrRunTimeout = errors.New("assistant run polling ceiling reached")

	// ErrNoMessages means the run completed but the conversation holds
	// no messages. Distinct from ErrRunFailed.
	ErrNoMessages = errors.New("no messages found in thread")
)

// RunStatus is one observation of a run's upstream state.
type RunStatus struct {
	// Status is the engine-reported status string.
	Status string

	// LastError carries the upstream error message for failed runs.
	LastError string
}

// Engine is the narrow contract the gateway consumes from the completion
// engine. Implementations must be safe for concurrent use.
type Engine interface {
	// CreateConversation creates a new conversation thread and returns
	// its identifier.
	CreateConversation(ctx context.Context) (string, error)

	// SubmitTurn appends a message with the given role to the thread.
	SubmitTurn(ctx context.Context, conversationID, role, content string) error

	// CreateRun starts an asynchronous run over the thread's latest turn
	// and returns the run identifier.
	CreateRun(ctx context.Context, conversationID string) (string, error)

	// GetRunStatus retrieves the current status of a run.
	GetRunStatus(ctx context.Context, conversationID, runID string) (RunStatus, error)

	// ListMessages returns the thread's message texts, most recent first.
	ListMessages(ctx context.Context, conversationID string) ([]string, error)
}
