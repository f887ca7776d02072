// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var runTracer = otel.Tracer("chatgate.assistant.orchestrator")

// Orchestrator defaults. The poll interval, the attempt ceiling, and the
// per-poll network timeout are three independent knobs: the ceiling bounds
// total wait, the per-poll timeout bounds a single hung round-trip.
const (
	DefaultPollInterval = time.Second
	DefaultMaxAttempts  = 60
	DefaultPollTimeout  = 10 * time.Second
)

// OrchestratorConfig configures the polling state machine. Zero values fall
// back to the defaults above.
type OrchestratorConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	PollTimeout  time.Duration
}

// RunResult is the terminal outcome of driving one run.
type RunResult struct {
	State  RunState
	Answer string
}

// Orchestrator submits a prepared prompt to the completion engine and polls
// the resulting asynchronous run to a terminal state.
//
// State transitions:
//
//	created  -> polling          (turn submitted, run created)
//	polling  -> completed        on "completed" (answer fetched)
//	polling  -> failed           on "failed" (upstream message surfaced)
//	polling  -> requires_action  on "requires_action" (unsupported)
//	polling  -> cancelled        on "cancelling"/"cancelled"
//	polling  -> expired          on "expired"
//	polling  -> timed_out        when the attempt ceiling is reached
//	polling  -> polling          otherwise, after one poll interval
//
// The orchestrator holds no per-run state; one instance serves all requests
// concurrently.
type Orchestrator struct {
	engine       Engine
	pollInterval time.Duration
	maxAttempts  int
	pollTimeout  time.Duration
}

// NewOrchestrator creates an orchestrator over the given engine.
func NewOrchestrator(engine Engine, cfg OrchestratorConfig) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	return &Orchestrator{
		engine:       engine,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
		pollTimeout:  cfg.PollTimeout,
	}
}

// Execute submits the prompt as a user turn on the conversation, creates a
// run, and polls it to a terminal state. On completion it returns the most
// recent message text as the answer.
//
// Cancelling ctx abandons polling at the next poll boundary; the remote run
// is not cancelled and is simply never read again. The returned RunResult
// always carries the terminal state, including on error.
func (o *Orchestrator) Execute(ctx context.Context, conversationID, prompt string) (RunResult, error) {
	ctx, span := runTracer.Start(ctx, "Orchestrator.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("conversation_id", conversationID))

	result := RunResult{State: StateCreated}

	if err := o.engine.SubmitTurn(ctx, conversationID, "user", prompt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	runID, err := o.engine.CreateRun(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetAttributes(attribute.String("run_id", runID))
	result.State = StatePolling

	for attempt := 1; ; attempt++ {
		status, err := o.pollOnce(ctx, conversationID, runID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return result, err
		}
		slog.Debug("Run status", "run_id", runID, "status", status.Status, "attempt", attempt)

		switch status.Status {
		case StatusCompleted:
			result.State = StateCompleted
			answer, err := o.fetchAnswer(ctx, conversationID)
			if err != nil {
				span.RecordError(err)
				return result, err
			}
			result.Answer = answer
			return result, nil
		case StatusFailed:
			result.State = StateFailed
			message := status.LastError
			if message == "" {
				message = "unknown error"
			}
			slog.Error("Run failed", "run_id", runID, "error", message)
			err := fmt.Errorf("%w: %s", ErrRunFailed, message)
			span.RecordError(err)
			return result, err
		case StatusRequiresAction:
			result.State = StateRequiresAction
			slog.Warn("Run requires action, which is not implemented", "run_id", runID)
			return result, ErrUnsupportedAction
		case StatusCancelling, StatusCancelled:
			result.State = StateCancelled
			return result, fmt.Errorf("%w: %s", ErrRunInterrupted, status.Status)
		case StatusExpired:
			result.State = StateExpired
			return result, fmt.Errorf("%w: %s", ErrRunInterrupted, status.Status)
		}

		if attempt >= o.maxAttempts {
			result.State = StateTimedOut
			slog.Error("Run timed out", "run_id", runID, "attempts", attempt)
			span.SetStatus(codes.Error, ErrRunTimeout.Error())
			return result, ErrRunTimeout
		}

		timer := time.NewTimer(o.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
}

// pollOnce retrieves the run status under the per-poll timeout, so a single
// hung round-trip cannot stall the state machine past pollTimeout.
func (o *Orchestrator) pollOnce(ctx context.Context, conversationID, runID string) (RunStatus, error) {
	pollCtx, cancel := context.WithTimeout(ctx, o.pollTimeout)
	defer cancel()
	return o.engine.GetRunStatus(pollCtx, conversationID, runID)
}

func (o *Orchestrator) fetchAnswer(ctx context.Context, conversationID string) (string, error) {
	messages, err := o.engine.ListMessages(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if len(messages) == 0 {
		slog.Error("No messages found in thread", "thread_id", conversationID)
		return "", ErrNoMessages
	}
	return messages[0], nil
}
