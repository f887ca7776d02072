// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package services contains the gateway's business logic, wired between the
// HTTP handlers and the security, retrieval, and assistant layers.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dataclinic/chatgate/services/assistant"
	"github.com/dataclinic/chatgate/services/gateway/observability"
	"github.com/dataclinic/chatgate/services/retrieval"
	"github.com/dataclinic/chatgate/services/security"
)

var tracer = otel.Tracer("chatgate.gateway.services")

// Pipeline errors. Handlers map these onto HTTP status codes; everything
// unmatched is treated as an internal error.
var (
	// ErrRateLimited means the caller exceeded a request window.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrSecurityRejected means the input failed sanitization or security
	// screening. The wrapped detail is for logs only and must never reach
	// the HTTP response.
	ErrSecurityRejected = errors.New("input rejected by security screening")
)

// ChatPipeline runs one user turn through the full gateway sequence:
// rate limit, sanitize, screen, retrieve, assemble, execute, guard.
//
// The stages are ordered so the cheapest checks run first and the
// assistant engine is never touched by a request that fails screening.
type ChatPipeline struct {
	limiter      *security.RateLimiter
	sanitizer    *security.Sanitizer
	detector     *security.RuleEngine
	guard        *security.ResponseGuard
	recorder     *security.EventRecorder
	retriever    retrieval.Retriever
	orchestrator *assistant.Orchestrator
	metrics      *observability.GatewayMetrics
	topK         int
}

// PipelineConfig wires the pipeline's collaborators. All fields except
// Metrics are required; TopK defaults to retrieval.DefaultTopK.
type PipelineConfig struct {
	Limiter      *security.RateLimiter
	Sanitizer    *security.Sanitizer
	Detector     *security.RuleEngine
	Guard        *security.ResponseGuard
	Recorder     *security.EventRecorder
	Retriever    retrieval.Retriever
	Orchestrator *assistant.Orchestrator
	Metrics      *observability.GatewayMetrics
	TopK         int
}

// NewChatPipeline creates a pipeline from the given collaborators.
func NewChatPipeline(cfg PipelineConfig) (*ChatPipeline, error) {
	if cfg.Limiter == nil || cfg.Sanitizer == nil || cfg.Detector == nil ||
		cfg.Guard == nil || cfg.Recorder == nil || cfg.Orchestrator == nil {
		return nil, fmt.Errorf("pipeline is missing a required collaborator")
	}
	if cfg.Retriever == nil {
		cfg.Retriever = retrieval.NoopRetriever{}
	}
	if cfg.TopK <= 0 {
		cfg.TopK = retrieval.DefaultTopK
	}
	return &ChatPipeline{
		limiter:      cfg.Limiter,
		sanitizer:    cfg.Sanitizer,
		detector:     cfg.Detector,
		guard:        cfg.Guard,
		recorder:     cfg.Recorder,
		retriever:    cfg.Retriever,
		orchestrator: cfg.Orchestrator,
		metrics:      cfg.Metrics,
		topK:         cfg.TopK,
	}, nil
}

// Process runs one chat turn. callerID identifies the caller for rate
// limiting and audit events; threadID names the conversation.
//
// The returned answer is already guarded: on a flagged response it is the
// fixed refusal message, returned with a nil error so the caller cannot
// distinguish a refusal from a normal answer by status.
func (p *ChatPipeline) Process(ctx context.Context, threadID, message, callerID string) (string, error) {
	ctx, span := tracer.Start(ctx, "ChatPipeline.Process")
	defer span.End()
	span.SetAttributes(attribute.String("thread_id", threadID))

	// 1. Rate limit before any per-request work.
	admitted, reason := p.limiter.Admit(callerID)
	if !admitted {
		p.recorder.Record(security.EventRateLimitExceeded, reason, callerID)
		p.metrics.RecordSecurityEvent(string(security.EventRateLimitExceeded))
		window := "minute"
		if reason == security.ReasonPerHourExceeded {
			window = "hour"
		}
		p.metrics.RecordRateLimitRejection(window)
		return "", fmt.Errorf("%w: %s", ErrRateLimited, reason)
	}

	// 2. Sanitize. An input that is empty after cleanup carried nothing
	// but control characters or markup.
	cleaned := p.sanitizer.Sanitize(message)
	if cleaned == "" {
		p.recorder.Record(security.EventInputRejected, "empty after sanitization", callerID)
		p.metrics.RecordSecurityEvent(string(security.EventInputRejected))
		return "", fmt.Errorf("%w: empty after sanitization", ErrSecurityRejected)
	}

	// 3. Screen the sanitized input. The audit detail carries the rule id,
	// never the flagged text.
	verdict := p.detector.Detect(cleaned)
	if verdict.Matched {
		p.recorder.Record(security.EventInputRejected, "rule "+verdict.RuleID, callerID)
		p.metrics.RecordSecurityEvent(string(security.EventInputRejected))
		slog.Warn("Input rejected by security screening",
			"thread_id", threadID, "rule_id", verdict.RuleID, "class", verdict.Class)
		return "", fmt.Errorf("%w: rule %s", ErrSecurityRejected, verdict.RuleID)
	}

	// 4. Retrieve grounding context. Best-effort: failures inside the
	// retriever surface as an empty slice.
	passages := p.retriever.Retrieve(ctx, cleaned, p.topK)
	span.SetAttributes(attribute.Int("passages", len(passages)))

	// 5. Assemble the delimited prompt and execute the run.
	prompt := security.BuildPrompt(toContextPassages(passages), cleaned)

	p.metrics.RunStarted()
	started := time.Now()
	result, err := p.orchestrator.Execute(ctx, threadID, prompt)
	p.metrics.RunFinished()
	p.metrics.ObserveRunDuration(string(result.State), time.Since(started))
	if err != nil {
		return "", err
	}

	// 6. Guard the generated answer before it leaves the gateway.
	answer, replaced := p.guard.Guard(callerID, result.Answer)
	if replaced {
		p.metrics.RecordSecurityEvent(string(security.EventResponseInjection))
	}
	return answer, nil
}

func toContextPassages(passages []retrieval.Passage) []security.ContextPassage {
	out := make([]security.ContextPassage, 0, len(passages))
	for _, p := range passages {
		out = append(out, security.ContextPassage{Text: p.Text, Source: p.Source})
	}
	return out
}
