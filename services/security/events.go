// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package security

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a security event for auditing.
type EventKind string

const (
	EventInputRejected     EventKind = "INPUT_REJECTED"
	EventRateLimitExceeded EventKind = "RATE_LIMIT_EXCEEDED"
	EventResponseInjection EventKind = "RESPONSE_INJECTION_DETECTED"
)

// maxDetailLength bounds the detail stored with an event. Details carry the
// detection reason (a rule id or short description), never the flagged text
// itself, so a log reader cannot re-leak attack content.
const maxDetailLength = 200

// SecurityEvent is an append-only audit record. Events are never mutated
// after creation and are consumed only by the configured sink.
type SecurityEvent struct {
	ID            string    `json:"id"`
	Kind          EventKind `json:"kind"`
	Detail        string    `json:"detail"`
	CallerContext string    `json:"caller_context"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventSink receives recorded events. Implementations must be safe for use
// from the recorder's single writer goroutine.
type EventSink interface {
	Write(event SecurityEvent)
}

// SlogSink writes events to the structured log at warn level.
type SlogSink struct{}

func (SlogSink) Write(event SecurityEvent) {
	slog.Warn("SECURITY EVENT",
		"event_id", event.ID,
		"kind", string(event.Kind),
		"detail", event.Detail,
		"caller", event.CallerContext,
		"timestamp", event.Timestamp.Format(time.RFC3339),
	)
}

// EventRecorder buffers security events on a channel drained by a single
// background goroutine, so recording never blocks a request pipeline.
//
// Record is non-blocking: if the buffer is full the event is dropped and a
// warning logged (losing an audit record is preferable to stalling request
// handling). Close drains the buffer before returning.
type EventRecorder struct {
	sink      EventSink
	ch        chan SecurityEvent
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewEventRecorder creates a recorder draining into sink. A nil sink falls
// back to SlogSink; a non-positive buffer falls back to 256.
func NewEventRecorder(sink EventSink, buffer int) *EventRecorder {
	if sink == nil {
		sink = SlogSink{}
	}
	if buffer <= 0 {
		buffer = 256
	}
	r := &EventRecorder{
		sink: sink,
		ch:   make(chan SecurityEvent, buffer),
	}
	r.wg.Add(1)
	go r.drain()
	return r
}

func (r *EventRecorder) drain() {
	defer r.wg.Done()
	for event := range r.ch {
		r.sink.Write(event)
	}
}

// Record enqueues a security event. The detail is truncated to
// maxDetailLength; callers must pass detection reasons, not flagged text.
func (r *EventRecorder) Record(kind EventKind, detail, callerContext string) {
	if len(detail) > maxDetailLength {
		detail = detail[:maxDetailLength]
	}
	event := SecurityEvent{
		ID:            uuid.New().String(),
		Kind:          kind,
		Detail:        detail,
		CallerContext: callerContext,
		Timestamp:     time.Now().UTC(),
	}
	select {
	case r.ch <- event:
	default:
		slog.Warn("Security event buffer full, dropping event", "kind", string(kind))
	}
}

// Close stops the recorder after draining buffered events.
// Record must not be called after Close.
func (r *EventRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.ch)
	})
	r.wg.Wait()
}
