// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package security

// RefusalMessage replaces any generated answer that fails the post-completion
// screen. Fixed and non-committal: it reveals nothing about what was flagged.
const RefusalMessage = "I'm sorry, I can't process this request. Please rephrase your question."

// ResponseGuard re-applies the rule engine to generated answers before they
// reach the caller. Double-checking the output catches manipulation that
// slipped through input screening or arrived via retrieved context.
type ResponseGuard struct {
	engine   *RuleEngine
	recorder *EventRecorder
}

// NewResponseGuard creates a guard using the given engine and recorder.
func NewResponseGuard(engine *RuleEngine, recorder *EventRecorder) *ResponseGuard {
	return &ResponseGuard{engine: engine, recorder: recorder}
}

// Guard screens a generated answer. On a positive match the answer is
// discarded and the fixed refusal message returned in its place; the flagged
// content itself is never returned and never logged — only the rule id is
// recorded in the audit event. The second return reports whether the answer
// was replaced.
func (g *ResponseGuard) Guard(callerContext, answer string) (string, bool) {
	if answer == "" {
		return answer, false
	}
	verdict := g.engine.Detect(answer)
	if !verdict.Matched {
		return answer, false
	}
	if g.recorder != nil {
		g.recorder.Record(EventResponseInjection, "rule "+verdict.RuleID, callerContext)
	}
	return RefusalMessage, true
}
