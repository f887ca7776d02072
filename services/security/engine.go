// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package security implements the request-hardening primitives of the chat
// gateway: input sanitization, prompt-manipulation detection, per-caller
// rate limiting, safe prompt assembly, response guarding, and security
// event recording.
package security

import (
	"fmt"
	"strings"

	"github.com/dataclinic/chatgate/services/security/enforcement"
	"gopkg.in/yaml.v3"
)

// LeakHeuristicRuleID identifies verdicts produced by the keyword fallback
// rather than a regex rule from the table.
const LeakHeuristicRuleID = "leak-keyword"

// RuleEngine is the main entry point for prompt-manipulation detection.
// It holds the compiled rule table and matches text against it.
//
// Detection is deterministic: the same input always yields the same verdict.
// The engine holds no mutable state after construction and is safe for
// concurrent use.
type RuleEngine struct {
	classes []RuleClass
	leak    LeakHeuristic
}

// NewRuleEngine initializes a new RuleEngine.
//
// It takes no arguments: the rule definitions are embedded in the binary via
// the enforcement package. The constructor unmarshals the embedded YAML,
// compiles every regex, and sorts the classes by priority.
//
// Returns an error if the embedded YAML is malformed or contains an invalid
// regex.
func NewRuleEngine() (*RuleEngine, error) {
	var ruleFile RuleFile
	if err := yaml.Unmarshal(enforcement.PromptInjectionRules, &ruleFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded rule file: %w", err)
	}

	if err := ruleFile.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a rule regex: %w", err)
	}

	ruleFile.SortByPriority()

	return &RuleEngine{
		classes: ruleFile.RuleClasses,
		leak:    ruleFile.LeakHeuristic,
	}, nil
}

// Detect matches text against the rule table and returns a Verdict.
//
// Classes are evaluated from the highest priority to the lowest and, within
// a class, rules run in table order. The first matching rule wins; no
// further rules are evaluated. When no regex rule matches, the leak-keyword
// heuristic runs: a keyword hit flags the text unless a benign framing
// phrase is also present.
//
// Detect is used both on sanitized user input before submission and on the
// generated answer before it reaches the caller.
func (e *RuleEngine) Detect(text string) Verdict {
	for _, class := range e.classes {
		for _, rule := range class.Patterns {
			if rule.compiledPattern.MatchString(text) {
				return Verdict{Matched: true, RuleID: rule.Id, Class: class.Name}
			}
		}
	}
	return e.detectLeakKeywords(text)
}

// detectLeakKeywords applies the keyword fallback for prompt-leak attempts.
// A bare keyword hit is treated as legitimate when qualified by a benign
// framing phrase ("what is your system prompt?" is a question about the
// concept, not an extraction attempt).
func (e *RuleEngine) detectLeakKeywords(text string) Verdict {
	lower := strings.ToLower(text)
	for _, keyword := range e.leak.Keywords {
		if !strings.Contains(lower, keyword) {
			continue
		}
		for _, framing := range e.leak.BenignFramings {
			if strings.Contains(lower, framing) {
				return Verdict{}
			}
		}
		return Verdict{Matched: true, RuleID: LeakHeuristicRuleID, Class: "prompt_leak"}
	}
	return Verdict{}
}
