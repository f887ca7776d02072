// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package security

import (
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

type ConfidenceLevel string

const (
	Low    ConfidenceLevel = "low"
	Medium ConfidenceLevel = "medium"
	High   ConfidenceLevel = "high"
)

// RuleFile mirrors the embedded prompt_injection_rules.yaml document.
type RuleFile struct {
	RuleClasses   []RuleClass   `yaml:"classifications"`
	LeakHeuristic LeakHeuristic `yaml:"leak_heuristic"`
}

// RuleClass groups related detection rules. Classes are evaluated from the
// highest priority to the lowest; within a class, rules run in file order.
type RuleClass struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Priority    int    `yaml:"priority"`
	Patterns    []Rule `yaml:"patterns"`
}

type Rule struct {
	Id              string          `yaml:"id"`
	Description     string          `yaml:"description"`
	Regex           string          `yaml:"regex"`
	Confidence      ConfidenceLevel `yaml:"confidence"`
	compiledPattern *regexp.Regexp  `yaml:"-"`
}

// LeakHeuristic is the keyword fallback that runs only after no regex rule
// matched. A keyword hit is suppressed when any benign framing phrase is
// also present, so questions like "what is your system prompt?" pass.
// Both lists are policy data, tunable without code changes.
type LeakHeuristic struct {
	Keywords       []string `yaml:"keywords"`
	BenignFramings []string `yaml:"benign_framings"`
}

func (c *ConfidenceLevel) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	incoming := ConfidenceLevel(s)
	switch incoming {
	case High, Medium, Low:
		*c = incoming
		return nil
	default:
		return fmt.Errorf("invalid value for Confidence: %q", incoming)
	}
}

func (f *RuleFile) CompileRegexes() error {
	for i := range f.RuleClasses {
		for j := range f.RuleClasses[i].Patterns {
			rule := &f.RuleClasses[i].Patterns[j]
			re, err := regexp.Compile(rule.Regex)
			if err != nil {
				return fmt.Errorf("failed to compile the regex %s: %w", rule.Regex, err)
			}
			rule.compiledPattern = re
		}
	}
	return nil
}

func (f *RuleFile) SortByPriority() {
	sort.SliceStable(f.RuleClasses, func(i, j int) bool {
		return f.RuleClasses[i].Priority > f.RuleClasses[j].Priority
	})
}

// Verdict is the outcome of matching a piece of text against the rule table.
// RuleID and Class are only set when Matched is true.
type Verdict struct {
	Matched bool   `json:"matched"`
	RuleID  string `json:"rule_id,omitempty"`
	Class   string `json:"class,omitempty"`
}
