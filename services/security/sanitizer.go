// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package security

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxInputLength caps sanitized input at 5000 runes.
const DefaultMaxInputLength = 5000

var (
	// Non-printable control characters, excluding \t \n \r which are
	// ordinary whitespace and handled by collapsing.
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

	// Angle-bracket tag stripping. Deliberately simple and over-eager:
	// this is markup removal, not an HTML parser, and it may eat a
	// legitimate "<" in a math expression.
	markupTags = regexp.MustCompile(`<[^>]+>`)

	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// Sanitizer normalizes raw caller input before any other screening runs.
// It is a pure function over its input and safe for concurrent use.
type Sanitizer struct {
	maxLength int
}

// NewSanitizer creates a Sanitizer with the given rune cap.
// A non-positive cap falls back to DefaultMaxInputLength.
func NewSanitizer(maxLength int) *Sanitizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxInputLength
	}
	return &Sanitizer{maxLength: maxLength}
}

// Sanitize strips control characters and markup tags, collapses whitespace
// runs to single spaces, truncates to the configured cap, and trims.
//
// The steps run in that order so the operation is idempotent:
// sanitize(sanitize(x)) == sanitize(x). An empty result is a valid output;
// callers must treat it as invalid input, not as an error from this step.
func (s *Sanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	text := controlChars.ReplaceAllString(raw, "")
	text = markupTags.ReplaceAllString(text, "")
	text = whitespaceRuns.ReplaceAllString(text, " ")

	if utf8.RuneCountInString(text) > s.maxLength {
		slog.Warn("Input too long, truncating",
			"length", utf8.RuneCountInString(text), "max", s.maxLength)
		text = string([]rune(text)[:s.maxLength])
	}

	return strings.TrimSpace(text)
}

// MaxLength reports the configured rune cap.
func (s *Sanitizer) MaxLength() int {
	return s.maxLength
}
