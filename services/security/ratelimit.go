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
)

// Default sliding-window caps per caller identity.
const (
	DefaultRequestsPerMinute = 10
	DefaultRequestsPerHour   = 100
)

// Rejection reasons returned by Admit. Logged and audited, never echoed
// verbatim to callers.
const (
	ReasonPerMinuteExceeded = "per-minute limit exceeded"
	ReasonPerHourExceeded   = "per-hour limit exceeded"
)

// RateLimiter tracks accepted-request timestamps per caller identity and
// admits or rejects calls against two sliding windows (one minute, one
// hour). Entries older than one hour are purged lazily on each check.
//
// The limiter is the only shared mutable structure in the request pipeline.
// A single mutex protects the whole map: admission checks are short, and
// serializing them avoids lost updates between the count and the append.
//
// Create one limiter at service start and inject it; there is no package
// level instance.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	perHour   int
	entries   map[string][]time.Time

	// now is swappable so tests can drive the clock deterministically.
	now func() time.Time
}

// NewRateLimiter creates a RateLimiter with the given caps.
// Non-positive caps fall back to the defaults.
func NewRateLimiter(perMinute, perHour int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	if perHour <= 0 {
		perHour = DefaultRequestsPerHour
	}
	return &RateLimiter{
		perMinute: perMinute,
		perHour:   perHour,
		entries:   make(map[string][]time.Time),
		now:       time.Now,
	}
}

// Admit checks whether the identity may issue a request right now.
//
// On each call the identity's timestamps older than one hour are purged,
// then the per-minute and per-hour caps are checked in that order. When
// admitted, the current timestamp is appended — even if the caller never
// completes the downstream pipeline, the admission still counts against
// quota.
//
// Admit never fails; it is pure bookkeeping.
func (l *RateLimiter) Admit(identity string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hourAgo := now.Add(-time.Hour)
	minuteAgo := now.Add(-time.Minute)

	kept := l.entries[identity][:0]
	for _, ts := range l.entries[identity] {
		if ts.After(hourAgo) {
			kept = append(kept, ts)
		}
	}

	recent := 0
	for _, ts := range kept {
		if ts.After(minuteAgo) {
			recent++
		}
	}

	if recent >= l.perMinute {
		l.entries[identity] = kept
		slog.Warn("Rate limit exceeded", "identity", identity, "reason", ReasonPerMinuteExceeded)
		return false, ReasonPerMinuteExceeded
	}
	if len(kept) >= l.perHour {
		l.entries[identity] = kept
		slog.Warn("Rate limit exceeded", "identity", identity, "reason", ReasonPerHourExceeded)
		return false, ReasonPerHourExceeded
	}

	l.entries[identity] = append(kept, now)
	return true, ""
}
