// Package security implements the Security Gate (spec.md §4.4):
// RateLimiter, ContentFilter, ResourceMonitor, and the policy-level
// presets that tie them together. The Audit Buffer itself lives in
// internal/audit; the Gate wires events into it.
//
// RateLimiter is grounded on the teacher's pkg/ratelimit/limiter.go
// DefaultRateLimiter (Check/Record/CheckAndRecord/GetUsage/Reset/
// ResetExpired method shapes over a pluggable Store), narrowed from
// the teacher's fixed-window multi-rule store to a single true sliding
// window per principal, because spec.md §8 property 8 requires
// reset-after-idle semantics a fixed bucket can't express.
package security

import (
	"sync"
	"time"
)

// RateLimitConfig mirrors spec.md §4.4's RateLimiter config.
type RateLimitConfig struct {
	WindowMs   int64
	MaxRequests int64
	MaxTokens  int64
}

type event struct {
	at     time.Time
	tokens int64
}

type window struct {
	events []event
}

// RateLimiter is a sliding-window limiter keyed by principal.
type RateLimiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	byKey   map[string]*window
	nowFunc func() time.Time
}

// NewRateLimiter builds a RateLimiter for the given config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		byKey:   make(map[string]*window),
		nowFunc: time.Now,
	}
}

// CheckResult is the outcome of a Check call.
type CheckResult struct {
	Allowed    bool
	Requests   int64
	Tokens     int64
	RetryAfter time.Duration
}

// Check evaluates whether principal may spend tokenCost tokens (and one
// request) right now and, if so, records the spend in the same call —
// the teacher's Check/Record split is collapsed into one here since
// nothing in this package ever calls them separately. Only an allowed
// request occupies a window slot; a denied one leaves the window
// untouched; so a sustained burst past the limit doesn't itself push
// earlier events out and extend the caller's own retry wait.
func (rl *RateLimiter) Check(principal string, tokenCost int64) CheckResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc()
	cutoff := now.Add(-time.Duration(rl.cfg.WindowMs) * time.Millisecond)

	w, ok := rl.byKey[principal]
	if !ok {
		w = &window{}
		rl.byKey[principal] = w
	}
	w.events = pruneBefore(w.events, cutoff)

	var requests, tokens int64
	for _, e := range w.events {
		requests++
		tokens += e.tokens
	}

	allowed := true
	var retryAfter time.Duration
	if rl.cfg.MaxRequests > 0 && requests+1 > rl.cfg.MaxRequests {
		allowed = false
	}
	if rl.cfg.MaxTokens > 0 && tokens+tokenCost > rl.cfg.MaxTokens {
		allowed = false
	}
	if !allowed && len(w.events) > 0 {
		retryAfter = w.events[0].at.Add(time.Duration(rl.cfg.WindowMs) * time.Millisecond).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
	}

	if allowed {
		w.events = append(w.events, event{at: now, tokens: tokenCost})
		requests++
		tokens += tokenCost
	}

	return CheckResult{Allowed: allowed, Requests: requests, Tokens: tokens, RetryAfter: retryAfter}
}

// Reset clears usage for a principal.
func (rl *RateLimiter) Reset(principal string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.byKey, principal)
}

func pruneBefore(events []event, cutoff time.Time) []event {
	out := events[:0]
	for _, e := range events {
		if e.at.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}
