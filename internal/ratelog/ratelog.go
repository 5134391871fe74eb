// FILE: internal/ratelog/ratelog.go
// Package ratelog – Rate-limited logging for noisy, expected-to-recur
// errors (spec §4.1, §7: "logged with rate limiting (first N + every Mth)").
//
// A Limiter logs unconditionally for the first N occurrences of a key, then
// once every M occurrences thereafter, so a misbehaving rule or a flood of
// store errors doesn't drown stdout.
package ratelog

import (
	"log"
	"sync"
)

// Limiter tracks per-key occurrence counts.
type Limiter struct {
	First int
	Every int

	mu     sync.Mutex
	counts map[string]int
}

// NewLimiter returns a Limiter that logs the first `first` occurrences of a
// key unconditionally, then one in every `every` thereafter.
func NewLimiter(first, every int) *Limiter {
	if first < 0 {
		first = 0
	}
	if every < 1 {
		every = 1
	}
	return &Limiter{First: first, Every: every, counts: make(map[string]int)}
}

// Printf logs format/args under key, subject to the rate limit.
func (l *Limiter) Printf(key, format string, args ...any) {
	l.mu.Lock()
	l.counts[key]++
	n := l.counts[key]
	l.mu.Unlock()

	if n <= l.First || (n-l.First)%l.Every == 0 {
		log.Printf(format, args...)
	}
}

// Count returns how many times key has been seen.
func (l *Limiter) Count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key]
}
