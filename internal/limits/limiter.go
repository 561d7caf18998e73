// Package limits guards LLM spend with a per-process sliding-window call
// limiter and a daily cost ceiling.
package limits

import (
	"sync"
	"time"
)

// Limiter combines request-rate and daily-cost throttling. A zero
// max-calls or max-cost disables the corresponding check.
type Limiter struct {
	mu                sync.Mutex
	maxCallsPerMinute int
	maxDailyCost      float64

	window    []time.Time // call timestamps within the last minute
	dailyCost float64
	costDay   time.Time // midnight of the day dailyCost accumulates for

	totalCalls int
	totalCost  float64

	now func() time.Time
}

// New creates a Limiter.
func New(maxCallsPerMinute int, maxDailyCost float64) *Limiter {
	return &Limiter{
		maxCallsPerMinute: maxCallsPerMinute,
		maxDailyCost:      maxDailyCost,
		now:               time.Now,
	}
}

// CheckRateLimit reports whether another call is allowed right now.
func (l *Limiter) CheckRateLimit() bool {
	if l.maxCallsPerMinute <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return len(l.window) < l.maxCallsPerMinute
}

// CheckDailyCost reports whether a call with the given estimated cost
// fits under today's ceiling.
func (l *Limiter) CheckDailyCost(estCost float64) bool {
	if l.maxDailyCost <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(l.now())
	return l.dailyCost+estCost <= l.maxDailyCost
}

// RecordCall registers a completed call and its actual cost.
func (l *Limiter) RecordCall(actualCost float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.evict(now)
	l.rollover(now)
	l.window = append(l.window, now)
	l.dailyCost += actualCost
	l.totalCalls++
	l.totalCost += actualCost
}

// Stats is a snapshot of limiter counters.
type Stats struct {
	CallsLastMinute int     `json:"calls_last_minute"`
	DailyCost       float64 `json:"daily_cost"`
	MaxDailyCost    float64 `json:"max_daily_cost"`
	TotalCalls      int     `json:"total_calls"`
	TotalCost       float64 `json:"total_cost"`
}

// Snapshot returns current counters.
func (l *Limiter) Snapshot() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.evict(now)
	l.rollover(now)
	return Stats{
		CallsLastMinute: len(l.window),
		DailyCost:       l.dailyCost,
		MaxDailyCost:    l.maxDailyCost,
		TotalCalls:      l.totalCalls,
		TotalCost:       l.totalCost,
	}
}

// evict pops timestamps older than one minute. Amortized O(1): each
// timestamp is appended and removed once.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(l.window) && !l.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.window = append(l.window[:0], l.window[i:]...)
	}
}

// rollover resets the daily total when the local day changes.
func (l *Limiter) rollover(now time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !day.Equal(l.costDay) {
		l.costDay = day
		l.dailyCost = 0
	}
}
