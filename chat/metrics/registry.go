// Package metrics aggregates process-wide counters and latency samples for
// streaming sessions. A single Registry is constructed at startup and shared
// by reference; it never blocks session handling beyond a short critical
// section around the latency window.
package metrics

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultWindowSize is the default capacity of the rolling latency window.
const DefaultWindowSize = 1000

// Outcome classifies how a session reached its terminal state.
type Outcome string

const (
	// OutcomeCompleted means the full reply was delivered and persisted.
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed means the producer or sink raised an error mid-stream.
	OutcomeFailed Outcome = "failed"
	// OutcomeCancelled means the peer disconnected before completion.
	OutcomeCancelled Outcome = "cancelled"
)

// Registry collects counters, the active-session gauge and a bounded rolling
// window of per-session latencies. All methods are safe for concurrent use.
type Registry struct {
	totalRequests      atomic.Int64
	totalCompletions   atomic.Int64
	totalErrors        atomic.Int64
	totalCancellations atomic.Int64
	activeSessions     atomic.Int64

	mu      sync.Mutex
	window  []time.Duration // circular buffer of latency samples
	next    int             // next write position
	filled  bool            // window has wrapped at least once
	started time.Time
}

// NewRegistry creates a registry with the given latency window capacity.
// A non-positive capacity falls back to DefaultWindowSize.
func NewRegistry(windowSize int) *Registry {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Registry{
		window:  make([]time.Duration, windowSize),
		started: time.Now(),
	}
}

// RecordStart marks a session entering its starting state. Every RecordStart
// must be paired with exactly one RecordTerminal.
func (r *Registry) RecordStart() {
	r.totalRequests.Add(1)
	r.activeSessions.Add(1)
}

// RecordTerminal marks a session reaching a terminal state and pushes its
// elapsed time into the rolling latency window. A negative gauge after the
// decrement indicates unpaired calls, which is a caller bug and fatal.
func (r *Registry) RecordTerminal(outcome Outcome, elapsed time.Duration) {
	switch outcome {
	case OutcomeCompleted:
		r.totalCompletions.Add(1)
	case OutcomeFailed:
		r.totalErrors.Add(1)
	case OutcomeCancelled:
		r.totalCancellations.Add(1)
	}

	if active := r.activeSessions.Add(-1); active < 0 {
		panic(fmt.Sprintf("metrics: active_sessions went negative (%d): RecordTerminal without matching RecordStart", active))
	}

	r.mu.Lock()
	r.window[r.next] = elapsed
	r.next++
	if r.next == len(r.window) {
		r.next = 0
		r.filled = true
	}
	r.mu.Unlock()
}

// ActiveSessions returns the current gauge value.
func (r *Registry) ActiveSessions() int64 {
	return r.activeSessions.Load()
}

// Snapshot is an immutable copy of the registry state with derived
// percentile estimates over the current latency window.
type Snapshot struct {
	ActiveSessions     int64         `json:"active_sessions"`
	TotalRequests      int64         `json:"total_requests"`
	TotalCompletions   int64         `json:"total_completions"`
	TotalErrors        int64         `json:"total_errors"`
	TotalCancellations int64         `json:"total_cancellations"`
	SampleCount        int           `json:"sample_count"`
	P50                time.Duration `json:"p50_ns"`
	P95                time.Duration `json:"p95_ns"`
	P99                time.Duration `json:"p99_ns"`
	Uptime             time.Duration `json:"uptime_ns"`
}

// Snapshot returns a point-in-time copy of all counters and gauges plus
// p50/p95/p99 over the retained samples.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	samples := r.samplesLocked()
	r.mu.Unlock()

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	return Snapshot{
		ActiveSessions:     r.activeSessions.Load(),
		TotalRequests:      r.totalRequests.Load(),
		TotalCompletions:   r.totalCompletions.Load(),
		TotalErrors:        r.totalErrors.Load(),
		TotalCancellations: r.totalCancellations.Load(),
		SampleCount:        len(samples),
		P50:                percentile(samples, 0.50),
		P95:                percentile(samples, 0.95),
		P99:                percentile(samples, 0.99),
		Uptime:             time.Since(r.started),
	}
}

// samplesLocked copies the live portion of the circular buffer.
// Caller must hold r.mu.
func (r *Registry) samplesLocked() []time.Duration {
	n := r.next
	if r.filled {
		n = len(r.window)
	}
	out := make([]time.Duration, n)
	copy(out, r.window[:n])
	return out
}

// percentile returns the nearest-rank percentile of sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
