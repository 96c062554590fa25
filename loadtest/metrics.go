package loadtest

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics aggregates client-side results of a load-test run. Safe for
// concurrent use by the request workers.
type Metrics struct {
	mu sync.Mutex

	totalRequests      int
	successfulRequests int
	failedRequests     int
	latencies          []time.Duration
	errors             []string

	startTime time.Time
	endTime   time.Time
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Start marks the beginning of the measured window.
func (m *Metrics) Start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// Stop marks the end of the measured window.
func (m *Metrics) Stop() {
	m.mu.Lock()
	m.endTime = time.Now()
	m.mu.Unlock()
}

// Record accounts one finished request.
func (m *Metrics) Record(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	if res.Err != nil {
		m.failedRequests++
		m.errors = append(m.errors, res.Err.Error())
		return
	}
	m.successfulRequests++
	m.latencies = append(m.latencies, res.Elapsed)
}

// SuccessRate returns the percentage of successful requests.
func (m *Metrics) SuccessRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalRequests == 0 {
		return 0
	}
	return float64(m.successfulRequests) / float64(m.totalRequests) * 100
}

// Throughput returns requests per second over the measured window.
func (m *Metrics) Throughput() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startTime.IsZero() || m.endTime.IsZero() {
		return 0
	}
	duration := m.endTime.Sub(m.startTime).Seconds()
	if duration <= 0 {
		return 0
	}
	return float64(m.totalRequests) / duration
}

// Report renders a human-readable summary with latency percentiles.
func (m *Metrics) Report() string {
	m.mu.Lock()
	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	total := m.totalRequests
	ok := m.successfulRequests
	failed := m.failedRequests
	errs := m.errors
	m.mu.Unlock()

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var b strings.Builder
	fmt.Fprintf(&b, "requests:     %d (ok %d, failed %d)\n", total, ok, failed)
	fmt.Fprintf(&b, "success rate: %.1f%%\n", m.SuccessRate())
	fmt.Fprintf(&b, "throughput:   %.1f req/s\n", m.Throughput())
	if len(latencies) > 0 {
		fmt.Fprintf(&b, "latency min:  %s\n", latencies[0])
		fmt.Fprintf(&b, "latency p50:  %s\n", pct(latencies, 0.50))
		fmt.Fprintf(&b, "latency p95:  %s\n", pct(latencies, 0.95))
		fmt.Fprintf(&b, "latency p99:  %s\n", pct(latencies, 0.99))
		fmt.Fprintf(&b, "latency max:  %s\n", latencies[len(latencies)-1])
	}
	if len(errs) > 0 {
		shown := errs
		if len(shown) > 5 {
			shown = shown[:5]
		}
		fmt.Fprintf(&b, "errors (first %d of %d):\n", len(shown), len(errs))
		for _, e := range shown {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}

func pct(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
