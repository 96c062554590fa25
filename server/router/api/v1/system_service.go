package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/chatgate/internal/version"
)

// HealthResponse is the JSON shape of the health endpoint.
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	UptimeSeconds  float64   `json:"uptime_seconds"`
	ActiveSessions int64     `json:"active_sessions"`
}

// MetricsResponse is the JSON shape of the metrics endpoint.
type MetricsResponse struct {
	TotalRequests       int64     `json:"total_requests"`
	TotalCompletions    int64     `json:"total_completions"`
	TotalErrors         int64     `json:"total_errors"`
	TotalCancellations  int64     `json:"total_cancellations"`
	ActiveSessions      int64     `json:"active_sessions"`
	ActiveConversations int       `json:"active_conversations"`
	TotalConversations  int64     `json:"total_conversations"`
	TotalMessages       int64     `json:"total_messages"`
	LatencyP50Ms        int64     `json:"latency_p50_ms"`
	LatencyP95Ms        int64     `json:"latency_p95_ms"`
	LatencyP99Ms        int64     `json:"latency_p99_ms"`
	SampleCount         int       `json:"sample_count"`
	Timestamp           time.Time `json:"timestamp"`
}

// HealthCheck handles GET /healthz.
func (s *APIV1Service) HealthCheck(c echo.Context) error {
	snap := s.Registry.Snapshot()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:         "healthy",
		Timestamp:      time.Now(),
		Version:        version.GetCurrentVersion(s.Profile.Mode),
		UptimeSeconds:  snap.Uptime.Seconds(),
		ActiveSessions: snap.ActiveSessions,
	})
}

// GetMetrics handles GET /api/v1/metrics.
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	snap := s.Registry.Snapshot()
	return c.JSON(http.StatusOK, MetricsResponse{
		TotalRequests:       snap.TotalRequests,
		TotalCompletions:    snap.TotalCompletions,
		TotalErrors:         snap.TotalErrors,
		TotalCancellations:  snap.TotalCancellations,
		ActiveSessions:      snap.ActiveSessions,
		ActiveConversations: s.Store.Len(),
		TotalConversations:  s.Store.CreatedTotal(),
		TotalMessages:       s.Store.MessageTotal(),
		LatencyP50Ms:        snap.P50.Milliseconds(),
		LatencyP95Ms:        snap.P95.Milliseconds(),
		LatencyP99Ms:        snap.P99.Milliseconds(),
		SampleCount:         snap.SampleCount,
		Timestamp:           time.Now(),
	})
}
