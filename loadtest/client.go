// Package loadtest exercises a running gateway over its SSE chat endpoint
// and aggregates client-side latency and success metrics.
package loadtest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Result describes one finished chat request.
type Result struct {
	ConversationID string
	Chunks         int
	FullText       string
	Elapsed        time.Duration
	Err            error
}

// Client drives chat requests against a gateway instance.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a load-test client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
	}
}

// HealthCheck verifies the gateway is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(err, "health check request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return pkgerrors.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// sseEvent is the subset of the wire event the client cares about.
type sseEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	Error          string `json:"error"`
}

// SendChat posts one message and consumes the SSE stream to completion.
func (c *Client) SendChat(ctx context.Context, message, conversationID string) Result {
	start := time.Now()

	form := url.Values{}
	form.Set("message", message)
	if conversationID != "" {
		form.Set("conversation_id", conversationID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/chat",
		strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Elapsed: time.Since(start), Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Result{Elapsed: time.Since(start), Err: pkgerrors.Wrap(err, "chat request failed")}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Elapsed: time.Since(start), Err: pkgerrors.Errorf("chat returned %d", resp.StatusCode)}
	}

	result := Result{}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev sseEvent
		if err := json.Unmarshal([]byte(line[len("data: "):]), &ev); err != nil {
			result.Err = pkgerrors.Wrap(err, "malformed event")
			result.Elapsed = time.Since(start)
			return result
		}
		switch ev.Type {
		case "connected":
			result.ConversationID = ev.ConversationID
		case "message":
			result.Chunks++
		case "completed":
			result.FullText = ev.Content
			result.Elapsed = time.Since(start)
			return result
		case "error":
			result.Err = pkgerrors.Errorf("stream error: %s", ev.Error)
			result.Elapsed = time.Since(start)
			return result
		}
	}
	if err := scanner.Err(); err != nil {
		result.Err = err
	} else {
		result.Err = pkgerrors.New("stream ended without completion event")
	}
	result.Elapsed = time.Since(start)
	return result
}

// RunConcurrent fires total requests with the given concurrency and returns
// the aggregated metrics. Individual request failures are recorded, not
// fatal.
func (c *Client) RunConcurrent(ctx context.Context, total, concurrency int, message string) *Metrics {
	if concurrency <= 0 {
		concurrency = 1
	}

	m := NewMetrics()
	m.Start()

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for i := 0; i < total; i++ {
		i := i
		g.Go(func() error {
			res := c.SendChat(ctx, fmt.Sprintf("%s #%d", message, i), "")
			m.Record(res)
			return nil
		})
	}
	_ = g.Wait()
	m.Stop()
	return m
}

// RampPhase is the outcome of one ramp-up phase.
type RampPhase struct {
	Concurrency int
	Metrics     *Metrics
}

// RunRampUp runs successive phases with increasing concurrency, stopping
// early when the success rate of a phase falls below minSuccessRate.
func (c *Client) RunRampUp(ctx context.Context, phases []int, perPhase int, message string, minSuccessRate float64) ([]RampPhase, error) {
	var reports []RampPhase
	for _, concurrency := range phases {
		m := c.RunConcurrent(ctx, perPhase, concurrency, message)
		reports = append(reports, RampPhase{Concurrency: concurrency, Metrics: m})

		if m.SuccessRate() < minSuccessRate {
			return reports, pkgerrors.Errorf(
				"phase with concurrency %d fell below %.1f%% success rate", concurrency, minSuccessRate)
		}
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
	}
	return reports, nil
}
