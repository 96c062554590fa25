package v1

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/chatgate/chat/conversation"
	"github.com/hrygo/chatgate/chat/generator"
	"github.com/hrygo/chatgate/chat/metrics"
	"github.com/hrygo/chatgate/chat/stream"
	"github.com/hrygo/chatgate/internal/profile"
)

func newTestServer(t *testing.T, p *profile.Profile, producer stream.Producer) (*httptest.Server, *APIV1Service) {
	t.Helper()
	if p == nil {
		p = profile.Default()
		p.ResponseDelay = 0
		p.RateLimitRPS = 0 // limiter off unless a test opts in
	}
	if producer == nil {
		producer = generator.NewScripted("Hello ", "from ", "the gateway")
	}

	store := conversation.NewStore(conversation.Options{MaxHistory: p.MaxHistory})
	registry := metrics.NewRegistry(0)
	engine := stream.NewEngine(store, producer, registry, stream.EngineOptions{
		Session: stream.SessionOptions{
			Pacing:  p.ResponseDelay,
			Timeout: p.SessionTimeout,
		},
		MaxSessions: int64(p.MaxSessions),
	})

	svc := NewAPIV1Service(p, store, engine, registry)
	e := echo.New()
	svc.RegisterRoutes(e)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, svc
}

// sseEvent is one parsed Server-Sent Events block.
type sseEvent struct {
	Name string
	Data map[string]any
}

func parseSSE(t *testing.T, body io.Reader) []sseEvent {
	t.Helper()
	var (
		events []sseEvent
		cur    sseEvent
	)
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.Data = map[string]any{}
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &cur.Data))
		case line == "":
			if cur.Name != "" || cur.Data != nil {
				events = append(events, cur)
				cur = sseEvent{}
			}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func postChat(t *testing.T, srv *httptest.Server, message, conversationID string) *http.Response {
	t.Helper()
	form := url.Values{"message": {message}}
	if conversationID != "" {
		form.Set("conversation_id", conversationID)
	}
	resp, err := http.PostForm(srv.URL+"/api/v1/chat", form)
	require.NoError(t, err)
	return resp
}

func TestChatStreamsReply(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp := postChat(t, srv, "hi", "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	events := parseSSE(t, resp.Body)
	require.Len(t, events, 5)

	assert.Equal(t, "connected", events[0].Name)
	conversationID, _ := events[0].Data["conversation_id"].(string)
	require.NotEmpty(t, conversationID)

	for i, chunk := range []string{"Hello ", "from ", "the gateway"} {
		ev := events[i+1]
		assert.Equal(t, "message", ev.Name)
		assert.Equal(t, chunk, ev.Data["content"])
	}

	completed := events[4]
	assert.Equal(t, "completed", completed.Name)
	assert.Equal(t, "Hello from the gateway", completed.Data["content"])
	assert.EqualValues(t, 3, completed.Data["total_chunks"])
}

func TestChatContinuesConversation(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp := postChat(t, srv, "first", "")
	events := parseSSE(t, resp.Body)
	resp.Body.Close()
	require.NotEmpty(t, events)
	conversationID := events[0].Data["conversation_id"].(string)

	resp = postChat(t, srv, "second", conversationID)
	events = parseSSE(t, resp.Body)
	resp.Body.Close()
	require.NotEmpty(t, events)
	assert.Equal(t, conversationID, events[0].Data["conversation_id"])

	histResp, err := http.Get(srv.URL + "/api/v1/conversations/" + conversationID + "/history")
	require.NoError(t, err)
	defer histResp.Body.Close()
	require.Equal(t, http.StatusOK, histResp.StatusCode)

	var history []MessageView
	require.NoError(t, json.NewDecoder(histResp.Body).Decode(&history))
	require.Len(t, history, 4)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, "user", history[2].Role)
	assert.Equal(t, "second", history[2].Content)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp := postChat(t, srv, "   ", "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(echo.HeaderContentType), "application/json")

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])
}

func TestConversationHistoryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp := postChat(t, srv, "hello", "")
	events := parseSSE(t, resp.Body)
	resp.Body.Close()
	require.NotEmpty(t, events)
	conversationID := events[0].Data["conversation_id"].(string)

	t.Run("LimitReturnsMostRecent", func(t *testing.T) {
		histResp, err := http.Get(srv.URL + "/api/v1/conversations/" + conversationID + "/history?limit=1")
		require.NoError(t, err)
		defer histResp.Body.Close()
		require.Equal(t, http.StatusOK, histResp.StatusCode)

		var history []MessageView
		require.NoError(t, json.NewDecoder(histResp.Body).Decode(&history))
		require.Len(t, history, 1)
		assert.Equal(t, "assistant", history[0].Role)
	})

	t.Run("BadLimit", func(t *testing.T) {
		for _, limit := range []string{"0", "-3", "101", "ten"} {
			histResp, err := http.Get(srv.URL + "/api/v1/conversations/" + conversationID + "/history?limit=" + limit)
			require.NoError(t, err)
			histResp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, histResp.StatusCode, "limit=%s", limit)
		}
	})

	t.Run("UnknownConversation", func(t *testing.T) {
		histResp, err := http.Get(srv.URL + "/api/v1/conversations/no-such-id/history")
		require.NoError(t, err)
		defer histResp.Body.Close()
		assert.Equal(t, http.StatusNotFound, histResp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(histResp.Body).Decode(&body))
		assert.Equal(t, "NOT_FOUND", body["code"])
	})
}

func TestDeleteConversation(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp := postChat(t, srv, "hello", "")
	events := parseSSE(t, resp.Body)
	resp.Body.Close()
	require.NotEmpty(t, events)
	conversationID := events[0].Data["conversation_id"].(string)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/conversations/"+conversationID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	histResp, err := http.Get(srv.URL + "/api/v1/conversations/" + conversationID + "/history")
	require.NoError(t, err)
	histResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, histResp.StatusCode)

	// Deleting again is still a 204.
	delResp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.NotEmpty(t, body.Version)
	assert.EqualValues(t, 0, body.ActiveSessions)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp := postChat(t, srv, "hello", "")
	_ = parseSSE(t, resp.Body)
	resp.Body.Close()

	metricsResp, err := http.Get(srv.URL + "/api/v1/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	require.Equal(t, http.StatusOK, metricsResp.StatusCode)

	var body MetricsResponse
	require.NoError(t, json.NewDecoder(metricsResp.Body).Decode(&body))
	assert.EqualValues(t, 1, body.TotalRequests)
	assert.EqualValues(t, 1, body.TotalCompletions)
	assert.EqualValues(t, 0, body.ActiveSessions)
	assert.EqualValues(t, 1, body.ActiveConversations)
	assert.EqualValues(t, 2, body.TotalMessages, "one user turn plus one assistant turn")
	assert.Equal(t, 1, body.SampleCount)
}

func TestRateLimiting(t *testing.T) {
	p := profile.Default()
	p.ResponseDelay = 0
	p.RateLimitRPS = 0.01
	p.RateLimitBurst = 1
	srv, _ := newTestServer(t, p, nil)

	first, err := http.Get(srv.URL + "/api/v1/metrics")
	require.NoError(t, err)
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Get(srv.URL + "/api/v1/metrics")
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)

	// Health and the test client page sit outside the limited group.
	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestChatStuckProducerTimesOut(t *testing.T) {
	p := profile.Default()
	p.ResponseDelay = 0
	p.RateLimitRPS = 0
	p.SessionTimeout = 50 * time.Millisecond

	stuck := stream.ProducerFunc(func(ctx context.Context, _ []conversation.Message, _ string) (<-chan string, <-chan error) {
		out := make(chan string)
		errs := make(chan error, 1)
		go func() {
			defer close(out)
			defer close(errs)
			<-ctx.Done()
		}()
		return out, errs
	})

	srv, _ := newTestServer(t, p, stuck)

	resp := postChat(t, srv, "hello", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := parseSSE(t, resp.Body)
	require.Len(t, events, 2)
	assert.Equal(t, "connected", events[0].Name)
	assert.Equal(t, "error", events[1].Name)
	assert.Equal(t, "TIMEOUT", events[1].Data["error"])
}
