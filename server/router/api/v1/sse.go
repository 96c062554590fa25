package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/chatgate/chat/stream"
)

// sseSink adapts an HTTP response to the stream.Sink interface, framing each
// event as a Server-Sent Events block. Headers are written lazily on the
// first event so synchronous start failures can still produce a plain JSON
// error response.
type sseSink struct {
	ctx  context.Context
	resp *echo.Response

	mu      sync.Mutex
	started bool
}

func newSSESink(ctx context.Context, resp *echo.Response) *sseSink {
	return &sseSink{ctx: ctx, resp: resp}
}

// Send implements stream.Sink.
func (s *sseSink) Send(ev stream.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctx.Err(); err != nil {
		return err
	}
	s.writeHeadersLocked()

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.resp, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	s.resp.Flush()
	return nil
}

// Context implements stream.Sink; it is done when the client disconnects.
func (s *sseSink) Context() context.Context {
	return s.ctx
}

// Ping writes an SSE comment to keep intermediaries from timing out the
// connection. Failures are reported but harmless: the session notices the
// dead peer through its context.
func (s *sseSink) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctx.Err(); err != nil {
		return err
	}
	s.writeHeadersLocked()
	if _, err := fmt.Fprint(s.resp, ": ping\n\n"); err != nil {
		return err
	}
	s.resp.Flush()
	return nil
}

func (s *sseSink) writeHeadersLocked() {
	if s.started {
		return
	}
	header := s.resp.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	s.resp.WriteHeader(http.StatusOK)
	s.started = true
}
