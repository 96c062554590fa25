package v1

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/chatgate/internal/observability"
)

// keepaliveInterval is how often an SSE comment is written while the
// session is still streaming, so load balancers keep the connection open.
const keepaliveInterval = 30 * time.Second

// Chat handles POST /api/v1/chat: it starts a streaming session bound to the
// request connection and delivers the reply as SSE events (connected,
// message, completed, error). The handler blocks until the session reaches a
// terminal state; store-level failures before the stream opens are returned
// as plain JSON errors.
func (s *APIV1Service) Chat(c echo.Context) error {
	message := c.FormValue("message")
	conversationID := c.FormValue("conversation_id")

	reqCtx := observability.NewRequestContext(slog.Default(), conversationID)
	reqCtx.Info("chat request received",
		slog.Int(observability.LogFieldMessageLen, len(message)))

	ctx := c.Request().Context()
	sink := newSSESink(ctx, c.Response())

	session, err := s.Engine.StartSession(ctx, conversationID, message, sink)
	if err != nil {
		reqCtx.Error("chat session rejected", err)
		return errorJSON(c, err)
	}

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-session.Done():
			reqCtx.Info("chat session finished",
				slog.String(observability.LogFieldSessionID, session.ID()),
				slog.String("state", session.State().String()),
				slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
			return nil
		case <-ticker.C:
			if err := sink.Ping(); err != nil {
				// Peer is gone; wait for the session to notice and finish.
				<-session.Done()
				return nil
			}
		}
	}
}
