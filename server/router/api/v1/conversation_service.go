package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/chatgate/chat/conversation"
)

// maxHistoryLimit caps the limit query parameter of the history endpoint.
const maxHistoryLimit = 100

// MessageView is the JSON shape of one history entry.
type MessageView struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// GetConversationHistory handles GET /api/v1/conversations/:id/history.
// The optional limit query parameter (1-100) returns only the most recent
// messages.
func (s *APIV1Service) GetConversationHistory(c echo.Context) error {
	id := c.Param("id")

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "limit must be an integer between 1 and 100",
			})
		}
		limit = n
	}

	history, err := s.Engine.History(id)
	if err != nil {
		return errorJSON(c, err)
	}
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	return c.JSON(http.StatusOK, toMessageViews(history))
}

// DeleteConversation handles DELETE /api/v1/conversations/:id. Idempotent:
// deleting an unknown conversation succeeds.
func (s *APIV1Service) DeleteConversation(c echo.Context) error {
	s.Store.Delete(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func toMessageViews(history []conversation.Message) []MessageView {
	views := make([]MessageView, len(history))
	for i, msg := range history {
		views[i] = MessageView{
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
	}
	return views
}
