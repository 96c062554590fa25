// Package v1 exposes the gateway's HTTP surface: the SSE chat endpoint,
// conversation history access, health and metrics reporting.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/chatgate/chat/conversation"
	"github.com/hrygo/chatgate/chat/metrics"
	"github.com/hrygo/chatgate/chat/stream"
	"github.com/hrygo/chatgate/internal/profile"
	gwerrors "github.com/hrygo/chatgate/internal/errors"
	gwmiddleware "github.com/hrygo/chatgate/server/middleware"
)

// APIV1Service wires the streaming engine into the HTTP routing layer.
type APIV1Service struct {
	Profile  *profile.Profile
	Store    *conversation.Store
	Engine   *stream.Engine
	Registry *metrics.Registry

	limiter *gwmiddleware.RateLimiter
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(p *profile.Profile, store *conversation.Store, engine *stream.Engine, registry *metrics.Registry) *APIV1Service {
	var limiter *gwmiddleware.RateLimiter
	if p.RateLimitRPS > 0 {
		limiter = gwmiddleware.NewRateLimiter(p.RateLimitRPS, p.RateLimitBurst)
	}
	return &APIV1Service{
		Profile:  p,
		Store:    store,
		Engine:   engine,
		Registry: registry,
		limiter:  limiter,
	}
}

// RegisterRoutes registers all v1 routes with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.GET("/", s.TestClientPage)
	echoServer.GET("/healthz", s.HealthCheck)

	apiGroup := echoServer.Group("/api/v1")
	apiGroup.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}))
	if s.limiter != nil {
		apiGroup.Use(s.limiter.Middleware())
	}

	apiGroup.POST("/chat", s.Chat)
	apiGroup.GET("/conversations/:id/history", s.GetConversationHistory)
	apiGroup.DELETE("/conversations/:id", s.DeleteConversation)
	apiGroup.GET("/metrics", s.GetMetrics)
}

// httpStatusOf maps a gateway error to an HTTP status code.
func httpStatusOf(err error) int {
	switch gwerrors.CodeOf(err, gwerrors.ErrCodeInternal) {
	case gwerrors.ErrCodeNotFound:
		return http.StatusNotFound
	case gwerrors.ErrCodeCapacityExceeded, gwerrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case gwerrors.ErrCodeInvalidArgument:
		return http.StatusUnprocessableEntity
	case gwerrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorJSON renders a gateway error as a stable, non-sensitive JSON body.
func errorJSON(c echo.Context, err error) error {
	return c.JSON(httpStatusOf(err), map[string]string{
		"code":  string(gwerrors.CodeOf(err, gwerrors.ErrCodeInternal)),
		"error": err.Error(),
	})
}
