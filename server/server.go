// Package server assembles the gateway: conversation store, streaming
// engine, metrics registry, eviction job and the Echo HTTP surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	pkgerrors "github.com/pkg/errors"

	"github.com/hrygo/chatgate/chat/conversation"
	"github.com/hrygo/chatgate/chat/generator"
	"github.com/hrygo/chatgate/chat/metrics"
	"github.com/hrygo/chatgate/chat/stream"
	"github.com/hrygo/chatgate/internal/profile"
	gwmiddleware "github.com/hrygo/chatgate/server/middleware"
	apiv1 "github.com/hrygo/chatgate/server/router/api/v1"
)

// shutdownTimeout bounds graceful connection draining on stop.
const shutdownTimeout = 10 * time.Second

// Server is the assembled gateway process.
type Server struct {
	Profile  *profile.Profile
	Store    *conversation.Store
	Engine   *stream.Engine
	Registry *metrics.Registry

	echoServer *echo.Echo
	eviction   *conversation.EvictionJob
}

// NewServer constructs the gateway from a validated profile.
func NewServer(p *profile.Profile) (*Server, error) {
	store := conversation.NewStore(conversation.Options{
		MaxHistory:       p.MaxHistory,
		MaxConversations: p.MaxConversations,
	})
	registry := metrics.NewRegistry(metrics.DefaultWindowSize)

	producer, err := newProducer(p)
	if err != nil {
		return nil, err
	}

	engine := stream.NewEngine(store, producer, registry, stream.EngineOptions{
		Session: stream.SessionOptions{
			Pacing:  p.ResponseDelay,
			Timeout: p.SessionTimeout,
		},
		MaxSessions: int64(p.MaxSessions),
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(gwmiddleware.RequestLogger())

	apiService := apiv1.NewAPIV1Service(p, store, engine, registry)
	apiService.RegisterRoutes(e)

	return &Server{
		Profile:    p,
		Store:      store,
		Engine:     engine,
		Registry:   registry,
		echoServer: e,
		eviction: conversation.NewEvictionJob(store, conversation.EvictionConfig{
			IdleTTL:  p.IdleTTL,
			Interval: p.EvictionInterval,
		}),
	}, nil
}

func newProducer(p *profile.Profile) (stream.Producer, error) {
	switch p.Producer {
	case "openai":
		return generator.NewOpenAI(&generator.OpenAIConfig{
			BaseURL: p.OpenAIBaseURL,
			APIKey:  p.OpenAIAPIKey,
			Model:   p.OpenAIModel,
		}), nil
	case "scripted":
		return generator.NewScripted(), nil
	default:
		return nil, pkgerrors.Errorf("unsupported producer: %s", p.Producer)
	}
}

// Start runs the HTTP server and the eviction job until ctx is done, then
// drains connections gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.eviction.Start(ctx)
	defer s.eviction.Stop()

	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := s.echoServer.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("gateway started",
		"addr", addr,
		"mode", s.Profile.Mode,
		"producer", s.Profile.Producer)

	select {
	case err := <-errCh:
		return pkgerrors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		return pkgerrors.Wrap(err, "graceful shutdown failed")
	}
	slog.Info("gateway stopped")
	return nil
}
