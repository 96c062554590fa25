package stream

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/chatgate/chat/conversation"
	"github.com/hrygo/chatgate/chat/metrics"
	gwerrors "github.com/hrygo/chatgate/internal/errors"
)

const (
	// DefaultPacing is the default delay between chunk events.
	DefaultPacing = 500 * time.Millisecond
	// DefaultMaxSessions is the default ceiling on concurrent sessions.
	DefaultMaxSessions = 1000
)

// SessionOptions controls pacing and timeout behaviour of a single session.
type SessionOptions struct {
	// Pacing is the delay applied between chunk events. Zero disables pacing.
	Pacing time.Duration
	// Timeout aborts a session stuck waiting on the producer. Zero disables
	// the overall timeout.
	Timeout time.Duration
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Session SessionOptions
	// MaxSessions caps concurrently running sessions; StartSession rejects
	// further requests with CapacityExceeded.
	MaxSessions int64
	// Clock defaults to SystemClock.
	Clock Clock
}

// Engine starts and tracks streaming sessions against a conversation store,
// a text producer and a metrics registry. All collaborators are injected
// explicitly; the engine holds no ambient global state.
type Engine struct {
	store    *conversation.Store
	producer Producer
	registry *metrics.Registry
	clock    Clock
	opts     EngineOptions
	slots    *semaphore.Weighted
}

// NewEngine creates an engine. Zero option fields fall back to defaults.
func NewEngine(store *conversation.Store, producer Producer, registry *metrics.Registry, opts EngineOptions) *Engine {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	return &Engine{
		store:    store,
		producer: producer,
		registry: registry,
		clock:    opts.Clock,
		opts:     opts,
		slots:    semaphore.NewWeighted(opts.MaxSessions),
	}
}

// StartSession resolves or creates the conversation, appends the user
// message and begins streaming the reply to sink in a separate goroutine.
// It returns immediately; the session runs to a terminal state asynchronously
// and the returned handle exposes Done/State/Err.
//
// Synchronous failures: InvalidArgument for an empty message,
// CapacityExceeded when the store or the session slots are exhausted,
// NotFound never (unknown ids allocate a fresh conversation).
func (e *Engine) StartSession(ctx context.Context, conversationID, userMessage string, sink Sink) (*Session, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, gwerrors.InvalidArgument("message is required")
	}

	if !e.slots.TryAcquire(1) {
		return nil, &gwerrors.GatewayError{
			Code:    gwerrors.ErrCodeCapacityExceeded,
			Message: "active session limit reached",
		}
	}

	conv, created, err := e.store.GetOrCreate(conversationID)
	if err != nil {
		e.slots.Release(1)
		return nil, err
	}
	if err := e.store.Append(conv.ID(), conversation.RoleUser, userMessage); err != nil {
		// Only reachable if the conversation is deleted between the two
		// calls; surface it to the caller rather than streaming into a void.
		e.slots.Release(1)
		return nil, err
	}
	history, err := e.store.History(conv.ID())
	if err != nil {
		e.slots.Release(1)
		return nil, err
	}

	s := &Session{
		id:             shortuuid.New(),
		conversationID: conv.ID(),
		userMessage:    userMessage,
		history:        history,
		store:          e.store,
		registry:       e.registry,
		producer:       e.producer,
		sink:           sink,
		clock:          e.clock,
		opts:           e.opts.Session,
		done:           make(chan struct{}),
		release:        func() { e.slots.Release(1) },
	}
	s.setState(StateStarting)

	e.registry.RecordStart()

	slog.Debug("stream session starting",
		"session_id", s.id,
		"conversation_id", s.conversationID,
		"conversation_created", created)

	go s.run(ctx)
	return s, nil
}

// History returns a snapshot of the conversation's ordered messages.
func (e *Engine) History(conversationID string) ([]conversation.Message, error) {
	return e.store.History(conversationID)
}

// MetricsSnapshot returns the current metrics snapshot for reporting.
func (e *Engine) MetricsSnapshot() metrics.Snapshot {
	return e.registry.Snapshot()
}
