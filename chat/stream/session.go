package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hrygo/chatgate/chat/conversation"
	"github.com/hrygo/chatgate/chat/metrics"
	gwerrors "github.com/hrygo/chatgate/internal/errors"
)

// State is the lifecycle state of a Session.
type State int32

const (
	// StateStarting is the initial state before the connection ack is sent.
	StateStarting State = iota
	// StateStreaming means content events are being delivered.
	StateStreaming
	// StateCompleted is terminal: the full reply was delivered and persisted.
	StateCompleted
	// StateFailed is terminal: the producer or sink raised an error.
	StateFailed
	// StateCancelled is terminal: the peer disconnected mid-stream.
	StateCancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is the runtime activity of producing and delivering one reply. It
// is owned exclusively by the request-handling goroutine that started it;
// State, Err and Done are safe to read from other goroutines.
type Session struct {
	id             string
	conversationID string
	userMessage    string
	history        []conversation.Message

	store    *conversation.Store
	registry *metrics.Registry
	producer Producer
	sink     Sink
	clock    Clock
	opts     SessionOptions

	state   atomic.Int32
	err     atomic.Value // error
	done    chan struct{}
	release func()
}

// ID returns the per-activation session id.
func (s *Session) ID() string {
	return s.id
}

// ConversationID returns the bound conversation id.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Err returns the terminal error, if any. Nil for completed and cancelled
// sessions unless the cancellation carried a sink error.
func (s *Session) Err() error {
	if v := s.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Session) setErr(err error) {
	if err != nil {
		s.err.Store(err)
	}
}

// run drives the session to exactly one terminal state. The deferred block
// is the single release point for the metrics gauge and the concurrency
// slot, covering every exit path including panics out of the sink.
func (s *Session) run(ctx context.Context) {
	if s.conversationID == "" {
		// Session started without a resolved conversation: engine bug.
		panic("stream: session started without a bound conversation")
	}

	started := s.clock.Now()
	outcome := metrics.OutcomeFailed

	defer func() {
		s.registry.RecordTerminal(outcome, s.clock.Now().Sub(started))
		if s.release != nil {
			s.release()
		}
		close(s.done)
	}()

	sinkCtx := s.sink.Context()

	ack := Event{
		Type:           EventConnected,
		ConversationID: s.conversationID,
		SessionID:      s.id,
		Timestamp:      s.clock.Now(),
	}
	if err := s.sink.Send(ack); err != nil {
		outcome = s.cancel(err)
		return
	}
	s.setState(StateStreaming)

	genCtx, cancelGen := context.WithCancel(ctx)
	defer cancelGen()
	chunks, errs := s.producer.Generate(genCtx, s.history, s.userMessage)

	var timeoutCh <-chan time.Time
	if s.opts.Timeout > 0 {
		timeoutCh = s.clock.After(s.opts.Timeout)
	}

	var buf strings.Builder
	chunkIndex := 0

	for chunks != nil || errs != nil {
		select {
		case <-ctx.Done():
			outcome = s.cancel(ctx.Err())
			return
		case <-sinkCtx.Done():
			outcome = s.cancel(sinkCtx.Err())
			return
		case <-timeoutCh:
			outcome = s.fail(gwerrors.Timeout("reply generation exceeded session timeout"))
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				outcome = s.fail(gwerrors.ProducerFailure("text generation failed", err))
				return
			}
		case text, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			ev := Event{
				Type:           EventMessage,
				ConversationID: s.conversationID,
				SessionID:      s.id,
				Content:        text,
				ChunkIndex:     chunkIndex,
				Timestamp:      s.clock.Now(),
			}
			if err := s.sink.Send(ev); err != nil {
				outcome = s.cancel(err)
				return
			}
			buf.WriteString(text)
			chunkIndex++

			// Inter-chunk pacing, interruptible by disconnect or timeout.
			if s.opts.Pacing > 0 {
				select {
				case <-s.clock.After(s.opts.Pacing):
				case <-ctx.Done():
					outcome = s.cancel(ctx.Err())
					return
				case <-sinkCtx.Done():
					outcome = s.cancel(sinkCtx.Err())
					return
				case <-timeoutCh:
					outcome = s.fail(gwerrors.Timeout("reply generation exceeded session timeout"))
					return
				}
			}
		}
	}

	// Producer finished cleanly: completion event first, then persistence,
	// so a vanished peer never leaves a reply the caller did not observe.
	full := buf.String()
	completed := Event{
		Type:           EventCompleted,
		ConversationID: s.conversationID,
		SessionID:      s.id,
		Content:        full,
		TotalChunks:    chunkIndex,
		Timestamp:      s.clock.Now(),
	}
	if err := s.sink.Send(completed); err != nil {
		outcome = s.cancel(err)
		return
	}

	if err := s.store.Append(s.conversationID, conversation.RoleAssistant, full); err != nil {
		// Conversation evicted or deleted mid-stream.
		outcome = s.fail(err)
		return
	}

	s.setState(StateCompleted)
	outcome = metrics.OutcomeCompleted
	slog.Debug("stream session completed",
		"session_id", s.id,
		"conversation_id", s.conversationID,
		"chunks", chunkIndex)
}

// cancel transitions to the cancelled terminal state. No event is emitted:
// the peer is gone, there is no one left to receive it.
func (s *Session) cancel(cause error) metrics.Outcome {
	s.setState(StateCancelled)
	s.setErr(gwerrors.SinkClosed(cause))
	slog.Debug("stream session cancelled",
		"session_id", s.id,
		"conversation_id", s.conversationID)
	return metrics.OutcomeCancelled
}

// fail transitions to the failed terminal state, emitting a best-effort
// error event. Partial accumulated text is not persisted. Secondary failures
// writing the error event are swallowed.
func (s *Session) fail(cause error) metrics.Outcome {
	s.setState(StateFailed)
	s.setErr(cause)

	ev := Event{
		Type:           EventError,
		ConversationID: s.conversationID,
		SessionID:      s.id,
		Error:          string(gwerrors.CodeOf(cause, gwerrors.ErrCodeInternal)),
		Timestamp:      s.clock.Now(),
	}
	if err := s.sink.Send(ev); err != nil {
		slog.Debug("error event dropped, sink already closed", "session_id", s.id)
	}

	slog.Warn("stream session failed",
		"session_id", s.id,
		"conversation_id", s.conversationID,
		"error", cause.Error())
	return metrics.OutcomeFailed
}
