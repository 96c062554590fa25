package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/chatgate/chat/conversation"
	gwerrors "github.com/hrygo/chatgate/internal/errors"
)

func TestStartSessionRejectsBlankMessage(t *testing.T) {
	f := newTestFixture(chunkProducer("reply"), EngineOptions{})

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := f.engine.StartSession(context.Background(), "", msg, newTestSink())
		require.Error(t, err)
		assert.True(t, gwerrors.IsCode(err, gwerrors.ErrCodeInvalidArgument))
	}

	// A rejected start must not leak a slot or touch the counters.
	snap := f.registry.Snapshot()
	assert.EqualValues(t, 0, snap.TotalRequests)
	assert.EqualValues(t, 0, snap.ActiveSessions)
	assert.Equal(t, 0, f.store.Len())
}

func TestStartSessionCapacity(t *testing.T) {
	f := newTestFixture(stalledProducer(), EngineOptions{MaxSessions: 1})

	blockedSink := newTestSink()
	blocked, err := f.engine.StartSession(context.Background(), "", "hold the slot", blockedSink)
	require.NoError(t, err)

	_, err = f.engine.StartSession(context.Background(), "", "no room", newTestSink())
	require.Error(t, err)
	assert.True(t, gwerrors.IsCode(err, gwerrors.ErrCodeCapacityExceeded))

	// Releasing the slot makes room again.
	blockedSink.cancel()
	waitDone(t, blocked)

	next, err := f.engine.StartSession(context.Background(), "", "try again", newTestSink())
	require.NoError(t, err)
	waitDone(t, next)
}

func TestStartSessionHistorySnapshotExcludesConcurrentAppends(t *testing.T) {
	var got []conversation.Message
	producer := ProducerFunc(func(ctx context.Context, history []conversation.Message, _ string) (<-chan string, <-chan error) {
		got = history
		return chunkProducer("ok")(ctx, history, "")
	})
	f := newTestFixture(producer, EngineOptions{})

	conv, _, err := f.store.GetOrCreate("c1")
	require.NoError(t, err)
	require.NoError(t, f.store.Append(conv.ID(), conversation.RoleUser, "earlier"))
	require.NoError(t, f.store.Append(conv.ID(), conversation.RoleAssistant, "earlier reply"))

	s, err := f.engine.StartSession(context.Background(), "c1", "now", newTestSink())
	require.NoError(t, err)
	waitDone(t, s)

	// The producer sees prior turns plus the new user message, nothing later.
	require.Len(t, got, 3)
	assert.Equal(t, "earlier", got[0].Content)
	assert.Equal(t, "earlier reply", got[1].Content)
	assert.Equal(t, "now", got[2].Content)
}

func TestEngineConcurrentSessionsMixedOutcomes(t *testing.T) {
	const (
		total      = 100
		nFailed    = 33
		nCancelled = 33
		nCompleted = total - nFailed - nCancelled
	)

	producer := ProducerFunc(func(ctx context.Context, history []conversation.Message, msg string) (<-chan string, <-chan error) {
		if strings.HasPrefix(msg, "fail") {
			return failingProducer(errors.New("boom"))(ctx, history, msg)
		}
		return chunkProducer("a", "b", "c")(ctx, history, msg)
	})
	f := newTestFixture(producer, EngineOptions{
		Session:     SessionOptions{Pacing: time.Millisecond},
		MaxSessions: total,
	})

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		msg := fmt.Sprintf("ok-%d", i)
		sink := newTestSink()
		switch {
		case i < nFailed:
			msg = fmt.Sprintf("fail-%d", i)
		case i < nFailed+nCancelled:
			sink.cancelAfterChunks = 1
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := f.engine.StartSession(context.Background(), "", msg, sink)
			if err != nil {
				t.Error(err)
				return
			}
			select {
			case <-s.Done():
			case <-time.After(10 * time.Second):
				t.Errorf("session %s did not reach a terminal state", s.ID())
			}
		}()
	}
	wg.Wait()

	snap := f.registry.Snapshot()
	assert.EqualValues(t, 0, snap.ActiveSessions)
	assert.EqualValues(t, total, snap.TotalRequests)
	assert.EqualValues(t, nCompleted, snap.TotalCompletions)
	assert.EqualValues(t, nFailed, snap.TotalErrors)
	assert.EqualValues(t, nCancelled, snap.TotalCancellations)
	assert.Equal(t, total, snap.SampleCount)
}

func TestEngineHistoryUnknownConversation(t *testing.T) {
	f := newTestFixture(chunkProducer("x"), EngineOptions{})

	_, err := f.engine.History("missing")
	assert.True(t, gwerrors.IsCode(err, gwerrors.ErrCodeNotFound))
}
