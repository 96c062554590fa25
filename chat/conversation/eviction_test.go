package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictionJobRunOnce(t *testing.T) {
	now := time.Unix(0, 0)
	store := NewStore(Options{Now: func() time.Time { return now }})

	_, _, err := store.GetOrCreate("old")
	require.NoError(t, err)

	now = now.Add(3 * time.Hour)
	_, _, err = store.GetOrCreate("new")
	require.NoError(t, err)

	job := NewEvictionJob(store, EvictionConfig{IdleTTL: time.Hour, Interval: time.Minute})

	assert.Equal(t, 1, job.RunOnce())
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 0, job.RunOnce())
}

func TestEvictionJobStartStop(t *testing.T) {
	store := NewStore(Options{})
	job := NewEvictionJob(store, DefaultEvictionConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.False(t, job.IsRunning())

	job.Start(ctx)
	assert.True(t, job.IsRunning())

	// Starting twice is a no-op.
	job.Start(ctx)
	assert.True(t, job.IsRunning())

	job.Stop()
	assert.False(t, job.IsRunning())

	// Stopping twice is a no-op.
	job.Stop()
}

func TestEvictionJobTicks(t *testing.T) {
	now := time.Unix(0, 0)
	store := NewStore(Options{Now: func() time.Time { return now.Add(2 * time.Hour) }})

	_, _, err := store.GetOrCreate("stale")
	require.NoError(t, err)
	// Force the recorded creation time back before the TTL window.
	conv, _ := store.get("stale")
	conv.mu.Lock()
	conv.lastActiveAt = now
	conv.mu.Unlock()

	job := NewEvictionJob(store, EvictionConfig{IdleTTL: time.Hour, Interval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job.Start(ctx)
	defer job.Stop()

	deadline := time.After(2 * time.Second)
	for store.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("eviction job never removed the stale conversation")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
