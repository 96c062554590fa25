package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultIdleTTL is the default inactivity window before a conversation
	// is evicted.
	DefaultIdleTTL = 24 * time.Hour
	// DefaultEvictionInterval is the default cadence between eviction scans.
	DefaultEvictionInterval = 10 * time.Minute
)

// EvictionConfig holds configuration for the idle-eviction job.
type EvictionConfig struct {
	IdleTTL  time.Duration // inactivity window before removal (default: 24h)
	Interval time.Duration // interval between scans (default: 10m)
}

// DefaultEvictionConfig returns the default eviction configuration.
func DefaultEvictionConfig() EvictionConfig {
	return EvictionConfig{
		IdleTTL:  DefaultIdleTTL,
		Interval: DefaultEvictionInterval,
	}
}

// EvictionJob periodically removes idle conversations from a Store.
type EvictionJob struct {
	store  *Store
	config EvictionConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewEvictionJob creates an eviction job for the given store.
func NewEvictionJob(store *Store, config EvictionConfig) *EvictionJob {
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultIdleTTL
	}
	if config.Interval <= 0 {
		config.Interval = DefaultEvictionInterval
	}
	return &EvictionJob{
		store:  store,
		config: config,
	}
}

// Start begins the periodic eviction job. Non-blocking; the scan runs in a
// goroutine until Stop is called or ctx is done.
func (j *EvictionJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return
	}
	j.running = true
	j.stopChan = make(chan struct{})

	go j.run(ctx)

	slog.Info("conversation eviction job started",
		"idle_ttl", j.config.IdleTTL,
		"interval", j.config.Interval)
}

// Stop stops the eviction job.
func (j *EvictionJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}
	close(j.stopChan)
	j.running = false

	slog.Info("conversation eviction job stopped")
}

// RunOnce executes a single eviction scan immediately.
func (j *EvictionJob) RunOnce() int {
	return j.store.EvictIdle(j.store.opts.Now(), j.config.IdleTTL)
}

// IsRunning reports whether the job is currently running.
func (j *EvictionJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *EvictionJob) run(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopChan:
			return
		case <-ticker.C:
			if removed := j.RunOnce(); removed > 0 {
				slog.Info("idle conversations evicted", "removed", removed)
			}
		}
	}
}
