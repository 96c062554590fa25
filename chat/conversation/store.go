package conversation

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	gwerrors "github.com/hrygo/chatgate/internal/errors"
)

const (
	// DefaultMaxHistory is the default per-conversation message cap.
	DefaultMaxHistory = 10
	// DefaultMaxConversations is the default store-wide conversation ceiling.
	DefaultMaxConversations = 10000
)

// Options configures a Store.
type Options struct {
	// MaxHistory caps the number of retained messages per conversation.
	MaxHistory int
	// MaxConversations caps the number of live conversations; GetOrCreate
	// fails with CapacityExceeded beyond it.
	MaxConversations int
	// Now supplies the current time; defaults to time.Now. Injected for
	// deterministic tests.
	Now func() time.Time
}

// Store is a concurrency-safe mapping from conversation id to Conversation.
//
// Lock discipline: the store RWMutex guards only the id map (insert, lookup,
// remove, eviction scan) and is never held while a conversation's message
// sequence is read or mutated; each Conversation carries its own mutex. When
// both are needed the map guard is always taken first and released before the
// per-conversation guard is acquired.
type Store struct {
	opts Options

	mu            sync.RWMutex
	conversations map[string]*Conversation

	createdTotal atomic.Int64
	messageTotal atomic.Int64
}

// NewStore creates an empty store. Zero option fields fall back to defaults.
func NewStore(opts Options) *Store {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	if opts.MaxConversations <= 0 {
		opts.MaxConversations = DefaultMaxConversations
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		opts:          opts,
		conversations: make(map[string]*Conversation),
	}
}

// GetOrCreate returns the conversation with the given id, allocating a fresh
// one with a generated id when id is empty or unknown. The second return
// value reports whether a new conversation was created. Fails only with
// CapacityExceeded when the store is at its configured ceiling.
func (s *Store) GetOrCreate(id string) (*Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if conv, ok := s.conversations[id]; ok {
			return conv, false, nil
		}
	}
	if len(s.conversations) >= s.opts.MaxConversations {
		return nil, false, gwerrors.CapacityExceeded(s.opts.MaxConversations)
	}
	if id == "" {
		id = uuid.NewString()
	}
	conv := newConversation(id, s.opts.Now())
	s.conversations[id] = conv
	s.createdTotal.Add(1)
	return conv, true, nil
}

// get looks up a conversation under the read lock.
func (s *Store) get(id string) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	return conv, ok
}

// Append adds a message to an existing conversation, updating its
// last-active time and trimming history beyond the cap. Fails with NotFound
// if the id is absent; callers must GetOrCreate first.
func (s *Store) Append(id string, role Role, content string) error {
	conv, ok := s.get(id)
	if !ok {
		return gwerrors.NotFound(id)
	}
	conv.append(Message{Role: role, Content: content, Timestamp: s.opts.Now()}, s.opts.MaxHistory, s.opts.Now())
	s.messageTotal.Add(1)
	return nil
}

// History returns a snapshot copy of the ordered message sequence, never a
// live reference. Fails with NotFound if the id is absent.
func (s *Store) History(id string) ([]Message, error) {
	conv, ok := s.get(id)
	if !ok {
		return nil, gwerrors.NotFound(id)
	}
	return conv.history(), nil
}

// Delete removes a conversation. Idempotent: deleting an absent id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.conversations, id)
	s.mu.Unlock()
}

// EvictIdle removes every conversation whose last activity is older than
// now-ttl and returns the count removed. The scan collects candidates under
// the map guard, then re-checks each candidate's last-active time under its
// own lock before removal so an append racing with eviction wins.
func (s *Store) EvictIdle(now time.Time, ttl time.Duration) int {
	cutoff := now.Add(-ttl)

	s.mu.RLock()
	candidates := make([]*Conversation, 0)
	for _, conv := range s.conversations {
		candidates = append(candidates, conv)
	}
	s.mu.RUnlock()

	removed := 0
	for _, conv := range candidates {
		if !conv.idleSince(cutoff) {
			continue
		}
		s.mu.Lock()
		// Re-check membership: a concurrent Delete may have won.
		if _, ok := s.conversations[conv.id]; ok && conv.idleSince(cutoff) {
			delete(s.conversations, conv.id)
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of live conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// CreatedTotal returns the number of conversations created over the process
// lifetime.
func (s *Store) CreatedTotal() int64 {
	return s.createdTotal.Load()
}

// MessageTotal returns the number of messages appended over the process
// lifetime.
func (s *Store) MessageTotal() int64 {
	return s.messageTotal.Load()
}
