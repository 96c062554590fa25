// Package conversation owns the in-memory conversation records of the
// gateway: creation on demand, bounded append-only history and idle eviction,
// all safe under concurrent access from many streaming sessions.
package conversation

import (
	"sync"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message sent by the caller.
	RoleUser Role = "user"
	// RoleAssistant marks a generated reply.
	RoleAssistant Role = "assistant"
)

// Message is a single immutable entry in a conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a bounded, ordered message history identified by an opaque
// id. All mutation goes through the owning Store, which serializes access per
// conversation via mu.
type Conversation struct {
	id        string
	createdAt time.Time

	mu           sync.Mutex
	messages     []Message
	lastActiveAt time.Time
}

func newConversation(id string, now time.Time) *Conversation {
	return &Conversation{
		id:           id,
		createdAt:    now,
		lastActiveAt: now,
	}
}

// ID returns the conversation's opaque identifier.
func (c *Conversation) ID() string {
	return c.id
}

// CreatedAt returns the creation time.
func (c *Conversation) CreatedAt() time.Time {
	return c.createdAt
}

// LastActiveAt returns the time of the most recent append.
func (c *Conversation) LastActiveAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActiveAt
}

// Len returns the current message count.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// append adds a message and trims the oldest entries beyond maxHistory.
// Caller-facing access is through Store.Append.
func (c *Conversation) append(msg Message, maxHistory int, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	if maxHistory > 0 && len(c.messages) > maxHistory {
		// FIFO trim, keep the most recent maxHistory entries.
		c.messages = append(c.messages[:0:0], c.messages[len(c.messages)-maxHistory:]...)
	}
	c.lastActiveAt = now
}

// history returns a snapshot copy of the ordered message sequence.
func (c *Conversation) history() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// idleSince reports whether the conversation has seen no appends since cutoff.
func (c *Conversation) idleSince(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActiveAt.Before(cutoff)
}
