// Package stream drives one reply-generation-and-delivery lifecycle per
// request: it pulls text increments from a Producer, packages them into
// ordered protocol events, writes them to the caller's Sink with inter-chunk
// pacing, and finalizes conversation state and metrics exactly once
// regardless of outcome.
package stream

import "time"

// Event types observed by the sink. This is the only externally visible wire
// protocol owned by the engine.
const (
	// EventConnected acknowledges the session and carries the conversation id.
	EventConnected = "connected"
	// EventMessage carries one text increment of the reply.
	EventMessage = "message"
	// EventCompleted is the final event of a successful session and carries
	// the full accumulated text and chunk count.
	EventCompleted = "completed"
	// EventError reports a mid-stream failure and ends the session.
	EventError = "error"
)

// Event is one ordered protocol event delivered to a Sink.
type Event struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	Content        string    `json:"content,omitempty"`
	Error          string    `json:"error,omitempty"`
	ChunkIndex     int       `json:"chunk_index,omitempty"`
	TotalChunks    int       `json:"total_chunks,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
