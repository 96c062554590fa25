package stream

import "context"

// Sink represents the caller's open connection. Events for a single session
// are written in order; no two sessions share a sink.
//
// Send reports a write failure when the peer can no longer accept events.
// Context is done once the underlying connection closes, so waits on the
// producer or on pacing delays can be interrupted promptly rather than only
// on the next write attempt.
type Sink interface {
	Send(ev Event) error
	Context() context.Context
}
