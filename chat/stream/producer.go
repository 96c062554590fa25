package stream

import (
	"context"

	"github.com/hrygo/chatgate/chat/conversation"
)

// Producer generates a reply as a lazy, finite sequence of text increments.
//
// Generate returns a content channel and an error channel. The content
// channel is closed when generation finishes; a generation failure is sent on
// the error channel before both are closed. Implementations must stop
// promptly when ctx is canceled. The engine does not care how text is
// produced.
type Producer interface {
	Generate(ctx context.Context, history []conversation.Message, userMessage string) (<-chan string, <-chan error)
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(ctx context.Context, history []conversation.Message, userMessage string) (<-chan string, <-chan error)

// Generate implements Producer.
func (f ProducerFunc) Generate(ctx context.Context, history []conversation.Message, userMessage string) (<-chan string, <-chan error) {
	return f(ctx, history, userMessage)
}
