// Package generator provides text producers for the streaming engine: a
// scripted canned producer for demos and load tests, and an OpenAI-backed
// producer for real replies.
package generator

import (
	"context"
	"strings"

	"github.com/hrygo/chatgate/chat/conversation"
)

// defaultScript is the canned reply used when no script is configured. The
// {message} placeholder is replaced by the incoming user message.
var defaultScript = []string{
	"Received your message: {message}. ",
	"Thinking about how to respond... ",
	"This reply is being streamed back in chunks ",
	"so you can render it incrementally. ",
	"Thanks for your patience!",
}

// Scripted emits a fixed sequence of chunks per request. It stands in for a
// real model during development and load testing.
type Scripted struct {
	script []string
}

// NewScripted creates a scripted producer. With no arguments the default
// script is used.
func NewScripted(script ...string) *Scripted {
	if len(script) == 0 {
		script = defaultScript
	}
	return &Scripted{script: script}
}

// Generate implements stream.Producer.
func (p *Scripted) Generate(ctx context.Context, _ []conversation.Message, userMessage string) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)
		for _, tmpl := range p.script {
			text := strings.ReplaceAll(tmpl, "{message}", userMessage)
			select {
			case out <- text:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return out, errs
}
