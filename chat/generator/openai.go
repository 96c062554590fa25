package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/chatgate/chat/conversation"
)

// OpenAIConfig holds the OpenAI-compatible provider configuration.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// DefaultOpenAIConfig returns the default configuration.
func DefaultOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "gpt-4o-mini",
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

// OpenAI produces replies via an OpenAI-compatible chat completion API,
// streaming deltas as they arrive. Opening the stream is retried with
// exponential backoff; once tokens flow, a failure is surfaced as-is.
type OpenAI struct {
	client *openai.Client
	config *OpenAIConfig
}

// NewOpenAI creates an OpenAI-backed producer.
func NewOpenAI(cfg *OpenAIConfig) *OpenAI {
	if cfg == nil {
		cfg = DefaultOpenAIConfig()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Generate implements stream.Producer.
func (p *OpenAI) Generate(ctx context.Context, history []conversation.Message, userMessage string) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		llmStream, err := p.openStream(ctx, history)
		if err != nil {
			errs <- err
			return
		}
		defer llmStream.Close()

		for {
			resp, err := llmStream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- delta:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return out, errs
}

// openStream converts the history (which already includes the new user
// message) and opens the completion stream with retry.
func (p *OpenAI) openStream(ctx context.Context, history []conversation.Message) (*openai.ChatCompletionStream, error) {
	messages := make([]openai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:    p.config.Model,
		Messages: messages,
		Stream:   true,
	}

	var (
		llmStream *openai.ChatCompletionStream
		lastErr   error
	)
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		llmStream, lastErr = p.client.CreateChatCompletionStream(ctx, req)
		if lastErr == nil {
			return llmStream, nil
		}
		if attempt < p.config.MaxRetries-1 {
			waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			slog.Debug("chat completion request failed, retrying",
				"attempt", attempt+1,
				"wait_time", waitTime,
				"error", lastErr)
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}
