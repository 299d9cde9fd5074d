package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"github.com/athenalab/kgrag/pkg/models"
)

// ClientConfig configures a chat-completion client.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	// Limiter caps in-flight requests. Clients for different models may
	// share one limiter so the cap stays global. Nil means no cap.
	Limiter *semaphore.Weighted
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	limiter *semaphore.Weighted
}

// NewClient creates a chat client for the given endpoint.
func NewClient(cfg ClientConfig) *Client {
	api := openai.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		oc.BaseURL = cfg.BaseURL
		api = openai.NewClientWithConfig(oc)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &Client{api: api, model: cfg.Model, timeout: timeout, limiter: cfg.Limiter}
}

// Model returns the default model name for this client.
func (c *Client) Model() string { return c.model }

// Complete performs a non-streaming completion.
func (c *Client) Complete(ctx context.Context, messages []models.Message, opts Options) (Completion, error) {
	if err := acquire(ctx, c.limiter); err != nil {
		return Completion{}, err
	}
	defer release(c.limiter)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, c.buildRequest(messages, opts, false))
	if err != nil {
		return Completion{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("chat completion returned no choices")
	}
	msg := resp.Choices[0].Message
	return Completion{Content: msg.Content, Reasoning: msg.ReasoningContent}, nil
}

// Stream performs a streaming completion. The returned channel is closed when
// the stream ends; a mid-stream failure is delivered as a final chunk with Err
// set.
func (c *Client) Stream(ctx context.Context, messages []models.Message, opts Options) (<-chan StreamChunk, error) {
	if err := acquire(ctx, c.limiter); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	stream, err := c.api.CreateChatCompletionStream(ctx, c.buildRequest(messages, opts, true))
	if err != nil {
		cancel()
		release(c.limiter)
		return nil, fmt.Errorf("failed to open completion stream: %w", err)
	}

	out := make(chan StreamChunk, 100)
	go func() {
		defer close(out)
		defer release(c.limiter)
		defer cancel()
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case out <- StreamChunk{Err: fmt.Errorf("stream read failed: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta
			if delta.ReasoningContent != "" {
				if !send(ctx, out, StreamChunk{Scope: ScopeReasoning, Delta: delta.ReasoningContent}) {
					return
				}
			}
			if delta.Content != "" {
				if !send(ctx, out, StreamChunk{Scope: ScopeContent, Delta: delta.Content}) {
					return
				}
			}
		}
	}()

	return out, nil
}

func send(ctx context.Context, out chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) buildRequest(messages []models.Message, opts Options, stream bool) openai.ChatCompletionRequest {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(messages),
		Stream:   stream,
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	return req
}

func convertMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
		if msg.Role == models.RoleTool {
			m.ToolCallID = msg.ToolCallID
		}
		out = append(out, m)
	}
	return out
}

func acquire(ctx context.Context, limiter *semaphore.Weighted) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for llm slot: %w", err)
	}
	return nil
}

func release(limiter *semaphore.Weighted) {
	if limiter != nil {
		limiter.Release(1)
	}
}
