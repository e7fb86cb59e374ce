// ABOUTME: OpenAI chat completion client implementing Provider
// ABOUTME: Retries transient failures with exponential backoff; 4xx responses fail fast
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harper/companion/internal/logger"
	"github.com/harper/companion/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is used when neither the call nor the config names a model
	DefaultChatModel = "gpt-4o-mini"
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:     apiKey,
		ChatModel:  DefaultChatModel,
		MaxRetries: 3,
		RetryDelay: time.Second * 2,
		Timeout:    60 * time.Second,
	}
}

// OpenAIClient wraps the OpenAI API client with retry logic
type OpenAIClient struct {
	client     *openai.Client
	chatModel  string
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	log        *logger.Logger
}

var _ Provider = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	chatModel := config.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientConfig),
		chatModel:  chatModel,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
		timeout:    timeout,
		log:        logger.Nop(),
	}, nil
}

// SetLogger sets the logger used for per-call diagnostics
func (c *OpenAIClient) SetLogger(log *logger.Logger) {
	if log != nil {
		c.log = log
	}
}

// Complete sends messages to the chat completion endpoint and returns the first choice
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	if len(messages) == 0 {
		return nil, errors.New("at least one message is required")
	}

	req := openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: opts.Temperature,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.MaxOutputTokens > 0 {
		req.MaxCompletionTokens = opts.MaxOutputTokens
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	kv := []interface{}{"model", req.Model, "messages", len(messages)}
	for k, v := range opts.Metadata {
		kv = append(kv, k, v)
	}
	log := c.log.With(kv...)

	var result *Completion
	start := time.Now()
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			log.Warn("completion attempt failed", "attempt", attempt+1, "error", err)
			if !retryable(err) {
				return util.Permanent(err)
			}
			return err
		}

		if len(resp.Choices) == 0 {
			return errors.New("no completion choices returned")
		}

		choice := resp.Choices[0]
		result = &Completion{
			Text:         choice.Message.Content,
			Model:        resp.Model,
			FinishReason: string(choice.FinishReason),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	log.Debug("completion finished", "duration_ms", time.Since(start).Milliseconds(), "finish_reason", result.FinishReason)
	return result, nil
}

// retryable reports whether an upstream error may succeed on another attempt
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}
