// Package openai implements ports.Completer with OpenAI chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dsacoach/internal/logging"
	"dsacoach/internal/observability"
	"dsacoach/internal/ports"
)

const (
	defaultModel     = "gpt-3.5-turbo"
	defaultMaxTokens = 1000
	secretPath       = "/run/secrets/openai_api_key"
)

// ErrMissingAPIKey is returned when neither the environment nor the secret
// file provides a key.
var ErrMissingAPIKey = errors.New("openai: OPENAI_API_KEY not set and no secret found")

// Config configures the client.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// ConfigFromEnv reads OPENAI_API_KEY (falling back to the mounted secret),
// OPENAI_MODEL, OPENAI_BASE_URL and OPENAI_MAX_TOKENS.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		Model:   strings.TrimSpace(os.Getenv("OPENAI_MODEL")),
		BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
	}
	if cfg.APIKey == "" {
		data, err := os.ReadFile(secretPath)
		if err != nil {
			return Config{}, ErrMissingAPIKey
		}
		cfg.APIKey = strings.TrimSpace(string(data))
	}
	if raw := strings.TrimSpace(os.Getenv("OPENAI_MAX_TOKENS")); raw != "" {
		var n int
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n <= 0 {
			return Config{}, fmt.Errorf("openai: invalid OPENAI_MAX_TOKENS %q", raw)
		}
		cfg.MaxTokens = n
	}
	return cfg, nil
}

// Client sends completion requests to an OpenAI-compatible endpoint.
type Client struct {
	client    *goopenai.Client
	model     string
	maxTokens int
	logger    logging.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
}

var _ ports.Completer = (*Client)(nil)

// NewClient builds a client. logger and metrics may be nil.
func NewClient(cfg Config, logger logging.Logger, metrics *observability.Metrics) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:    goopenai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
		metrics:   metrics,
		tracer:    observability.Tracer(),
	}, nil
}

// Model returns the model the client requests.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one system+user exchange and returns the first choice.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	ctx, span := c.tracer.Start(ctx, "provider."+req.Operation,
		trace.WithAttributes(
			attribute.String("llm.request.model", c.model),
			attribute.Float64("llm.request.temperature", float64(req.Temperature)),
		),
	)
	defer span.End()

	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt})

	start := time.Now()
	content, usage, err := c.create(ctx, goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   c.maxTokens,
	})
	elapsed := time.Since(start)
	c.metrics.RecordProviderRequest(req.Operation, err, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("provider request failed", "operation", req.Operation, "model", c.model, "error", err)
		return "", err
	}

	span.SetAttributes(
		attribute.Int("llm.token_count.prompt", usage.PromptTokens),
		attribute.Int("llm.token_count.completion", usage.CompletionTokens),
	)
	c.logger.Debug("provider request finished",
		"operation", req.Operation,
		"model", c.model,
		"duration_ms", elapsed.Milliseconds(),
		"total_tokens", usage.TotalTokens,
	)
	return content, nil
}

func (c *Client) create(ctx context.Context, req goopenai.ChatCompletionRequest) (string, goopenai.Usage, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", goopenai.Usage{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", resp.Usage, fmt.Errorf("openai chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, resp.Usage, nil
}
