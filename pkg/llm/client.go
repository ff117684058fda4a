package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/logging"
	"github.com/sievedata/sieve-engine/pkg/retry"
)

const defaultEmbeddingModel = "text-embedding-3-small"

// Client provides access to OpenAI-compatible embedding endpoints. All
// calls pass through a circuit breaker so a dead provider degrades the
// callers that treat embeddings as optional instead of stalling them.
type Client struct {
	client   *openai.Client
	endpoint string
	model    string
	breaker  *CircuitBreaker
	logger   *zap.Logger
}

// Config holds configuration for creating an embedding client.
type Config struct {
	Endpoint string // Base URL, e.g., "https://api.openai.com/v1"
	Model    string // Embedding model name; empty selects the default
	APIKey   string // Optional for local endpoints
}

// NewClient creates a new OpenAI-compatible embedding client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	model := cfg.Model
	if model == "" {
		model = defaultEmbeddingModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &Client{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: cfg.Endpoint,
		model:    model,
		breaker:  NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		logger:   logger.Named("llm"),
	}, nil
}

// CreateEmbedding generates an embedding vector for the input text.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	vecs, err := c.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return vecs[0], nil
}

// CreateEmbeddings generates embeddings for multiple inputs.
func (c *Client) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if allowed, err := c.breaker.Allow(); !allowed {
		return nil, err
	}

	resp, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (openai.EmbeddingResponse, error) {
		return c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.model),
			Input: inputs,
		})
	})
	if err != nil {
		c.breaker.RecordFailure()
		// Provider errors can echo the request URL, API key included.
		c.logger.Warn("embedding request failed",
			zap.String("model", c.model),
			zap.Int("inputs", len(inputs)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	c.breaker.RecordSuccess()

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Endpoint returns the configured endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}
