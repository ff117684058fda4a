// Package llm provides OpenAI-compatible embedding client functionality.
package llm

import "context"

// Embedder defines the interface for embedding operations. Use this
// interface for dependency injection to enable mocking in tests.
type Embedder interface {
	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// CreateEmbeddings generates embeddings for multiple inputs.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)

	// Model returns the configured model name.
	Model() string
}

// Ensure Client implements Embedder at compile time.
var _ Embedder = (*Client)(nil)
