// Package llm defines the ProviderAdapter port shared by every LLM
// vendor Treliq talks to, and the shared request/response shapes for
// text generation and embeddings.
package llm

import "context"

// TextRequest asks a provider to produce free-form or JSON-schema-guided
// text, used by the intent classifier, the LLM score blend, and the
// vision checker.
type TextRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	Seed        uint64
	// JSONSchema, if non-empty, instructs a provider that supports
	// structured output to constrain its response to this schema.
	JSONSchema string
}

// TextResponse is a provider's answer to a TextRequest.
type TextResponse struct {
	Model     string
	Text      string
	TokensIn  int
	TokensOut int
	CostUSD   float64
}

// EmbeddingResponse is a provider's answer to an embedding request.
type EmbeddingResponse struct {
	Model   string
	Vector  []float32
	CostUSD float64
}

// Adapter is the common interface every vendor package implements.
type Adapter interface {
	Name() string
	GenerateText(ctx context.Context, req TextRequest) (TextResponse, error)
	GenerateEmbedding(ctx context.Context, text string) (EmbeddingResponse, error)
}

// BatchEmbedder is an optional capability: providers that can embed many
// texts in one round trip implement this in addition to Adapter. The
// dedup engine type-asserts for it and falls back to looping
// GenerateEmbedding when absent.
type BatchEmbedder interface {
	GenerateEmbeddingBatch(ctx context.Context, texts []string) ([]EmbeddingResponse, error)
}
