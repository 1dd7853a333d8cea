package static

import (
	"context"
	"testing"

	"github.com/mahsumaktas/treliq/internal/llm"
	"github.com/stretchr/testify/require"
)

func TestGenerateTextReturnsFixedResponse(t *testing.T) {
	p := New("static-v1", "static-embed-v1")
	resp, err := p.GenerateText(context.Background(), llm.TextRequest{Prompt: "hello world"})
	require.NoError(t, err)
	require.Contains(t, resp.Text, "relevance")
	require.Equal(t, "static-v1", resp.Model)
}

func TestGenerateEmbeddingDeterministic(t *testing.T) {
	p := New("static-v1", "static-embed-v1")
	a, err := p.GenerateEmbedding(context.Background(), "same text")
	require.NoError(t, err)
	b, err := p.GenerateEmbedding(context.Background(), "same text")
	require.NoError(t, err)
	require.Equal(t, a.Vector, b.Vector)
}

func TestGenerateEmbeddingDiffersByText(t *testing.T) {
	p := New("static-v1", "static-embed-v1")
	a, err := p.GenerateEmbedding(context.Background(), "alpha")
	require.NoError(t, err)
	b, err := p.GenerateEmbedding(context.Background(), "beta")
	require.NoError(t, err)
	require.NotEqual(t, a.Vector, b.Vector)
}

func TestGenerateEmbeddingBatchMatchesSingle(t *testing.T) {
	p := New("static-v1", "static-embed-v1")
	single, err := p.GenerateEmbedding(context.Background(), "batch me")
	require.NoError(t, err)
	batch, err := p.GenerateEmbeddingBatch(context.Background(), []string{"batch me"})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Equal(t, single.Vector, batch[0].Vector)
}
