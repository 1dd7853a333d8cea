// Package static implements the llm.Adapter port with fixed, deterministic
// responses and no network calls. It is the default provider for dry runs
// and for tests that exercise the scoring and dedup pipelines without a
// live model.
package static

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/mahsumaktas/treliq/internal/llm"
)

const providerName = "static"

// Provider returns a fixed text response and a deterministic embedding
// derived from the input text's hash, so repeated calls with the same
// text compare as identical and distinct texts compare as dissimilar.
type Provider struct {
	model          string
	embeddingModel string
	embeddingDims  int
	fixedText      string
}

func New(model, embeddingModel string) *Provider {
	return &Provider{
		model:          model,
		embeddingModel: embeddingModel,
		embeddingDims:  16,
		fixedText:      `{"relevance":0.5,"quality":0.5,"spam_likelihood":0.1,"rationale":"static provider placeholder"}`,
	}
}

func (p *Provider) Name() string { return providerName }

// SetFixedText overrides the canned text response, used by tests that
// need GenerateText to echo a specific payload.
func (p *Provider) SetFixedText(text string) { p.fixedText = text }

func (p *Provider) GenerateText(ctx context.Context, req llm.TextRequest) (llm.TextResponse, error) {
	return llm.TextResponse{
		Model:     p.model,
		Text:      p.fixedText,
		TokensIn:  len(req.Prompt) / 4,
		TokensOut: len(p.fixedText) / 4,
		CostUSD:   0,
	}, nil
}

func (p *Provider) GenerateEmbedding(ctx context.Context, text string) (llm.EmbeddingResponse, error) {
	return llm.EmbeddingResponse{
		Model:  p.embeddingModel,
		Vector: deterministicVector(text, p.embeddingDims),
	}, nil
}

func (p *Provider) GenerateEmbeddingBatch(ctx context.Context, texts []string) ([]llm.EmbeddingResponse, error) {
	out := make([]llm.EmbeddingResponse, 0, len(texts))
	for _, t := range texts {
		out = append(out, llm.EmbeddingResponse{Model: p.embeddingModel, Vector: deterministicVector(t, p.embeddingDims)})
	}
	return out, nil
}

// deterministicVector hashes text into a unit-length float32 vector of the
// given dimension. Identical text always yields an identical vector;
// unrelated text yields near-orthogonal vectors with high probability.
func deterministicVector(text string, dims int) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dims)
	var sq float64
	for i := 0; i < dims; i++ {
		off := (i * 4) % (len(sum) - 4)
		bits := binary.BigEndian.Uint32(sum[off : off+4])
		v := float64(bits)/float64(math.MaxUint32)*2 - 1
		vec[i] = float32(v)
		sq += v * v
	}
	norm := math.Sqrt(sq)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
