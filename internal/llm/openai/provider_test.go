package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mahsumaktas/treliq/internal/llm"
	"github.com/stretchr/testify/require"
)

func TestGenerateTextParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"content":"hi there"}}],"usage":{"prompt_tokens":3,"completion_tokens":2}}`))
	}))
	defer srv.Close()

	p := New("key", "gpt-4o-mini", "")
	p.SetHTTPClient(srv.Client())
	p.SetEndpoints(srv.URL, srv.URL)

	resp, err := p.GenerateText(context.Background(), llm.TextRequest{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi there", resp.Text)
}

func TestGenerateEmbeddingBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[0.5,0.6]}]}`))
	}))
	defer srv.Close()

	p := New("key", "gpt-4o-mini", "text-embedding-3-small")
	p.SetHTTPClient(srv.Client())
	p.SetEndpoints(srv.URL, srv.URL)

	vecs, err := p.GenerateEmbeddingBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Equal(t, []float32{0.5, 0.6}, vecs[0].Vector)
}

func TestMapStatusRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	p := New("key", "gpt-4o-mini", "")
	p.SetHTTPClient(srv.Client())
	p.SetEndpoints(srv.URL, srv.URL)
	p.retryConf.MaxRetries = 0

	_, err := p.GenerateText(context.Background(), llm.TextRequest{Prompt: "hi"})
	require.Error(t, err)
}
