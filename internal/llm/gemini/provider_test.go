package gemini

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
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hi from gemini"}]}}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":3}}`))
	}))
	defer srv.Close()

	p := New("key", "gemini-1.5-flash", "")
	p.SetHTTPClient(srv.Client())
	p.SetBaseURL(srv.URL)

	resp, err := p.GenerateText(context.Background(), llm.TextRequest{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi from gemini", resp.Text)
	require.Equal(t, 4, resp.TokensIn)
}

func TestGenerateEmbeddingNoModelConfigured(t *testing.T) {
	p := New("key", "gemini-1.5-flash", "")
	_, err := p.GenerateEmbedding(context.Background(), "text")
	require.Error(t, err)
}

func TestGenerateEmbeddingParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":{"values":[0.7,0.8,0.9]}}`))
	}))
	defer srv.Close()

	p := New("key", "gemini-1.5-flash", "text-embedding-004")
	p.SetHTTPClient(srv.Client())
	p.SetBaseURL(srv.URL)

	resp, err := p.GenerateEmbedding(context.Background(), "text")
	require.NoError(t, err)
	require.Equal(t, []float32{0.7, 0.8, 0.9}, resp.Vector)
}

func TestMapStatusNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"model not found"}}`))
	}))
	defer srv.Close()

	p := New("key", "missing-model", "")
	p.SetHTTPClient(srv.Client())
	p.SetBaseURL(srv.URL)
	p.retryConf.MaxRetries = 0

	_, err := p.GenerateText(context.Background(), llm.TextRequest{Prompt: "hi"})
	require.Error(t, err)
}
