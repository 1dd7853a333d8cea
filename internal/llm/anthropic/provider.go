// Package anthropic implements the llm.Adapter port against the
// Anthropic Messages API for text generation, and Voyage AI for
// embeddings (Anthropic has no first-party embedding endpoint).
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mahsumaktas/treliq/internal/llm"
	"github.com/mahsumaktas/treliq/internal/llm/retry"
)

const (
	providerName    = "anthropic"
	messagesURL     = "https://api.anthropic.com/v1/messages"
	embeddingURL    = "https://api.voyageai.com/v1/embeddings"
	anthropicVersion = "2023-06-01"
)

// Provider adapts Anthropic + Voyage to the llm.Adapter port.
type Provider struct {
	apiKey         string
	model          string
	embeddingModel string
	embeddingKey   string
	httpClient     *http.Client
	retryConf      retry.Config
	messagesURL    string
	embeddingURL   string
}

// New constructs a Provider. embeddingKey may be empty if embeddingModel
// is also empty (embeddings then return an error).
func New(apiKey, model, embeddingModel, embeddingKey string) *Provider {
	return &Provider{
		apiKey:         apiKey,
		model:          model,
		embeddingModel: embeddingModel,
		embeddingKey:   embeddingKey,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		retryConf:      retry.DefaultConfig(),
		messagesURL:    messagesURL,
		embeddingURL:   embeddingURL,
	}
}

func (p *Provider) Name() string { return providerName }

// SetEndpoints overrides the messages/embeddings URLs, used by tests to
// point the provider at an httptest.Server.
func (p *Provider) SetEndpoints(messages, embedding string) {
	p.messagesURL = messages
	p.embeddingURL = embedding
}

// SetHTTPClient overrides the transport, used by tests.
func (p *Provider) SetHTTPClient(c *http.Client) { p.httpClient = c }

// SetRetryConfig overrides the retry/backoff tuning, used by callers to
// wire adaptive concurrency throttling (gate.Throttle/gate.Recover)
// into OnThrottle/OnSuccess.
func (p *Provider) SetRetryConfig(cfg retry.Config) { p.retryConf = cfg }

type messageReq struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []msgTurn `json:"messages"`
}

type msgTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResp struct {
	Model   string `json:"model"`
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *Provider) GenerateText(ctx context.Context, req llm.TextRequest) (llm.TextResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	body := messageReq{
		Model:       p.model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages:    []msgTurn{{Role: "user", Content: req.Prompt}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return llm.TextResponse{}, fmt.Errorf("marshal anthropic request: %w", err)
	}

	var out messageResp
	err = retry.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.messagesURL, bytes.NewReader(payload))
		if err != nil {
			return &retry.Error{Type: retry.ErrTypeUnknown, Message: err.Error(), Source: providerName}
		}
		httpReq.Header.Set("x-api-key", p.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return retry.NewTimeoutError(providerName, err.Error())
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 {
			return mapStatus(resp.StatusCode, respBody)
		}
		if readErr != nil {
			return fmt.Errorf("read anthropic response: %w", readErr)
		}
		return json.Unmarshal(respBody, &out)
	}, p.retryConf)
	if err != nil {
		return llm.TextResponse{}, err
	}

	text := ""
	if len(out.Content) > 0 {
		text = out.Content[0].Text
	}

	return llm.TextResponse{
		Model:     out.Model,
		Text:      text,
		TokensIn:  out.Usage.InputTokens,
		TokensOut: out.Usage.OutputTokens,
		CostUSD:   estimateCost(out.Usage.InputTokens, out.Usage.OutputTokens),
	}, nil
}

type voyageReq struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type voyageResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *Provider) GenerateEmbedding(ctx context.Context, text string) (llm.EmbeddingResponse, error) {
	vectors, err := p.embedBatch(ctx, []string{text})
	if err != nil {
		return llm.EmbeddingResponse{}, err
	}
	if len(vectors) == 0 {
		return llm.EmbeddingResponse{}, fmt.Errorf("anthropic/voyage: empty embedding response")
	}
	return vectors[0], nil
}

func (p *Provider) GenerateEmbeddingBatch(ctx context.Context, texts []string) ([]llm.EmbeddingResponse, error) {
	return p.embedBatch(ctx, texts)
}

func (p *Provider) embedBatch(ctx context.Context, texts []string) ([]llm.EmbeddingResponse, error) {
	if p.embeddingModel == "" {
		return nil, fmt.Errorf("anthropic: no embedding model configured")
	}

	payload, err := json.Marshal(voyageReq{Input: texts, Model: p.embeddingModel})
	if err != nil {
		return nil, fmt.Errorf("marshal voyage request: %w", err)
	}

	var out voyageResp
	err = retry.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.embeddingURL, bytes.NewReader(payload))
		if err != nil {
			return &retry.Error{Type: retry.ErrTypeUnknown, Message: err.Error(), Source: providerName}
		}
		httpReq.Header.Set("Authorization", "Bearer "+p.embeddingKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return retry.NewTimeoutError(providerName, err.Error())
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 {
			return mapStatus(resp.StatusCode, respBody)
		}
		if readErr != nil {
			return fmt.Errorf("read voyage response: %w", readErr)
		}
		return json.Unmarshal(respBody, &out)
	}, p.retryConf)
	if err != nil {
		return nil, err
	}

	results := make([]llm.EmbeddingResponse, 0, len(out.Data))
	for _, d := range out.Data {
		results = append(results, llm.EmbeddingResponse{Model: p.embeddingModel, Vector: d.Embedding})
	}
	return results, nil
}

func mapStatus(statusCode int, body []byte) error {
	msg := parseErrMessage(body)
	switch {
	case statusCode == 401:
		return retry.NewAuthenticationError(providerName, msg)
	case statusCode == 429:
		return retry.NewRateLimitError(providerName, msg, 0)
	case statusCode == 404:
		return retry.NewNotFoundError(providerName, msg)
	case statusCode >= 500:
		return retry.NewServiceUnavailableError(providerName, msg)
	case statusCode == 400:
		return retry.NewInvalidRequestError(providerName, msg)
	default:
		return &retry.Error{Type: retry.ErrTypeUnknown, Message: msg, StatusCode: statusCode, Source: providerName}
	}
}

func parseErrMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return string(body)
}

// estimateCost uses Claude Haiku list pricing as of writing; callers
// needing exact model-specific pricing should override via
// configuration rather than relying on this default.
func estimateCost(tokensIn, tokensOut int) float64 {
	const inPer1M, outPer1M = 0.80, 4.00
	return float64(tokensIn)/1_000_000*inPer1M + float64(tokensOut)/1_000_000*outPer1M
}
