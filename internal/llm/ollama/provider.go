// Package ollama implements the llm.Adapter port against a local Ollama
// server. Ollama requires no API key; requests are unauthenticated HTTP
// calls to a loopback or LAN address.
package ollama

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
	providerName   = "ollama"
	defaultBaseURL = "http://localhost:11434"
)

// Provider adapts a local Ollama server to the llm.Adapter port. Cost is
// always zero: local inference has no per-token billing.
type Provider struct {
	model          string
	embeddingModel string
	httpClient     *http.Client
	retryConf      retry.Config
	baseURL        string
}

func New(model, embeddingModel string) *Provider {
	return &Provider{
		model:          model,
		embeddingModel: embeddingModel,
		httpClient:     &http.Client{Timeout: 120 * time.Second},
		retryConf:      retry.DefaultConfig(),
		baseURL:        defaultBaseURL,
	}
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) SetBaseURL(url string)        { p.baseURL = url }
func (p *Provider) SetHTTPClient(c *http.Client) { p.httpClient = c }

// SetRetryConfig overrides the retry/backoff tuning, used by callers to
// wire adaptive concurrency throttling (gate.Throttle/gate.Recover)
// into OnThrottle/OnSuccess.
func (p *Provider) SetRetryConfig(cfg retry.Config) { p.retryConf = cfg }

type generateReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResp struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (p *Provider) GenerateText(ctx context.Context, req llm.TextRequest) (llm.TextResponse, error) {
	payload, err := json.Marshal(generateReq{Model: p.model, Prompt: req.Prompt, Stream: false})
	if err != nil {
		return llm.TextResponse{}, fmt.Errorf("marshal ollama request: %w", err)
	}

	url := p.baseURL + "/api/generate"

	var out generateResp
	err = retry.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return &retry.Error{Type: retry.ErrTypeUnknown, Message: err.Error(), Source: providerName}
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return retry.NewServiceUnavailableError(providerName, err.Error())
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 {
			return mapStatus(resp.StatusCode, respBody)
		}
		if readErr != nil {
			return fmt.Errorf("read ollama response: %w", readErr)
		}
		return json.Unmarshal(respBody, &out)
	}, p.retryConf)
	if err != nil {
		return llm.TextResponse{}, err
	}

	return llm.TextResponse{
		Model:     out.Model,
		Text:      out.Response,
		TokensIn:  out.PromptEvalCount,
		TokensOut: out.EvalCount,
		CostUSD:   0,
	}, nil
}

type embedReq struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResp struct {
	Embedding []float32 `json:"embedding"`
}

func (p *Provider) GenerateEmbedding(ctx context.Context, text string) (llm.EmbeddingResponse, error) {
	if p.embeddingModel == "" {
		return llm.EmbeddingResponse{}, fmt.Errorf("ollama: no embedding model configured")
	}

	payload, err := json.Marshal(embedReq{Model: p.embeddingModel, Input: text})
	if err != nil {
		return llm.EmbeddingResponse{}, fmt.Errorf("marshal embedding request: %w", err)
	}

	url := p.baseURL + "/api/embed"

	var out embedResp
	err = retry.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return &retry.Error{Type: retry.ErrTypeUnknown, Message: err.Error(), Source: providerName}
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return retry.NewServiceUnavailableError(providerName, err.Error())
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 {
			return mapStatus(resp.StatusCode, respBody)
		}
		if readErr != nil {
			return fmt.Errorf("read embed response: %w", readErr)
		}
		return json.Unmarshal(respBody, &out)
	}, p.retryConf)
	if err != nil {
		return llm.EmbeddingResponse{}, err
	}

	return llm.EmbeddingResponse{Model: p.embeddingModel, Vector: out.Embedding}, nil
}

func mapStatus(statusCode int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := string(body)
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		msg = e.Error
	}
	switch {
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
