// Package openai implements the llm.Adapter port against the OpenAI
// chat completions and embeddings APIs.
package openai

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
	providerName       = "openai"
	defaultChatURL      = "https://api.openai.com/v1/chat/completions"
	defaultEmbeddingURL = "https://api.openai.com/v1/embeddings"
)

// Provider adapts OpenAI to the llm.Adapter port.
type Provider struct {
	apiKey         string
	model          string
	embeddingModel string
	httpClient     *http.Client
	retryConf      retry.Config
	chatURL        string
	embeddingURL   string
}

func New(apiKey, model, embeddingModel string) *Provider {
	return &Provider{
		apiKey:         apiKey,
		model:          model,
		embeddingModel: embeddingModel,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		retryConf:      retry.DefaultConfig(),
		chatURL:        defaultChatURL,
		embeddingURL:   defaultEmbeddingURL,
	}
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) SetEndpoints(chat, embedding string) {
	p.chatURL = chat
	p.embeddingURL = embedding
}

func (p *Provider) SetHTTPClient(c *http.Client) { p.httpClient = c }

// SetRetryConfig overrides the retry/backoff tuning, used by callers to
// wire adaptive concurrency throttling (gate.Throttle/gate.Recover)
// into OnThrottle/OnSuccess.
func (p *Provider) SetRetryConfig(cfg retry.Config) { p.retryConf = cfg }

type chatReq struct {
	Model       string       `json:"model"`
	Messages    []chatTurn   `json:"messages"`
	Temperature float64      `json:"temperature"`
	Seed        *uint64      `json:"seed,omitempty"`
}

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResp struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *Provider) GenerateText(ctx context.Context, req llm.TextRequest) (llm.TextResponse, error) {
	body := chatReq{
		Model:       p.model,
		Messages:    []chatTurn{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	}
	if req.Seed != 0 {
		body.Seed = &req.Seed
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return llm.TextResponse{}, fmt.Errorf("marshal openai request: %w", err)
	}

	var out chatResp
	err = retry.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatURL, bytes.NewReader(payload))
		if err != nil {
			return &retry.Error{Type: retry.ErrTypeUnknown, Message: err.Error(), Source: providerName}
		}
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
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
			return fmt.Errorf("read openai response: %w", readErr)
		}
		return json.Unmarshal(respBody, &out)
	}, p.retryConf)
	if err != nil {
		return llm.TextResponse{}, err
	}

	text := ""
	if len(out.Choices) > 0 {
		text = out.Choices[0].Message.Content
	}
	return llm.TextResponse{
		Model:     out.Model,
		Text:      text,
		TokensIn:  out.Usage.PromptTokens,
		TokensOut: out.Usage.CompletionTokens,
		CostUSD:   estimateCost(out.Usage.PromptTokens, out.Usage.CompletionTokens),
	}, nil
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *Provider) GenerateEmbedding(ctx context.Context, text string) (llm.EmbeddingResponse, error) {
	vecs, err := p.GenerateEmbeddingBatch(ctx, []string{text})
	if err != nil {
		return llm.EmbeddingResponse{}, err
	}
	if len(vecs) == 0 {
		return llm.EmbeddingResponse{}, fmt.Errorf("openai: empty embedding response")
	}
	return vecs[0], nil
}

func (p *Provider) GenerateEmbeddingBatch(ctx context.Context, texts []string) ([]llm.EmbeddingResponse, error) {
	if p.embeddingModel == "" {
		return nil, fmt.Errorf("openai: no embedding model configured")
	}
	payload, err := json.Marshal(embedReq{Model: p.embeddingModel, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	var out embedResp
	err = retry.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.embeddingURL, bytes.NewReader(payload))
		if err != nil {
			return &retry.Error{Type: retry.ErrTypeUnknown, Message: err.Error(), Source: providerName}
		}
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
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
			return fmt.Errorf("read embedding response: %w", readErr)
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
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := string(body)
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		msg = e.Error.Message
	}
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

func estimateCost(tokensIn, tokensOut int) float64 {
	const inPer1M, outPer1M = 0.15, 0.60
	return float64(tokensIn)/1_000_000*inPer1M + float64(tokensOut)/1_000_000*outPer1M
}
