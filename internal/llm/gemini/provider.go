// Package gemini implements the llm.Adapter port against the Google
// Gemini generateContent and embedContent APIs.
package gemini

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

const providerName = "gemini"

// Provider adapts Gemini to the llm.Adapter port.
type Provider struct {
	apiKey         string
	model          string
	embeddingModel string
	httpClient     *http.Client
	retryConf      retry.Config
	baseURL        string // e.g. https://generativelanguage.googleapis.com/v1beta
}

func New(apiKey, model, embeddingModel string) *Provider {
	return &Provider{
		apiKey:         apiKey,
		model:          model,
		embeddingModel: embeddingModel,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		retryConf:      retry.DefaultConfig(),
		baseURL:        "https://generativelanguage.googleapis.com/v1beta",
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
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResp struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (p *Provider) GenerateText(ctx context.Context, req llm.TextRequest) (llm.TextResponse, error) {
	body := generateReq{Contents: []content{{Parts: []part{{Text: req.Prompt}}}}}
	payload, err := json.Marshal(body)
	if err != nil {
		return llm.TextResponse{}, fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)

	var out generateResp
	err = retry.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return &retry.Error{Type: retry.ErrTypeUnknown, Message: err.Error(), Source: providerName}
		}
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
			return fmt.Errorf("read gemini response: %w", readErr)
		}
		return json.Unmarshal(respBody, &out)
	}, p.retryConf)
	if err != nil {
		return llm.TextResponse{}, err
	}

	text := ""
	if len(out.Candidates) > 0 && len(out.Candidates[0].Content.Parts) > 0 {
		text = out.Candidates[0].Content.Parts[0].Text
	}
	return llm.TextResponse{
		Model:     p.model,
		Text:      text,
		TokensIn:  out.UsageMetadata.PromptTokenCount,
		TokensOut: out.UsageMetadata.CandidatesTokenCount,
	}, nil
}

type embedReq struct {
	Content content `json:"content"`
}

type embedResp struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (p *Provider) GenerateEmbedding(ctx context.Context, text string) (llm.EmbeddingResponse, error) {
	if p.embeddingModel == "" {
		return llm.EmbeddingResponse{}, fmt.Errorf("gemini: no embedding model configured")
	}

	payload, err := json.Marshal(embedReq{Content: content{Parts: []part{{Text: text}}}})
	if err != nil {
		return llm.EmbeddingResponse{}, fmt.Errorf("marshal embedding request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", p.baseURL, p.embeddingModel, p.apiKey)

	var out embedResp
	err = retry.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return &retry.Error{Type: retry.ErrTypeUnknown, Message: err.Error(), Source: providerName}
		}
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
			return fmt.Errorf("read embed response: %w", readErr)
		}
		return json.Unmarshal(respBody, &out)
	}, p.retryConf)
	if err != nil {
		return llm.EmbeddingResponse{}, err
	}

	return llm.EmbeddingResponse{Model: p.embeddingModel, Vector: out.Embedding.Values}, nil
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
	case statusCode == 401 || statusCode == 403:
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
