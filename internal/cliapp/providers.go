package cliapp

import (
	"log"

	"github.com/mahsumaktas/treliq/internal/concurrency"
	"github.com/mahsumaktas/treliq/internal/config"
	"github.com/mahsumaktas/treliq/internal/llm"
	"github.com/mahsumaktas/treliq/internal/llm/anthropic"
	"github.com/mahsumaktas/treliq/internal/llm/gemini"
	"github.com/mahsumaktas/treliq/internal/llm/ollama"
	"github.com/mahsumaktas/treliq/internal/llm/openai"
	"github.com/mahsumaktas/treliq/internal/llm/retry"
	"github.com/mahsumaktas/treliq/internal/llm/static"
)

// retryConfigurable is implemented by every HTTP-backed provider; the
// static provider has no upstream to throttle against and does not
// implement it.
type retryConfigurable interface {
	SetRetryConfig(retry.Config)
}

// buildProviders constructs an llm.Adapter for every enabled provider in
// cfg. A provider requiring an API key that is missing is skipped with a
// warning rather than failing the whole command, since a different
// provider may still be usable. Every HTTP-backed provider's retry
// wrapper is wired to gate: a 429 throttles the gate's permit ceiling
// down, and a successful call lets it recover back up (spec.md §5
// "Adaptive throttling").
func buildProviders(providersCfg map[string]config.ProviderConfig, gate *concurrency.Gate) map[string]llm.Adapter {
	out := make(map[string]llm.Adapter)
	throttled := retry.DefaultConfig()
	throttled.OnThrottle = func(int, error) { gate.Throttle() }
	throttled.OnSuccess = gate.Recover

	if cfg, ok := providersCfg["static"]; ok && cfg.Enabled {
		model := cfg.Model
		if model == "" {
			model = "static-v1"
		}
		out["static"] = static.New(model, cfg.EmbeddingModel)
	}

	if cfg, ok := providersCfg["anthropic"]; ok && cfg.Enabled {
		if cfg.APIKey == "" {
			log.Println("anthropic: no API key configured, skipping provider")
		} else {
			out["anthropic"] = anthropic.New(cfg.APIKey, cfg.Model, cfg.EmbeddingModel, cfg.APIKey)
		}
	}

	if cfg, ok := providersCfg["openai"]; ok && cfg.Enabled {
		if cfg.APIKey == "" {
			log.Println("openai: no API key configured, skipping provider")
		} else {
			out["openai"] = openai.New(cfg.APIKey, cfg.Model, cfg.EmbeddingModel)
		}
	}

	if cfg, ok := providersCfg["gemini"]; ok && cfg.Enabled {
		if cfg.APIKey == "" {
			log.Println("gemini: no API key configured, skipping provider")
		} else {
			out["gemini"] = gemini.New(cfg.APIKey, cfg.Model, cfg.EmbeddingModel)
		}
	}

	if cfg, ok := providersCfg["ollama"]; ok && cfg.Enabled {
		out["ollama"] = ollama.New(cfg.Model, cfg.EmbeddingModel)
	}

	if _, ok := out["static"]; !ok {
		out["static"] = static.New("static-v1", "static-embed-v1")
	}

	for _, adapter := range out {
		if rc, ok := adapter.(retryConfigurable); ok {
			rc.SetRetryConfig(throttled)
		}
	}

	return out
}
