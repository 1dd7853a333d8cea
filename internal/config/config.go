// Package config holds the Treliq configuration surface: repository
// targeting, host credentials, provider selection, scoring weights, and
// the action-planner's guardrails. It is loaded from a YAML file layered
// with environment variables via Load.
package config

import "time"

// Config is the full runtime configuration for a scan.
type Config struct {
	Repos       []string          `yaml:"repos"`
	Host        HostConfig        `yaml:"host"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Dedup       DedupConfig       `yaml:"dedup"`
	Cache       CacheConfig       `yaml:"cache"`
	Action      ActionConfig      `yaml:"action"`
	Store       StoreConfig       `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
	Webhook     WebhookConfig     `yaml:"webhook"`
}

// HostConfig configures the git-hosting API client.
type HostConfig struct {
	BaseURL string `yaml:"baseUrl"` // defaults to https://api.github.com
	Token   string `yaml:"token"`
	TrustContributors bool `yaml:"trustContributors"` // trust AUTHOR_ASSOCIATION below MEMBER for scoring boosts
}

// ProviderConfig configures a single LLM/embedding vendor.
type ProviderConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embeddingModel"`
	APIKey         string `yaml:"apiKey"`
	BaseURL        string `yaml:"baseUrl,omitempty"`
	Timeout        string `yaml:"timeout,omitempty"`
	MaxRetries     int    `yaml:"maxRetries,omitempty"`
}

// ConcurrencyConfig bounds in-flight host and provider calls.
type ConcurrencyConfig struct {
	MaxInFlight  int `yaml:"maxInFlight"`
	MinInFlight  int `yaml:"minInFlight"`
	ThrottleFloor int `yaml:"throttleFloor"`
}

// ScoringConfig selects the active provider and weight profile set for
// the Scorer.
type ScoringConfig struct {
	Provider        string             `yaml:"provider"`
	UseLLMBlend     bool               `yaml:"useLLMBlend"`
	HeuristicWeight float64            `yaml:"heuristicWeight"` // default 0.4
	LLMWeight       float64            `yaml:"llmWeight"`       // default 0.6
	StaleAfter      time.Duration      `yaml:"staleAfter"`
}

// DedupConfig configures the embedding-based dedup engine.
type DedupConfig struct {
	Enabled            bool    `yaml:"enabled"`
	SimilarityThreshold float64 `yaml:"similarityThreshold"` // default 0.86
	UseANN             bool    `yaml:"useANN"`
	ANNBruteForceCutover int   `yaml:"annBruteForceCutover"` // item count above which ANN path is used
	VerifyWithLLM      bool    `yaml:"verifyWithLLM"`
}

// CacheConfig configures the on-disk incremental cache.
type CacheConfig struct {
	Path              string `yaml:"path"`
	PersistEmbeddings bool   `yaml:"persistEmbeddings"`
}

// ActionConfig configures the action planner's guardrails. Score
// thresholds are on the same 0-100 scale as ScoredItem.TotalScore.
type ActionConfig struct {
	DryRun            bool    `yaml:"dryRun"`
	AutoCloseSpamBelow float64 `yaml:"autoCloseSpamBelow"`
	AutoMergeAbove     float64 `yaml:"autoMergeAbove"`
	StalenessDays      int     `yaml:"stalenessDays"`
}

// StoreConfig configures the embedded relational store.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ObservabilityConfig configures logging and metrics.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig configures the prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // listen address for /metrics, e.g. ":9090"
}

// WebhookConfig configures the inbound event server.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Secret  string `yaml:"secret"`
}

// Merge layers configs in order, later values winning when set.
func Merge(configs ...Config) Config {
	result := Config{}
	for _, cfg := range configs {
		result = merge(result, cfg)
	}
	return result
}

func merge(base, overlay Config) Config {
	result := base

	if len(overlay.Repos) > 0 {
		result.Repos = overlay.Repos
	}
	result.Host = chooseHost(base.Host, overlay.Host)
	result.Providers = mergeProviders(base.Providers, overlay.Providers)
	result.Concurrency = chooseConcurrency(base.Concurrency, overlay.Concurrency)
	result.Scoring = chooseScoring(base.Scoring, overlay.Scoring)
	result.Dedup = chooseDedup(base.Dedup, overlay.Dedup)
	result.Cache = chooseCache(base.Cache, overlay.Cache)
	result.Action = chooseAction(base.Action, overlay.Action)
	result.Store = chooseStore(base.Store, overlay.Store)
	result.Observability = chooseObservability(base.Observability, overlay.Observability)
	result.Webhook = chooseWebhook(base.Webhook, overlay.Webhook)

	return result
}

func mergeProviders(base, overlay map[string]ProviderConfig) map[string]ProviderConfig {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	result := make(map[string]ProviderConfig, len(base)+len(overlay))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range overlay {
		result[k] = v
	}
	return result
}

func chooseHost(base, overlay HostConfig) HostConfig {
	if overlay.BaseURL != "" || overlay.Token != "" || overlay.TrustContributors {
		if overlay.BaseURL == "" {
			overlay.BaseURL = base.BaseURL
		}
		return overlay
	}
	return base
}

func chooseConcurrency(base, overlay ConcurrencyConfig) ConcurrencyConfig {
	if overlay.MaxInFlight != 0 || overlay.MinInFlight != 0 || overlay.ThrottleFloor != 0 {
		return overlay
	}
	return base
}

func chooseScoring(base, overlay ScoringConfig) ScoringConfig {
	if overlay.Provider != "" || overlay.UseLLMBlend || overlay.HeuristicWeight != 0 || overlay.LLMWeight != 0 || overlay.StaleAfter != 0 {
		return overlay
	}
	return base
}

func chooseDedup(base, overlay DedupConfig) DedupConfig {
	if overlay.Enabled || overlay.SimilarityThreshold != 0 || overlay.UseANN || overlay.ANNBruteForceCutover != 0 || overlay.VerifyWithLLM {
		return overlay
	}
	return base
}

func chooseCache(base, overlay CacheConfig) CacheConfig {
	if overlay.Path != "" || overlay.PersistEmbeddings {
		return overlay
	}
	return base
}

func chooseAction(base, overlay ActionConfig) ActionConfig {
	if overlay.DryRun || overlay.AutoCloseSpamBelow != 0 || overlay.AutoMergeAbove != 0 || overlay.StalenessDays != 0 {
		return overlay
	}
	return base
}

func chooseStore(base, overlay StoreConfig) StoreConfig {
	if overlay.Enabled || overlay.Path != "" {
		return overlay
	}
	return base
}

func chooseObservability(base, overlay ObservabilityConfig) ObservabilityConfig {
	result := base
	if overlay.Logging.Level != "" || overlay.Logging.Format != "" {
		result.Logging = overlay.Logging
	}
	if overlay.Metrics.Enabled {
		result.Metrics = overlay.Metrics
	}
	return result
}

func chooseWebhook(base, overlay WebhookConfig) WebhookConfig {
	if overlay.Enabled || overlay.Addr != "" || overlay.Secret != "" {
		return overlay
	}
	return base
}
