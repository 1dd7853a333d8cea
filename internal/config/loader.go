package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from files and environment
// variables. Env vars use the TRELIQ_ prefix, e.g. TRELIQ_HOST_TOKEN,
// TRELIQ_PROVIDERS_ANTHROPIC_APIKEY.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "treliq"
	}

	configFile := locateConfigFile(name, opts.ConfigPaths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "TRELIQ"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvTokenFallbacks(&cfg)

	return cfg, nil
}

// applyEnvTokenFallbacks fills host/provider credentials from the
// well-known env vars spec.md names (GITHUB_TOKEN, ANTHROPIC_API_KEY,
// OPENAI_API_KEY, GEMINI_API_KEY) when the layered config left them
// empty, mirroring what operators expect from CI secrets.
func applyEnvTokenFallbacks(cfg *Config) {
	if cfg.Host.Token == "" {
		cfg.Host.Token = os.Getenv("GITHUB_TOKEN")
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	fallback := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"gemini":    "GEMINI_API_KEY",
	}
	for name, envVar := range fallback {
		p := cfg.Providers[name]
		if p.APIKey == "" {
			p.APIKey = os.Getenv(envVar)
		}
		cfg.Providers[name] = p
	}
}

func locateConfigFile(name string, paths []string) string {
	searchPaths := append([]string{}, paths...)
	searchPaths = append(searchPaths, ".")
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name+".yaml")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host.baseUrl", "https://api.github.com")
	v.SetDefault("concurrency.maxInFlight", 8)
	v.SetDefault("concurrency.minInFlight", 1)
	v.SetDefault("concurrency.throttleFloor", 1)

	v.SetDefault("scoring.provider", "static")
	v.SetDefault("scoring.heuristicWeight", 0.4)
	v.SetDefault("scoring.llmWeight", 0.6)
	v.SetDefault("scoring.staleAfter", "720h")

	v.SetDefault("dedup.enabled", true)
	v.SetDefault("dedup.similarityThreshold", 0.86)
	v.SetDefault("dedup.annBruteForceCutover", 500)

	v.SetDefault("cache.path", defaultCachePath())
	v.SetDefault("cache.persistEmbeddings", false)

	v.SetDefault("action.dryRun", true)
	v.SetDefault("action.autoCloseSpamBelow", 25)
	v.SetDefault("action.autoMergeAbove", 90)
	v.SetDefault("action.stalenessDays", 30)

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", defaultStorePath())

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics.enabled", false)
	v.SetDefault("observability.metrics.addr", ":9090")

	v.SetDefault("providers.static.enabled", true)
	v.SetDefault("providers.static.model", "static-v1")
	v.SetDefault("providers.anthropic.enabled", false)
	v.SetDefault("providers.anthropic.model", "claude-3-5-haiku-20241022")
	v.SetDefault("providers.anthropic.embeddingModel", "voyage-3-lite")
	v.SetDefault("providers.openai.enabled", false)
	v.SetDefault("providers.openai.model", "gpt-4o-mini")
	v.SetDefault("providers.openai.embeddingModel", "text-embedding-3-small")
	v.SetDefault("providers.gemini.enabled", false)
	v.SetDefault("providers.gemini.model", "gemini-1.5-flash")
	v.SetDefault("providers.gemini.embeddingModel", "text-embedding-004")
	v.SetDefault("providers.ollama.enabled", false)
	v.SetDefault("providers.ollama.model", "llama3")

	v.SetDefault("webhook.addr", ":8090")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./treliq.db"
	}
	return filepath.Join(home, ".config", "treliq", "treliq.db")
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./treliq-cache.json"
	}
	return filepath.Join(home, ".config", "treliq", "cache.json")
}
