package cliapp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mahsumaktas/treliq/internal/concurrency"
	"github.com/mahsumaktas/treliq/internal/config"
)

func TestBuildProvidersAlwaysHasStaticFallback(t *testing.T) {
	providers := buildProviders(map[string]config.ProviderConfig{}, concurrency.NewGate(4, 1))
	_, ok := providers["static"]
	assert.True(t, ok)
}

func TestBuildProvidersSkipsAnthropicWithoutKey(t *testing.T) {
	providers := buildProviders(map[string]config.ProviderConfig{
		"anthropic": {Enabled: true, Model: "claude-3-5-haiku-20241022"},
	}, concurrency.NewGate(4, 1))
	_, ok := providers["anthropic"]
	assert.False(t, ok)
}

func TestBuildProvidersWiresAnthropicWithKey(t *testing.T) {
	providers := buildProviders(map[string]config.ProviderConfig{
		"anthropic": {Enabled: true, Model: "claude-3-5-haiku-20241022", APIKey: "sk-ant-test"},
	}, concurrency.NewGate(4, 1))
	provider, ok := providers["anthropic"]
	assert.True(t, ok)
	assert.Equal(t, "anthropic", provider.Name())
}

func TestBuildProvidersOllamaNeedsNoKey(t *testing.T) {
	providers := buildProviders(map[string]config.ProviderConfig{
		"ollama": {Enabled: true, Model: "llama3"},
	}, concurrency.NewGate(4, 1))
	_, ok := providers["ollama"]
	assert.True(t, ok)
}

func TestBuildProvidersWiresRetryThrottleToGate(t *testing.T) {
	gate := concurrency.NewGate(4, 1)
	providers := buildProviders(map[string]config.ProviderConfig{
		"anthropic": {Enabled: true, Model: "claude-3-5-haiku-20241022", APIKey: "sk-ant-test"},
	}, gate)

	provider, ok := providers["anthropic"]
	assert.True(t, ok)
	rc, ok := provider.(retryConfigurable)
	assert.True(t, ok, "anthropic provider should expose SetRetryConfig")
	_ = rc
}
