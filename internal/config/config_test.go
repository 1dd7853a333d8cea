package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeOverlayWins(t *testing.T) {
	base := Config{
		Host: HostConfig{BaseURL: "https://api.github.com", Token: "base-token"},
		Scoring: ScoringConfig{Provider: "static", HeuristicWeight: 0.4},
	}
	overlay := Config{
		Host: HostConfig{Token: "overlay-token"},
	}

	merged := Merge(base, overlay)

	require.Equal(t, "overlay-token", merged.Host.Token)
	require.Equal(t, "static", merged.Scoring.Provider, "scoring untouched by overlay should survive")
}

func TestMergeProvidersUnion(t *testing.T) {
	base := Config{Providers: map[string]ProviderConfig{
		"anthropic": {Enabled: true, Model: "claude"},
	}}
	overlay := Config{Providers: map[string]ProviderConfig{
		"openai": {Enabled: true, Model: "gpt"},
	}}

	merged := Merge(base, overlay)

	require.Len(t, merged.Providers, 2)
	require.Equal(t, "claude", merged.Providers["anthropic"].Model)
	require.Equal(t, "gpt", merged.Providers["openai"].Model)
}

func TestMergeEmptyOverlayKeepsBase(t *testing.T) {
	base := Config{Dedup: DedupConfig{Enabled: true, SimilarityThreshold: 0.9}}
	merged := Merge(base, Config{})
	require.Equal(t, base.Dedup, merged.Dedup)
}
