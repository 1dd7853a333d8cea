package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}, FileName: "treliq-missing"})
	require.NoError(t, err)

	require.Equal(t, "https://api.github.com", cfg.Host.BaseURL)
	require.Equal(t, 8, cfg.Concurrency.MaxInFlight)
	require.True(t, cfg.Dedup.Enabled)
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "treliq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repos:\n  - acme/widgets\nhost:\n  baseUrl: https://ghe.example.com\n"), 0o600))

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}, FileName: "treliq"})
	require.NoError(t, err)

	require.Equal(t, []string{"acme/widgets"}, cfg.Repos)
	require.Equal(t, "https://ghe.example.com", cfg.Host.BaseURL)
}

func TestLoadEnvTokenFallback(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "env-token")
	dir := t.TempDir()

	cfg, err := Load(LoaderOptions{ConfigPaths: []string{dir}, FileName: "treliq-missing"})
	require.NoError(t, err)

	require.Equal(t, "env-token", cfg.Host.Token)
}
