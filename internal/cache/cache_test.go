package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsNil(t *testing.T) {
	c := New(false)
	f := c.Load(filepath.Join(t.TempDir(), "nope.json"), "acme/widgets", "cfg1")
	require.Nil(t, f)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	c := New(false)
	path := filepath.Join(t.TempDir(), "cache.json")

	now := time.Now().UTC().Truncate(time.Second)
	entry := domain.CacheEntry{Number: 1, HeadSHA: "abc123", UpdatedAt: now, ConfigFingerprint: "cfg1",
		Score: domain.ScoredItem{Kind: "pr", Number: 1, TotalScore: 80}}

	require.NoError(t, c.Save(path, File{Repo: "acme/widgets", ConfigFingerprint: "cfg1", Items: map[int]domain.CacheEntry{1: entry}}))

	loaded := c.Load(path, "acme/widgets", "cfg1")
	require.NotNil(t, loaded)
	require.Contains(t, loaded.Items, 1)
}

func TestLoadRejectsRepoMismatch(t *testing.T) {
	c := New(false)
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, c.Save(path, File{Repo: "acme/widgets", ConfigFingerprint: "cfg1", Items: map[int]domain.CacheEntry{}}))

	loaded := c.Load(path, "acme/other", "cfg1")
	require.Nil(t, loaded)
}

func TestLoadRejectsFingerprintMismatch(t *testing.T) {
	c := New(false)
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, c.Save(path, File{Repo: "acme/widgets", ConfigFingerprint: "cfg1", Items: map[int]domain.CacheEntry{}}))

	loaded := c.Load(path, "acme/widgets", "cfg2")
	require.Nil(t, loaded)
}

func TestLoadInvalidJSONReturnsNil(t *testing.T) {
	c := New(false)
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	loaded := c.Load(path, "acme/widgets", "cfg1")
	require.Nil(t, loaded)
}

func TestHitRequiresExactUpdatedAtAndHeadSHA(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	f := &File{Items: map[int]domain.CacheEntry{
		1: {Number: 1, HeadSHA: "abc", UpdatedAt: now},
	}}

	_, ok := f.Hit(1, now.Format(timeLayout), "abc")
	require.True(t, ok)

	_, ok = f.Hit(1, now.Format(timeLayout), "different")
	require.False(t, ok)
}

func TestSaveStripsEmbeddingsByDefault(t *testing.T) {
	c := New(false)
	path := filepath.Join(t.TempDir(), "cache.json")

	entry := domain.CacheEntry{Number: 1, Embedding: []float32{1, 2, 3}}
	require.NoError(t, c.Save(path, File{Repo: "r", Items: map[int]domain.CacheEntry{1: entry}}))

	loaded := c.Load(path, "r", "")
	require.NotNil(t, loaded)
	require.Nil(t, loaded.Items[1].Embedding)
}

func TestSavePersistsEmbeddingsWhenConfigured(t *testing.T) {
	c := New(true)
	path := filepath.Join(t.TempDir(), "cache.json")

	entry := domain.CacheEntry{Number: 1, Embedding: []float32{1, 2, 3}}
	require.NoError(t, c.Save(path, File{Repo: "r", Items: map[int]domain.CacheEntry{1: entry}}))

	loaded := c.Load(path, "r", "")
	require.NotNil(t, loaded)
	require.Equal(t, []float32{1, 2, 3}, loaded.Items[1].Embedding)
}
