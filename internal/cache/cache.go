// Package cache persists per-repository scan state to a single JSON
// file, so an unchanged PR or issue can be skipped on the next scan.
package cache

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/natefinch/atomic"

	"github.com/mahsumaktas/treliq/internal/domain"
)

// File is the on-disk shape persisted for one repository.
type File struct {
	Repo              string                    `json:"repo"`
	LastScan          string                    `json:"lastScan"`
	ConfigFingerprint string                    `json:"configHash"`
	Items             map[int]domain.CacheEntry `json:"prs"`
}

// Cache loads and saves a repository's scan state to a single file.
// PersistEmbeddings controls whether an item's embedding vector is
// written to disk alongside its score, trading cache size for the
// ability to skip re-embedding on a cache hit.
type Cache struct {
	PersistEmbeddings bool
}

func New(persistEmbeddings bool) *Cache {
	return &Cache{PersistEmbeddings: persistEmbeddings}
}

// Load reads path and returns the cache file, or nil if the file is
// missing, invalid JSON, for a different repo, or its fingerprint
// doesn't match (when both sides supply one).
func (c *Cache) Load(path, repo, configFingerprint string) *File {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	if f.Repo != repo {
		return nil
	}
	if f.ConfigFingerprint != "" && configFingerprint != "" && f.ConfigFingerprint != configFingerprint {
		return nil
	}
	if f.Items == nil {
		f.Items = map[int]domain.CacheEntry{}
	}
	return &f
}

// Hit reports whether entry matches the live updatedAt and headSha for
// a given number, meaning the cached score can be reused unchanged.
func (f *File) Hit(number int, updatedAt, headSHA string) (domain.CacheEntry, bool) {
	entry, ok := f.Items[number]
	if !ok {
		return domain.CacheEntry{}, false
	}
	if entry.UpdatedAt.Format(timeLayout) != updatedAt || entry.HeadSHA != headSHA {
		return domain.CacheEntry{}, false
	}
	return entry, true
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// Save writes the cache file atomically via a tempfile-and-rename, so
// a crash mid-write never leaves a truncated or corrupt file behind.
// Embeddings are stripped from entries unless PersistEmbeddings is set.
func (c *Cache) Save(path string, f File) error {
	out := f
	out.Items = make(map[int]domain.CacheEntry, len(f.Items))
	for number, entry := range f.Items {
		if !c.PersistEmbeddings {
			entry.Embedding = nil
			entry.Score.Embedding = nil
		}
		out.Items[number] = entry
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}
