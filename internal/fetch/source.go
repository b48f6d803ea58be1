package fetch

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/yourorg/docbind/internal/config"
)

// FromSource builds a fetcher config from the source section of the
// application config.
func FromSource(c config.SourceConfig) Config {
	return Config{
		URL:       c.URL,
		CacheFile: c.CacheFile,
		Timeout:   c.Timeout,
		Proxy:     c.Proxy,
		UserAgent: c.UserAgent,
	}
}

// CachePathFor names a cache file for url next to the configured one, so a
// document fetched from another URL never shadows the default cache.
func CachePathFor(defaultCache, url string) string {
	hash := sha256.Sum256([]byte(url))
	return filepath.Join(filepath.Dir(defaultCache), fmt.Sprintf("docbind-%x.html", hash[:8]))
}

// Open returns a fetcher for the source config, dropping the cache first
// when refresh is set.
func Open(c config.SourceConfig, refresh bool, logger zerolog.Logger) (*Fetcher, error) {
	f, err := New(FromSource(c), logger)
	if err != nil {
		return nil, err
	}
	if refresh {
		if err := f.Refresh(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}
