package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"github.com/yourorg/docbind/internal/fsutil"
)

const DefaultUserAgent = "docbind/1.0"

var ErrHTTPStatus = errors.New("unexpected http status")

// Config describes where the document lives and how to request it.
type Config struct {
	URL       string        `validate:"required,url"`
	CacheFile string        `validate:"omitempty"`
	Timeout   time.Duration `validate:"min=0"`
	Proxy     string        `validate:"omitempty,url"`
	UserAgent string
}

// Fetcher retrieves the reference document once and keeps it in a cache
// file. A cache file that exists is used as-is; the network is skipped.
type Fetcher struct {
	cfg    Config
	client *resty.Client
	logger zerolog.Logger
}

// New validates cfg and builds a Fetcher with a resty client.
func New(cfg Config, logger zerolog.Logger) (*Fetcher, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid fetch config: %w", err)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	logger = logger.With().Str("component", "fetch").Logger()

	client := resty.New()
	client.SetRetryCount(0)
	client.SetHeader("User-Agent", cfg.UserAgent)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.Proxy != "" {
		client.SetProxy(cfg.Proxy)
	}
	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug().
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Msg("http response")
		return nil
	})

	return &Fetcher{cfg: cfg, client: client, logger: logger}, nil
}

// Fetch returns the document bytes, from the cache file when present.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	if f.cfg.CacheFile != "" {
		data, err := os.ReadFile(f.cfg.CacheFile)
		if err == nil {
			f.logger.Debug().Str("cache", f.cfg.CacheFile).Int("size", len(data)).Msg("using cached document")
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read cache: %w", err)
		}
	}

	f.logger.Info().Str("url", f.cfg.URL).Msg("fetching document")
	resp, err := f.client.R().SetContext(ctx).Get(f.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.cfg.URL, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s returned %d", ErrHTTPStatus, f.cfg.URL, resp.StatusCode())
	}
	data := resp.Bytes()

	if f.cfg.CacheFile != "" {
		if err := fsutil.WriteFile(f.cfg.CacheFile, data, 0o644); err != nil {
			return nil, fmt.Errorf("write cache: %w", err)
		}
	}
	return data, nil
}

// Refresh drops the cache file so the next Fetch goes to the network.
func (f *Fetcher) Refresh() error {
	if f.cfg.CacheFile == "" {
		return nil
	}
	if err := os.Remove(f.cfg.CacheFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache: %w", err)
	}
	return nil
}

func (f *Fetcher) Close() error {
	return f.client.Close()
}
