package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigRelPath = ".docbind/config.yaml"
	defaultStoreRelPath  = ".docbind/docbind.db"
)

const (
	FormatGo       = "go"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatOpenAPI  = "openapi"
)

type SourceConfig struct {
	URL       string        `yaml:"url" validate:"required,url"`
	CacheFile string        `yaml:"cache_file"`
	Timeout   time.Duration `yaml:"timeout" validate:"min=0"`
	Proxy     string        `yaml:"proxy" validate:"omitempty,url"`
	UserAgent string        `yaml:"user_agent"`
}

type ParseConfig struct {
	Container       string `yaml:"container" validate:"required"`
	StartID         string `yaml:"start_id" validate:"required"`
	EndID           string `yaml:"end_id" validate:"required"`
	SectionTag      string `yaml:"section_tag" validate:"required"`
	EndpointTag     string `yaml:"endpoint_tag" validate:"required"`
	NoteTag         string `yaml:"note_tag" validate:"required"`
	RateLimitMarker string `yaml:"rate_limit_marker"`
	NestMarker      string `yaml:"nest_marker"`
}

type OutputConfig struct {
	Dir          string   `yaml:"dir" validate:"required"`
	Package      string   `yaml:"package" validate:"required"`
	GoFile       string   `yaml:"go_file" validate:"required"`
	TreeFile     string   `yaml:"tree_file" validate:"required"`
	MarkdownFile string   `yaml:"markdown_file" validate:"required"`
	OpenAPIFile  string   `yaml:"openapi_file" validate:"required"`
	RestImport   string   `yaml:"rest_import" validate:"required"`
	Formats      []string `yaml:"formats" validate:"min=1,dive,oneof=go json markdown openapi"`
}

type FilterConfig struct {
	IgnoreSections  []string `yaml:"ignore_sections"`
	IgnoreEndpoints []string `yaml:"ignore_endpoints"`
	IgnorePaths     []string `yaml:"ignore_paths"`
}

type RedactConfig struct {
	Fields      []string `yaml:"fields"`
	Replacement string   `yaml:"replacement"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	// AllowedHosts are extra document hosts POST /api/generate may fetch
	// besides the host of source.url.
	AllowedHosts []string `yaml:"allowed_hosts"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
}

type Config struct {
	Source SourceConfig `yaml:"source"`
	Parse  ParseConfig  `yaml:"parse"`
	Output OutputConfig `yaml:"output"`
	Filter FilterConfig `yaml:"filter"`
	Redact RedactConfig `yaml:"redact"`
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// Load reads .env, then the YAML config, then applies env overrides.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.SetDefaults()

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		configPath = filepath.Join(home, defaultConfigRelPath)
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		cfg.SetDefaults()
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func (c *Config) SetDefaults() {
	if c.Source.URL == "" {
		c.Source.URL = "https://www.okx.com/docs-v5/en/"
	}
	if c.Source.CacheFile == "" {
		c.Source.CacheFile = filepath.Join(os.TempDir(), "docbind-okx.html")
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 5 * time.Second
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = "docbind/1.0"
	}
	if c.Parse.Container == "" {
		c.Parse.Container = ".page-wrapper .content"
	}
	if c.Parse.StartID == "" {
		c.Parse.StartID = "rest-api-account"
	}
	if c.Parse.EndID == "" {
		c.Parse.EndID = "rest-api-status"
	}
	if c.Parse.SectionTag == "" {
		c.Parse.SectionTag = "h2"
	}
	if c.Parse.EndpointTag == "" {
		c.Parse.EndpointTag = "h3"
	}
	if c.Parse.NoteTag == "" {
		c.Parse.NoteTag = "h4"
	}
	if c.Parse.RateLimitMarker == "" {
		c.Parse.RateLimitMarker = "Rate Limit"
	}
	if c.Parse.NestMarker == "" {
		c.Parse.NestMarker = ">"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.Package == "" {
		c.Output.Package = "okxapi"
	}
	if c.Output.GoFile == "" {
		c.Output.GoFile = "api.go"
	}
	if c.Output.TreeFile == "" {
		c.Output.TreeFile = "api.json"
	}
	if c.Output.MarkdownFile == "" {
		c.Output.MarkdownFile = "api.md"
	}
	if c.Output.OpenAPIFile == "" {
		c.Output.OpenAPIFile = "openapi.yaml"
	}
	if c.Output.RestImport == "" {
		c.Output.RestImport = "github.com/yourorg/docbind/pkg/rest"
	}
	if len(c.Output.Formats) == 0 {
		c.Output.Formats = []string{FormatGo, FormatJSON, FormatMarkdown, FormatOpenAPI}
	}
	if c.Redact.Replacement == "" {
		c.Redact.Replacement = "***REDACTED***"
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// StorePath resolves the run database location, defaulting under the
// user's home directory.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, defaultStoreRelPath), nil
}

// HasFormat reports whether output format f is enabled.
func (c *Config) HasFormat(f string) bool {
	for _, v := range c.Output.Formats {
		if strings.EqualFold(v, f) {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ValidateGenerate enforces generate-specific requirements.
func (c *Config) ValidateGenerate() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := ensureWritableDir(c.Output.Dir); err != nil {
		return fmt.Errorf("output.dir not writable: %w", err)
	}
	return nil
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func applyEnvOverrides(c *Config) {
	setString(&c.Source.URL, "DOCBIND_SOURCE_URL")
	setString(&c.Source.CacheFile, "DOCBIND_SOURCE_CACHE_FILE")
	setDuration(&c.Source.Timeout, "DOCBIND_SOURCE_TIMEOUT")
	setString(&c.Source.Proxy, "DOCBIND_SOURCE_PROXY")
	setString(&c.Parse.StartID, "DOCBIND_PARSE_START_ID")
	setString(&c.Parse.EndID, "DOCBIND_PARSE_END_ID")
	setString(&c.Output.Dir, "DOCBIND_OUTPUT_DIR")
	setString(&c.Output.Package, "DOCBIND_OUTPUT_PACKAGE")
	setString(&c.Store.Path, "DOCBIND_STORE_PATH")
	setString(&c.Server.Host, "DOCBIND_SERVER_HOST")
	setInt(&c.Server.Port, "DOCBIND_SERVER_PORT")
	setString(&c.Log.Level, "DOCBIND_LOG_LEVEL")

	if c.Source.Proxy == "" {
		for _, key := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
			if v := os.Getenv(key); v != "" {
				c.Source.Proxy = v
				break
			}
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
