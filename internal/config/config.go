// Package config loads openapi-mcp settings from TOML files, .env, the environment and flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/openapi-mcp/internal/common"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// DefaultConfigFiles are probed, in order, when no -config flag is given. First match wins.
var DefaultConfigFiles = []string{"openapi-mcp.toml", "config/openapi-mcp.toml"}

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig         `toml:"server"`
	Upstream UpstreamConfig       `toml:"upstream"`
	Catalog  CatalogConfig        `toml:"catalog"`
	Logging  common.LoggingConfig `toml:"logging"`
}

// ServerConfig contains MCP server settings.
type ServerConfig struct {
	Name      string `toml:"name"`
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Transport string `toml:"transport"`

	// CallTimeout bounds one tool call, including the upstream request. Empty disables it.
	CallTimeout string `toml:"call_timeout"`
}

// UpstreamConfig describes the API being bridged.
type UpstreamConfig struct {
	BaseURL         string            `toml:"base_url"`
	DocURL          string            `toml:"doc_url"`
	Timeout         string            `toml:"timeout"`
	FetchRetries    int               `toml:"fetch_retries"`
	FetchRetryDelay string            `toml:"fetch_retry_delay"`
	RateLimit       float64           `toml:"rate_limit"`
	Burst           int               `toml:"burst"`
	Headers         map[string]string `toml:"headers"`
}

// CatalogConfig selects which operations become tools.
type CatalogConfig struct {
	IncludeTags       []string `toml:"include_tags"`
	ExcludeTags       []string `toml:"exclude_tags"`
	IncludeOperations []string `toml:"include_operations"`
	ExcludeOperations []string `toml:"exclude_operations"`
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> .env -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// godotenv.Load never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnvOverrides(config)

	return config, nil
}

// DiscoverConfigFile returns the first default config file that exists, or "".
func DiscoverConfigFile() string {
	for _, path := range DefaultConfigFiles {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// firstEnv returns the first non-empty variable among names.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// applyEnvOverrides applies OPENAPI_MCP_* environment variable overrides to config.
// BASE_URL and DOC_URL are accepted unprefixed as well.
func applyEnvOverrides(config *Config) {
	if v := firstEnv("OPENAPI_MCP_BASE_URL", "BASE_URL"); v != "" {
		config.Upstream.BaseURL = v
	}
	if v := firstEnv("OPENAPI_MCP_DOC_URL", "DOC_URL"); v != "" {
		config.Upstream.DocURL = v
	}
	if v := os.Getenv("OPENAPI_MCP_TIMEOUT"); v != "" {
		config.Upstream.Timeout = v
	}
	if v := os.Getenv("OPENAPI_MCP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Upstream.RateLimit = f
		}
	}
	if v := os.Getenv("OPENAPI_MCP_TRANSPORT"); v != "" {
		config.Server.Transport = v
	}
	if v := os.Getenv("OPENAPI_MCP_SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			config.Server.Port = p
		}
	}
	if v := os.Getenv("OPENAPI_MCP_SERVER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("OPENAPI_MCP_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("OPENAPI_MCP_INCLUDE_TAGS"); v != "" {
		config.Catalog.IncludeTags = splitList(v)
	}
	if v := os.Getenv("OPENAPI_MCP_EXCLUDE_TAGS"); v != "" {
		config.Catalog.ExcludeTags = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FlagOverrides carries command-line values; zero values leave config untouched.
type FlagOverrides struct {
	Port    int
	Host    string
	Stdio   bool
	DocURL  string
	BaseURL string
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, f FlagOverrides) {
	if f.Port > 0 {
		config.Server.Port = f.Port
	}
	if f.Host != "" {
		config.Server.Host = f.Host
	}
	if f.Stdio {
		config.Server.Transport = TransportStdio
	}
	if f.DocURL != "" {
		config.Upstream.DocURL = f.DocURL
	}
	if f.BaseURL != "" {
		config.Upstream.BaseURL = f.BaseURL
	}
}

// Validate returns every problem found; an empty slice means the config is usable.
func (c *Config) Validate() []string {
	var issues []string
	if c.Upstream.DocURL == "" {
		issues = append(issues, "upstream.doc_url is required (set DOC_URL or -doc-url)")
	}
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		issues = append(issues, fmt.Sprintf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport))
	}
	if c.Server.Transport == TransportHTTP && (c.Server.Port < 1 || c.Server.Port > 65535) {
		issues = append(issues, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	for _, d := range []struct{ name, value string }{
		{"upstream.timeout", c.Upstream.Timeout},
		{"upstream.fetch_retry_delay", c.Upstream.FetchRetryDelay},
		{"server.call_timeout", c.Server.CallTimeout},
	} {
		if d.value == "" {
			continue
		}
		if v, err := time.ParseDuration(d.value); err != nil || v < 0 {
			issues = append(issues, fmt.Sprintf("%s %q is not a valid duration", d.name, d.value))
		}
	}
	if c.Upstream.FetchRetries < 0 {
		issues = append(issues, "upstream.fetch_retries must not be negative")
	}
	if c.Upstream.RateLimit < 0 {
		issues = append(issues, "upstream.rate_limit must not be negative")
	}
	if c.Upstream.Burst < 0 {
		issues = append(issues, "upstream.burst must not be negative")
	}
	return issues
}

// UpstreamTimeout returns the HTTP client timeout for upstream calls.
func (c *Config) UpstreamTimeout() time.Duration {
	return parseDuration(c.Upstream.Timeout)
}

// FetchRetryDelay returns the pause between document fetch attempts.
func (c *Config) FetchRetryDelay() time.Duration {
	return parseDuration(c.Upstream.FetchRetryDelay)
}

// CallTimeout returns the per-call deadline, zero when disabled.
func (c *Config) CallTimeout() time.Duration {
	return parseDuration(c.Server.CallTimeout)
}

// parseDuration returns zero for empty or invalid values; Validate reports the latter.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
