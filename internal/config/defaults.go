package config

import "github.com/bobmcallan/openapi-mcp/internal/common"

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:      "openapi-mcp",
			Host:      "localhost",
			Port:      4250,
			Transport: TransportStdio,
		},
		Upstream: UpstreamConfig{
			Timeout:         "120s",
			FetchRetries:    3,
			FetchRetryDelay: "2s",
			Burst:           1,
			Headers:         map[string]string{},
		},
		Logging: common.LoggingConfig{
			Level:      "info",
			Outputs:    []string{"console"},
			FilePath:   "logs/openapi-mcp.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}
