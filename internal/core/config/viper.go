package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from a file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	// Defaults matching DefaultServerConfig
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.schema_path", "./schema.yaml")
	v.SetDefault("server.namespace", "default")
	v.SetDefault("server.default_per_page", 10)
	v.SetDefault("server.max_per_page", 1000)
	v.SetDefault("server.max_filter_depth", 16)

	// Bind environment variables with SIFT_ prefix
	v.SetEnvPrefix("SIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only per 12-factor principles.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		SchemaPath:     v.GetString("server.schema_path"),
		Namespace:      v.GetString("server.namespace"),
		DefaultPerPage: v.GetInt("server.default_per_page"),
		MaxPerPage:     v.GetInt("server.max_per_page"),
		MaxFilterDepth: v.GetInt("server.max_filter_depth"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range and positive values for timeouts and limits.
func validateConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.DefaultPerPage <= 0 {
		return fmt.Errorf("default_per_page must be positive, got %d", cfg.DefaultPerPage)
	}
	if cfg.MaxPerPage < cfg.DefaultPerPage {
		return fmt.Errorf("max_per_page must be >= default_per_page, got %d", cfg.MaxPerPage)
	}
	if cfg.MaxFilterDepth <= 0 {
		return fmt.Errorf("max_filter_depth must be positive, got %d", cfg.MaxFilterDepth)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("hmac_secret") || v.IsSet("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use SIFT_HMAC_SECRET environment variable)")
	}
	return nil
}
