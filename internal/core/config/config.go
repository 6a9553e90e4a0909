// Package config provides configuration management for the sift service.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// ServerConfig holds configuration for the HTTP search API service.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	SchemaPath     string
	Namespace      string
	DefaultPerPage int
	MaxPerPage     int
	MaxFilterDepth int
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		RequestTimeout: 30 * time.Second,
		SchemaPath:     "./schema.yaml",
		Namespace:      "default",
		DefaultPerPage: 10,
		MaxPerPage:     1000,
		MaxFilterDepth: 16,
	}
}

// HMACSecrets extracts API key HMAC secrets from environment variables.
// Supports SIFT_HMAC_SECRET (single) and SIFT_HMAC_SECRET_N (rotation).
// Returns a map of secret_id -> decoded secret bytes; empty map means API
// key authentication is disabled.
// Secret IDs are 32 hex chars (UUIDv7 without hyphens) matching key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(envKey, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", envKey, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id %q found in environment variables (check SIFT_HMAC_SECRET and SIFT_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
		return nil
	}

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("SIFT_HMAC_SECRET"); val != "" {
		if err := add("SIFT_HMAC_SECRET", val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets enable rotation: old and new keys valid during migration.
	for i := 1; ; i++ {
		key := fmt.Sprintf("SIFT_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecretWithID parses the secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return secretID, secret, nil
}
