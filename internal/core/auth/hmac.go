package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseAPIKey extracts secret_id and random_data from the API key format.
// Format: sift-v1-<secret_id>-<random_data> (104 chars total).
// Returns ErrInvalidKeyFormat if the format doesn't match.
func ParseAPIKey(key string) (secretID, randomData string, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 4 || parts[0] != "sift" || parts[1] != "v1" {
		return "", "", ErrInvalidKeyFormat
	}

	secretID = parts[2]
	randomData = parts[3]

	// secret_id: 32 hex chars (UUID without hyphens); random_data: 64 hex
	// chars (256 bits).
	if len(secretID) != 32 || len(randomData) != 64 {
		return "", "", ErrInvalidKeyFormat
	}
	for _, c := range secretID + randomData {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", "", ErrInvalidKeyFormat
		}
	}

	return secretID, randomData, nil
}

// ComputeHMAC computes the hex HMAC-SHA256 signature of an API key.
// The hex form is what the api_keys.key_hash column stores.
func ComputeHMAC(secret []byte, apiKey string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(apiKey))
	return hex.EncodeToString(h.Sum(nil))
}

// FormatAPIKey constructs an API key from its components.
func FormatAPIKey(secretID, randomData string) string {
	return fmt.Sprintf("sift-v1-%s-%s", secretID, randomData)
}

// GenerateAPIKey mints a new key under the given signing secret and returns
// the plaintext key plus its stored hash. The plaintext is shown once at
// creation and never persisted.
func GenerateAPIKey(secretID string, secret []byte) (key, hash string, err error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", "", fmt.Errorf("failed to generate key material: %w", err)
	}
	key = FormatAPIKey(secretID, hex.EncodeToString(buf[:]))
	return key, ComputeHMAC(secret, key), nil
}
