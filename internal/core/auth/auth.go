// Package auth provides HMAC-based API key authentication for the HTTP API.
package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Queries defines the database operations needed for authentication.
// Implemented by *db.Queries to allow query loading via LoadQueries().
type Queries interface {
	Get(name string, dest interface{}, args ...interface{}) error
	Exec(name string, args ...interface{}) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds an in-memory secret map for O(1) lookup and named queries for key
// verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
}

// NewAuthenticator creates an authenticator with HMAC secrets and queries.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{secrets: secrets, queries: queries}
}

// Authenticate validates an API key against the stored key hashes.
func (a *Authenticator) Authenticate(apiKey string) error {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return ErrUnknownKey
	}

	computedHash := ComputeHMAC(secret, apiKey)

	var result struct {
		APIKeyID   string       `db:"api_key_id"`
		Label      string       `db:"label"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}
	err = a.queries.Get("get-api-key-by-hash", &result, computedHash)
	if err == sql.ErrNoRows {
		return ErrInvalidKey
	}
	if err != nil {
		return err
	}

	if result.RevokedAt.Valid {
		return ErrKeyRevoked
	}

	// 1-minute throttle reduces write amplification for busy clients.
	if shouldUpdateLastUsed(result.LastUsedAt) {
		_, _ = a.queries.Exec("update-api-key-last-used", time.Now().UTC(), result.APIKeyID)
	}

	return nil
}

func shouldUpdateLastUsed(lastUsed sql.NullTime) bool {
	if !lastUsed.Valid {
		return true
	}
	return time.Since(lastUsed.Time) > time.Minute
}

// Middleware returns HTTP middleware that authenticates every request via
// the X-Api-Key header.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-Api-Key")
		if apiKey == "" {
			writeAuthError(w, http.StatusUnauthorized, ErrMissingKey)
			return
		}

		if err := a.Authenticate(apiKey); err != nil {
			switch {
			case errors.Is(err, ErrKeyRevoked):
				writeAuthError(w, http.StatusForbidden, err)
			case errors.Is(err, ErrInvalidKeyFormat),
				errors.Is(err, ErrUnknownKey),
				errors.Is(err, ErrInvalidKey):
				writeAuthError(w, http.StatusUnauthorized, err)
			default:
				// Database failure: don't leak detail, don't claim the key is bad.
				writeAuthError(w, http.StatusServiceUnavailable, errors.New("authentication unavailable"))
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
