package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

const testSecretID = "0123456789abcdef0123456789abcdef"

// fakeQueries stubs the named-query interface. Get fills the caller's result
// struct via reflection so the fake stays independent of its exact shape.
type fakeQueries struct {
	missing   bool
	revoked   bool
	lastUsed  sql.NullTime
	getErr    error
	wantHash  string
	gotHash   string
	execCalls int
}

func (f *fakeQueries) Get(name string, dest interface{}, args ...interface{}) error {
	if len(args) > 0 {
		if h, ok := args[0].(string); ok {
			f.gotHash = h
		}
	}
	if f.getErr != nil {
		return f.getErr
	}
	if f.missing {
		return sql.ErrNoRows
	}

	v := reflect.ValueOf(dest).Elem()
	v.FieldByName("APIKeyID").SetString("key-1")
	if f.revoked {
		v.FieldByName("RevokedAt").Set(reflect.ValueOf(sql.NullTime{Time: time.Now(), Valid: true}))
	}
	v.FieldByName("LastUsedAt").Set(reflect.ValueOf(f.lastUsed))
	return nil
}

func (f *fakeQueries) Exec(name string, args ...interface{}) (sql.Result, error) {
	f.execCalls++
	return fakeResult{}, nil
}

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

func validKey(t *testing.T) string {
	t.Helper()
	key, _, err := GenerateAPIKey(testSecretID, testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestParseAPIKey(t *testing.T) {
	key := validKey(t)
	secretID, randomData, err := ParseAPIKey(key)
	if err != nil {
		t.Fatalf("ParseAPIKey() error = %v, want nil", err)
	}
	if secretID != testSecretID {
		t.Errorf("secretID = %v, want %v", secretID, testSecretID)
	}
	if len(randomData) != 64 {
		t.Errorf("len(randomData) = %v, want 64", len(randomData))
	}

	invalid := []string{
		"",
		"sift-v1-short-data",
		"sift-v2-" + testSecretID + "-" + strings.Repeat("a", 64),
		"tk-v1-" + testSecretID + "-" + strings.Repeat("a", 64),
		"sift-v1-" + testSecretID + "-" + strings.Repeat("G", 64),
		"sift-v1-" + strings.ToUpper(testSecretID) + "-" + strings.Repeat("a", 64),
	}
	for _, k := range invalid {
		if _, _, err := ParseAPIKey(k); !errors.Is(err, ErrInvalidKeyFormat) {
			t.Errorf("ParseAPIKey(%q) error = %v, want ErrInvalidKeyFormat", k, err)
		}
	}
}

func TestGenerateAPIKey_HashMatches(t *testing.T) {
	key, hash, err := GenerateAPIKey(testSecretID, testSecret)
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if ComputeHMAC(testSecret, key) != hash {
		t.Error("stored hash does not match recomputed HMAC")
	}

	// Fresh randomness per key.
	key2, _, err := GenerateAPIKey(testSecretID, testSecret)
	if err != nil {
		t.Fatal(err)
	}
	if key == key2 {
		t.Error("two generated keys are identical")
	}
}

func TestAuthenticate(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		q := &fakeQueries{}
		a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, q)
		key := validKey(t)

		if err := a.Authenticate(key); err != nil {
			t.Fatalf("Authenticate() error = %v, want nil", err)
		}
		if q.gotHash != ComputeHMAC(testSecret, key) {
			t.Error("lookup used wrong hash")
		}
		if q.execCalls != 1 {
			t.Errorf("execCalls = %v, want 1 last-used update", q.execCalls)
		}
	})

	t.Run("unknown secret id", func(t *testing.T) {
		a := NewAuthenticator(map[string][]byte{}, &fakeQueries{})
		if err := a.Authenticate(validKey(t)); !errors.Is(err, ErrUnknownKey) {
			t.Errorf("Authenticate() error = %v, want ErrUnknownKey", err)
		}
	})

	t.Run("hash not found", func(t *testing.T) {
		a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, &fakeQueries{missing: true})
		if err := a.Authenticate(validKey(t)); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Authenticate() error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("revoked key", func(t *testing.T) {
		a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, &fakeQueries{revoked: true})
		if err := a.Authenticate(validKey(t)); !errors.Is(err, ErrKeyRevoked) {
			t.Errorf("Authenticate() error = %v, want ErrKeyRevoked", err)
		}
	})

	t.Run("recent last-used skips update", func(t *testing.T) {
		q := &fakeQueries{lastUsed: sql.NullTime{Time: time.Now(), Valid: true}}
		a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, q)
		if err := a.Authenticate(validKey(t)); err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if q.execCalls != 0 {
			t.Errorf("execCalls = %v, want 0", q.execCalls)
		}
	})
}

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		queries    *fakeQueries
		key        string
		wantStatus int
	}{
		{"missing header", &fakeQueries{}, "", http.StatusUnauthorized},
		{"garbage key", &fakeQueries{}, "not-a-key", http.StatusUnauthorized},
		{"unknown hash", &fakeQueries{missing: true}, "", http.StatusUnauthorized},
		{"revoked", &fakeQueries{revoked: true}, "", http.StatusForbidden},
		{"database failure", &fakeQueries{getErr: errors.New("connection refused")}, "", http.StatusServiceUnavailable},
		{"valid", &fakeQueries{}, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, tt.queries)
			handler := a.Middleware(next)

			req := httptest.NewRequest(http.MethodPost, "/v1/search", nil)
			switch tt.name {
			case "missing header":
			case "garbage key":
				req.Header.Set("X-Api-Key", tt.key)
			default:
				req.Header.Set("X-Api-Key", validKey(t))
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", rec.Code, tt.wantStatus)
			}
		})
	}
}
