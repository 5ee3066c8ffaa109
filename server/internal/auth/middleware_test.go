package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// okHandler answers 200 "ok".
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func call(t *testing.T, mw func(http.Handler) http.Handler, path, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rr := httptest.NewRecorder()
	mw(okHandler).ServeHTTP(rr, req)
	return rr
}

func TestAPIKeyMiddleware_ModeNone_PassesThrough(t *testing.T) {
	mw := APIKeyMiddleware("none", "x-api-key", "secret")
	// No key on the request: should still pass because mode != "apikey".
	if rr := call(t, mw, "/api/v1/sources", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKeyMiddleware_EmptyKey_PassesThrough(t *testing.T) {
	// key="" means auth is not configured → allow all.
	mw := APIKeyMiddleware("apikey", "x-api-key", "")
	if rr := call(t, mw, "/api/v1/sources", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	mw := APIKeyMiddleware("apikey", "x-api-key", "secret", "/api/v1/health")

	tests := []struct {
		name   string
		path   string
		header string
		key    string
		want   int
	}{
		{"correct key", "/api/v1/sources", "x-api-key", "secret", http.StatusOK},
		{"header name is case-insensitive", "/api/v1/sources", "X-Api-Key", "secret", http.StatusOK},
		{"missing key", "/api/v1/sources", "", "", http.StatusUnauthorized},
		{"wrong key", "/api/v1/sources", "x-api-key", "wrong", http.StatusUnauthorized},
		{"key prefix", "/api/v1/sources", "x-api-key", "secre", http.StatusUnauthorized},
		{"wrong header", "/api/v1/sources", "authorization", "secret", http.StatusUnauthorized},
		{"open path", "/api/v1/health", "", "", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := call(t, mw, tc.path, tc.header, tc.key)
			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
			if tc.want == http.StatusUnauthorized && rr.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type: got %q", rr.Header().Get("Content-Type"))
			}
		})
	}
}

func TestAPIKeyMiddleware_CustomHeader(t *testing.T) {
	mw := APIKeyMiddleware("apikey", "X-Bizpulse-Key", "k")
	if rr := call(t, mw, "/ws/stream", "X-Bizpulse-Key", "k"); rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
	if rr := call(t, mw, "/ws/stream", "x-api-key", "k"); rr.Code != http.StatusUnauthorized {
		t.Errorf("default header must not be accepted: got %d", rr.Code)
	}
}
