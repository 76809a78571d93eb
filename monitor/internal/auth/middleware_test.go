package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok")) //nolint:errcheck
})

func call(t *testing.T, h http.Handler, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestMiddleware_ModeNone_PassesThrough(t *testing.T) {
	h := Middleware("none", "x-api-key", "secret", ok)
	if rr := call(t, h, "/api/v1/health", nil); rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestMiddleware_EmptyKey_PassesThrough(t *testing.T) {
	h := Middleware(ModeAPIKey, "x-api-key", "", ok)
	if rr := call(t, h, "/api/v1/health", nil); rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestMiddleware_CorrectHeader_Passes(t *testing.T) {
	h := Middleware(ModeAPIKey, "x-api-key", "supersecret", ok)
	rr := call(t, h, "/api/v1/health", map[string]string{"X-Api-Key": "supersecret"})
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("got %d %q, want 200 ok", rr.Code, rr.Body.String())
	}
}

func TestMiddleware_QueryParam_Passes(t *testing.T) {
	h := Middleware(ModeAPIKey, "x-api-key", "supersecret", ok)
	if rr := call(t, h, "/ws/stream?api_key=supersecret", nil); rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestMiddleware_WrongKey_Unauthorized(t *testing.T) {
	h := Middleware(ModeAPIKey, "x-api-key", "supersecret", ok)
	rr := call(t, h, "/api/v1/health", map[string]string{"x-api-key": "wrong"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "invalid api key") {
		t.Errorf("body: %s", rr.Body.String())
	}
}

func TestMiddleware_MissingKey_Unauthorized(t *testing.T) {
	h := Middleware(ModeAPIKey, "x-api-key", "supersecret", ok)
	rr := call(t, h, "/api/v1/health", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type: got %q", ct)
	}
}

func TestMiddleware_CustomHeader(t *testing.T) {
	h := Middleware(ModeAPIKey, "authorization-token", "k", ok)
	if rr := call(t, h, "/", map[string]string{"x-api-key": "k"}); rr.Code != http.StatusUnauthorized {
		t.Errorf("default header accepted with custom header configured: %d", rr.Code)
	}
	if rr := call(t, h, "/", map[string]string{"Authorization-Token": "k"}); rr.Code != http.StatusOK {
		t.Errorf("custom header rejected: %d", rr.Code)
	}
}
