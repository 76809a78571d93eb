package auth

import (
	"crypto/subtle"
	"net/http"
)

// ModeAPIKey enables key checking.
const ModeAPIKey = "apikey"

// QueryParam is the fallback location of the key.
const QueryParam = "api_key"

// Middleware returns next wrapped with API key enforcement.
func Middleware(mode, header, key string, next http.Handler) http.Handler {
	if mode != ModeAPIKey || key == "" {
		return next
	}
	want := []byte(key)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(header)
		if got == "" {
			got = r.URL.Query().Get(QueryParam)
		}
		if got == "" {
			unauthorized(w, "missing api key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			unauthorized(w, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}` + "\n")) //nolint:errcheck
}
