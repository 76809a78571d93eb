// Package auth guards the monitor's HTTP surface with an optional API key.
//
// Middleware(mode, header, key, next) passes every request through when mode
// is not "apikey" or key is empty. Otherwise the key must be presented in the
// named header, or in the api_key query parameter for WebSocket clients that
// cannot set headers. Failures get 401 with a JSON error body.
package auth
