// Package httpx holds the middleware and response helpers behind the token
// refresh HTTP API.
package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

// WriteJSON writes v as JSON with code. Responses are never cacheable since
// most of them carry tokens.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache marks a response as carrying token material that intermediaries
// must not store (RFC 6749 section 5.1).
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// SpaceDelimited splits the scope claim of an access token. Empty input
// yields nil so absent scopes stay out of introspection output.
func SpaceDelimited(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
