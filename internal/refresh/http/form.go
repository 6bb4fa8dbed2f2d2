package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tokenrefresh/pkg/refreshsdk"
)

// parseForm enforces the form encoding OAuth2 endpoints require and parses
// the body. It writes the error response itself and reports false on
// failure.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		refreshsdk.ErrInvalidContentType.WriteError(w)
		return false
	}

	if err := r.ParseForm(); err != nil {
		refreshsdk.ErrInvalidFormBody.WriteError(w)
		return false
	}
	return true
}
