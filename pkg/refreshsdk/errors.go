package refreshsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/tokenrefresh/pkg/httpx"
)

// OAuth2 error codes (RFC 6749, RFC 6750).
const (
	ErrorCodeInvalidRequest         = "invalid_request"
	ErrorCodeInvalidGrant           = "invalid_grant"
	ErrorCodeUnsupportedGrantType   = "unsupported_grant_type"
	ErrorCodeInvalidToken           = "invalid_token"
	ErrorCodeServerError            = "server_error"
	ErrorCodeTemporarilyUnavailable = "temporarily_unavailable"
)

// OAuth2Error is an RFC 6749 error response. Handlers write it, the client
// returns it.
type OAuth2Error struct {
	// StatusCode is the HTTP status the error travels with.
	StatusCode int `json:"-"`

	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Temporary reports whether retrying later may succeed.
func (e *OAuth2Error) Temporary() bool {
	return e.Code == ErrorCodeTemporarilyUnavailable || e.StatusCode == http.StatusServiceUnavailable
}

// WriteError writes e as an OAuth2 JSON error response.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	if e.StatusCode == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	httpx.WriteJSON(w, e.StatusCode, ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	})
}

var (
	ErrInvalidRequest = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidGrant covers unknown, consumed, revoked and expired refresh
	// tokens alike. The caller cannot tell them apart.
	ErrInvalidGrant = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidGrant,
		Description: "the refresh token is invalid, expired or revoked",
	}

	ErrUnsupportedGrantType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedGrantType,
		Description: "grant type not supported",
	}

	ErrInvalidToken = &OAuth2Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid, expired or revoked",
	}

	ErrServerError = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrTemporarilyUnavailable = &OAuth2Error{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeTemporarilyUnavailable,
		Description: "the request could not be completed, try again later",
	}

	ErrInvalidContentType = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "content-type must be application/x-www-form-urlencoded",
	}

	ErrInvalidFormBody = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "invalid form body",
	}
)

// NewOAuth2Error builds an error with a custom description.
func NewOAuth2Error(statusCode int, code, description string) *OAuth2Error {
	return &OAuth2Error{StatusCode: statusCode, Code: code, Description: description}
}

// parseErrorResponse turns a non-2xx response into an *OAuth2Error. Bodies
// that are not OAuth2 errors become a server_error with the HTTP status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	// Bearer failures carry no body, only a WWW-Authenticate header.
	if resp.StatusCode == http.StatusUnauthorized {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        ErrorCodeInvalidToken,
			Description: ErrInvalidToken.Description,
		}
	}

	return &OAuth2Error{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
