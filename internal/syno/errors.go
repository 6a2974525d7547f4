package syno

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoBaseURL is returned when a remote call is attempted before the
// DSM base URL has been configured.
var ErrNoBaseURL = errors.New("remote base url not configured")

// Synology Web API error codes that mean the session token is no longer
// usable and a re-login is required.
const (
	codeInsufficientPrivilege = 105
	codeSessionTimeout        = 106
	codeSessionInterrupted    = 107
	codeSIDNotFound           = 119
)

// APIError is a structured error returned by the Synology Web API
// (success=false with an error code).
type APIError struct {
	API  string
	Code int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: api error code %d", e.API, e.Code)
}

// IsSessionExpired classifies an error as session expiry. The structured
// error code is authoritative; the substring heuristic is kept only as a
// fallback for transports that surface free-text errors. Plain numeric
// content ("message 119 failed") is deliberately not matched.
func IsSessionExpired(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeInsufficientPrivilege, codeSessionTimeout, codeSessionInterrupted, codeSIDNotFound:
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "session timeout") || strings.Contains(msg, "invalid session")
}
