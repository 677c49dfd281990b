package session

import "errors"

// Domain errors
var (
	// ErrInvalidCredentials is a login rejection by the authority.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMalformedResponse marks a success envelope missing expected
	// fields. It is a hard failure, never a partial success.
	ErrMalformedResponse = errors.New("malformed authority response")

	// ErrNoRefreshToken is returned when a refresh is attempted with
	// nothing to refresh.
	ErrNoRefreshToken = errors.New("no refresh token stored")

	// ErrRefreshFailed wraps a failed refresh. A failed refresh always
	// ends the session with a full logout before this is returned.
	ErrRefreshFailed = errors.New("token refresh failed")
)
