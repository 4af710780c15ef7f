package auth

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownStrategy      = errors.New("unknown auth strategy")
	ErrAuthorizationDenied  = errors.New("user denied authorization")
	ErrMissingToken         = errors.New("callback is missing oauth_token")
	ErrRequestTokenNotFound = errors.New("failed to find request token in session")
	ErrVerificationFailed   = errors.New("user verification failed")
)

// InternalOAuthError wraps a failure raised while talking to the provider
// on the server side of the handshake.
type InternalOAuthError struct {
	Message string
	Err     error
}

// NewInternalOAuthError wraps err with a descriptive message.
func NewInternalOAuthError(message string, err error) *InternalOAuthError {
	return &InternalOAuthError{Message: message, Err: err}
}

func (e *InternalOAuthError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *InternalOAuthError) Unwrap() error {
	return e.Err
}

// StatusError reports a provider response with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}
