package service

import (
	"errors"
	"fmt"
)

// Auth flow errors, mapped by handlers to stable error_type values.
var (
	// ErrCSRF means the callback state did not match the one bound to the session.
	ErrCSRF = errors.New("csrf_state_mismatch")
	// ErrFederationDenied means the provider redirected back with an error parameter.
	ErrFederationDenied = errors.New("federation_denied")
	// ErrIdentityUnverified means the provider did not vouch for the email address.
	ErrIdentityUnverified = errors.New("identity_unverified")
	// ErrInvalidCredentials means the username/password pair did not match.
	ErrInvalidCredentials = errors.New("invalid_credentials")
	// ErrGoogleTokenVerificationFailed means a Google ID token was rejected.
	ErrGoogleTokenVerificationFailed = errors.New("google_token_verification_failed")
)

// ProviderError is returned when the identity provider answered but refused
// the request or returned an unusable payload.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
	Reason     string
}

func (e *ProviderError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("provider %s: %s (status=%d)", e.Op, e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("provider %s: status=%d body=%s", e.Op, e.StatusCode, e.Body)
}

// TransportError is returned when the provider could not be reached or its
// response could not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider %s transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err is, or wraps, a *ProviderError
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsTransportError reports whether err is, or wraps, a *TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
