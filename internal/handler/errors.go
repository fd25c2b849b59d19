package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yourusername/complaint-tracker/internal/pkg/errors"
	"github.com/yourusername/complaint-tracker/internal/service"
)

// describeAuthError maps an authentication failure to the HTTP status, the
// machine-readable error type and a message safe to show the visitor.
// Provider and transport details never reach the message.
func describeAuthError(err error) (int, string, string) {
	var transportErr *service.TransportError
	var providerErr *service.ProviderError

	switch {
	case errors.Is(err, service.ErrCSRF):
		return http.StatusForbidden, "csrf_state_mismatch", "Your sign-in request expired or could not be verified. Please try again."
	case errors.Is(err, service.ErrFederationDenied):
		return http.StatusUnauthorized, "federation_denied", "Google sign-in was cancelled."
	case errors.Is(err, service.ErrIdentityUnverified):
		return http.StatusForbidden, "identity_unverified", "Your Google account email address is not verified."
	case errors.Is(err, service.ErrGoogleTokenVerificationFailed):
		return http.StatusUnauthorized, "token_invalid", "Google sign-in could not be verified."
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "Invalid username or password."
	case errors.Is(err, apperrors.ErrConflict) && errors.Is(err, apperrors.ErrValidation):
		return http.StatusConflict, "conflict", validationMessage(err)
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, "validation_error", validationMessage(err)
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthenticated", "Please sign in to continue."
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, "provider_unavailable", "Google could not be reached. Please try again later."
	case errors.As(err, &providerErr):
		return http.StatusBadGateway, "provider_error", "Google sign-in failed. Please try again."
	default:
		return http.StatusInternalServerError, "internal_server_error", "Something went wrong. Please try again."
	}
}

// validationMessage drops the sentinel prefixes from a validation error
func validationMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{apperrors.ErrValidation.Error() + ": ", apperrors.ErrConflict.Error() + ": "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}

// handleComplaintError answers a failed complaint operation with JSON
func handleComplaintError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Complaint not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": strings.TrimPrefix(err.Error(), apperrors.ErrConflict.Error()+": "), "error_type": "conflict"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err), "error_type": "validation_error"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden", "error_type": "forbidden"})
	default:
		log.Printf("[ComplaintHandler] internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
	}
}
