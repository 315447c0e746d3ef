// internal/processor/stripe/errors.go
package stripe

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	domain "github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"

	"github.com/sony/gobreaker/v2"
	stripego "github.com/stripe/stripe-go/v76"
)

// Failure classes logged under the "failure" field.
const (
	FailureConnection     = "connection"
	FailureAuthentication = "authentication"
	FailureRequest        = "request"
)

// mapError converts a stripe-go error into a billing sentinel, keeping the
// processor message for operators.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open: %w", domain.ErrProcessorConnection, err)
	}

	var serr *stripego.Error
	if !errors.As(err, &serr) {
		return fmt.Errorf("%w: %w", domain.ErrProcessorConnection, err)
	}

	switch {
	case serr.HTTPStatusCode == http.StatusUnauthorized || serr.HTTPStatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrProcessorAuth, serr.Msg)
	case serr.Type == stripego.ErrorTypeAPI || serr.HTTPStatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", domain.ErrProcessorConnection, serr.Msg)
	case serr.Code == stripego.ErrorCodeResourceMissing || serr.HTTPStatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrProcessorNotFound, serr.Msg)
	case strings.Contains(strings.ToLower(serr.Msg), "already been attached"):
		return fmt.Errorf("%w: %s", domain.ErrAlreadyAttached, serr.Msg)
	default:
		return fmt.Errorf("%w: %s", domain.ErrProcessor, serr.Msg)
	}
}

// FailureClass tells operators whether err points at credentials or at the
// network.
func FailureClass(err error) string {
	switch {
	case errors.Is(err, domain.ErrProcessorAuth), errors.Is(err, domain.ErrMissingCredentials):
		return FailureAuthentication
	case errors.Is(err, domain.ErrProcessorConnection):
		return FailureConnection
	default:
		return FailureRequest
	}
}

// tripsBreaker reports whether err counts against the circuit. Request
// errors such as declined cards or missing resources say nothing about the
// processor's health.
func tripsBreaker(err error) bool {
	if err == nil {
		return false
	}
	var serr *stripego.Error
	if !errors.As(err, &serr) {
		return true
	}
	return serr.Type == stripego.ErrorTypeAPI || serr.HTTPStatusCode >= http.StatusInternalServerError
}
