// internal/domain/billing/errors.go
package billing

import "errors"

// Client errors
var (
	ErrPlanNotFound = errors.New("unknown plan")
	ErrUserNotFound = errors.New("user not found")
	ErrMissingEmail = errors.New("user has no email address")
)

// Configuration errors
var (
	ErrMissingCredentials = errors.New("payment processor credentials are not configured")
	ErrProductNotFound    = errors.New("no active product for plan")
	ErrPriceNotFound      = errors.New("no active price for product")
)

// Processor errors
var (
	ErrProcessorConnection = errors.New("payment processor unreachable")
	ErrProcessorAuth       = errors.New("payment processor rejected credentials")
	ErrProcessorNotFound   = errors.New("payment processor resource not found")
	ErrAlreadyAttached     = errors.New("payment method already attached")
	ErrProcessor           = errors.New("payment processor error")
)

var (
	ErrAttachPaymentMethod = errors.New("could not attach payment method")
	ErrDiscountUnavailable = errors.New("could not apply promo code")
	ErrCommitmentActive    = errors.New("subscription is within its commitment period")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMalformedEvent      = errors.New("malformed webhook event")
	ErrEventInFlight       = errors.New("webhook event is being processed")
)
