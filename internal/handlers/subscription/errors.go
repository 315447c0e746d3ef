// internal/handlers/subscription/errors.go
package subscription

import (
	"errors"
	"net/http"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"
	xerrors "github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/errors"
)

// failure is the HTTP rendering of a service error.
type failure struct {
	status  int
	message string
	// withCause appends the error text to the message in every environment.
	withCause bool
}

// classify maps service errors to status codes. Order matters: processor
// transport errors are checked before the step that wrapped them.
func classify(err error) failure {
	switch {
	case errors.Is(err, xerrors.ErrInvalidInput),
		errors.Is(err, billing.ErrPlanNotFound),
		errors.Is(err, billing.ErrUserNotFound),
		errors.Is(err, billing.ErrMissingEmail):
		return failure{status: http.StatusBadRequest, message: err.Error()}

	case errors.Is(err, billing.ErrProductNotFound),
		errors.Is(err, billing.ErrPriceNotFound):
		return failure{status: http.StatusNotFound, message: "this plan is not available for purchase right now: " + err.Error()}

	case errors.Is(err, billing.ErrDiscountUnavailable):
		return failure{status: http.StatusInternalServerError, message: "could not apply promo code, please try again or remove the promo code"}

	case errors.Is(err, billing.ErrMissingCredentials):
		return failure{status: http.StatusInternalServerError, message: "payment configuration error, please contact support"}

	case errors.Is(err, billing.ErrProcessorAuth):
		return failure{status: http.StatusInternalServerError, message: "payment service authentication failed, please contact support"}

	case errors.Is(err, billing.ErrProcessorConnection):
		return failure{status: http.StatusInternalServerError, message: "payment service unreachable, please try again"}

	case errors.Is(err, billing.ErrAttachPaymentMethod):
		return failure{status: http.StatusInternalServerError, message: "could not attach payment method", withCause: true}

	case errors.Is(err, billing.ErrProcessor):
		return failure{status: http.StatusPaymentRequired, message: err.Error()}

	case errors.Is(err, billing.ErrCommitmentActive),
		errors.Is(err, xerrors.ErrConflict):
		return failure{status: http.StatusConflict, message: err.Error()}

	case errors.Is(err, xerrors.ErrForbidden):
		return failure{status: http.StatusForbidden, message: "subscription belongs to another user"}

	case errors.Is(err, xerrors.ErrNotFound):
		return failure{status: http.StatusNotFound, message: "subscription not found"}
	}
	return failure{status: http.StatusInternalServerError, message: "internal server error"}
}

func (f failure) text(err error) string {
	if f.withCause && err != nil {
		return f.message + ": " + err.Error()
	}
	return f.message
}
