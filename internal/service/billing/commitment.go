// internal/service/billing/commitment.go
package billing

import (
	"time"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/plan"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/subscription"
)

// CommitmentEnd is start plus months calendar months, truncated to whole
// seconds so the stored date and the processor's cancel_at always agree.
func CommitmentEnd(start time.Time, months int) time.Time {
	return start.UTC().Truncate(time.Second).AddDate(0, months, 0)
}

// CancelAtUnix is the processor's auto-cancel timestamp for commitmentEnd.
func CancelAtUnix(commitmentEnd time.Time) int64 {
	return commitmentEnd.Unix()
}

// legacyEndDate approximates the end of the term as 30-day months.
func legacyEndDate(start time.Time, p plan.Plan) *time.Time {
	if !p.HasCommitment() {
		return nil
	}
	end := start.Add(time.Duration(p.CommitmentMonths) * 30 * 24 * time.Hour)
	return &end
}

// cancelAtMatches compares the processor schedule against the desired end
// at second precision.
func cancelAtMatches(actual *time.Time, desired time.Time) bool {
	return actual != nil && actual.Unix() == CancelAtUnix(desired)
}

// MapStatus converts a processor subscription status into a row status.
func MapStatus(processorStatus string) subscription.Status {
	switch processorStatus {
	case "active", "trialing":
		return subscription.StatusActive
	case "past_due", "unpaid":
		return subscription.StatusPastDue
	case "canceled", "incomplete_expired":
		return subscription.StatusCanceled
	default:
		return subscription.StatusInactive
	}
}
