// internal/repository/cache/event_guard.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"

	"github.com/redis/go-redis/v9"
)

const (
	eventProcessingTTL = 2 * time.Minute
	eventDoneTTL       = 24 * time.Hour

	eventProcessing = "processing"
	eventDone       = "done"
)

// EventGuard claims webhook event ids so a redelivered event that was already
// applied short-circuits. The durable store stays the source of idempotency;
// the guard only saves processor round trips.
type EventGuard struct {
	client *redis.Client
}

func NewEventGuard(client *redis.Client) *EventGuard {
	return &EventGuard{client: client}
}

func eventKey(eventID string) string {
	return "webhook:event:" + eventID
}

// Claim takes a short processing claim on eventID. A claim left behind by a
// crashed worker expires after eventProcessingTTL.
func (g *EventGuard) Claim(ctx context.Context, eventID string) (billing.ClaimState, error) {
	key := eventKey(eventID)
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := g.client.SetNX(ctx, key, eventProcessing, eventProcessingTTL).Result()
		if err != nil {
			return billing.ClaimInFlight, fmt.Errorf("failed to claim event: %w", err)
		}
		if ok {
			return billing.ClaimAcquired, nil
		}

		state, err := g.client.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			// expired between the two calls
			continue
		case err != nil:
			return billing.ClaimInFlight, fmt.Errorf("failed to read event claim: %w", err)
		case state == eventDone:
			return billing.ClaimDone, nil
		default:
			return billing.ClaimInFlight, nil
		}
	}
	return billing.ClaimInFlight, nil
}

// Complete marks eventID applied so later deliveries are skipped.
func (g *EventGuard) Complete(ctx context.Context, eventID string) error {
	if err := g.client.Set(ctx, eventKey(eventID), eventDone, eventDoneTTL).Err(); err != nil {
		return fmt.Errorf("failed to complete event: %w", err)
	}
	return nil
}

// Release forgets a claim so the processor's retry is processed again.
func (g *EventGuard) Release(ctx context.Context, eventID string) error {
	return g.client.Del(ctx, eventKey(eventID)).Err()
}
