// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/subscription"
	xerrors "github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `
	id, user_id, processor_customer_id, processor_subscription_id, processor_price_id,
	status, plan, plan_id, current_period_end,
	commitment_end_date, subscription_end_date, will_cancel_after_commitment, cancel_at_period_end,
	COALESCE(promo_code, ''), created_at, updated_at`

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.ProcessorCustomerID, &s.ProcessorSubscriptionID, &s.ProcessorPriceID,
		&s.Status, &s.Plan, &s.PlanID, &s.CurrentPeriodEnd,
		&s.CommitmentEndDate, &s.SubscriptionEndDate, &s.WillCancelAfterCommitment, &s.CancelAtPeriodEnd,
		&s.PromoCode, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByProcessorID retrieves a subscription by its processor id
func (r *SubscriptionRepository) FindByProcessorID(ctx context.Context, processorSubscriptionID string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE processor_subscription_id = $1`

	s, err := scanSubscription(r.db.QueryRow(ctx, query, processorSubscriptionID))
	if err != nil && !xerrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return s, err
}

// FindLatestByUser retrieves the most recently created subscription of a user
func (r *SubscriptionRepository) FindLatestByUser(ctx context.Context, userID string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	s, err := scanSubscription(r.db.QueryRow(ctx, query, userID))
	if err != nil && !xerrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to find user subscription: %w", err)
	}
	return s, err
}

// Upsert inserts a subscription or overwrites the row with the same processor id
func (r *SubscriptionRepository) Upsert(ctx context.Context, s *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			user_id, processor_customer_id, processor_subscription_id, processor_price_id,
			status, plan, plan_id, current_period_end,
			commitment_end_date, subscription_end_date, will_cancel_after_commitment,
			cancel_at_period_end, promo_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''))
		ON CONFLICT (processor_subscription_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			processor_customer_id = EXCLUDED.processor_customer_id,
			processor_price_id = EXCLUDED.processor_price_id,
			status = EXCLUDED.status,
			plan = EXCLUDED.plan,
			plan_id = EXCLUDED.plan_id,
			current_period_end = EXCLUDED.current_period_end,
			commitment_end_date = EXCLUDED.commitment_end_date,
			subscription_end_date = EXCLUDED.subscription_end_date,
			will_cancel_after_commitment = EXCLUDED.will_cancel_after_commitment,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			promo_code = COALESCE(EXCLUDED.promo_code, subscriptions.promo_code),
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, insertArgs(s)...).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// CreateIfAbsent inserts the subscription unless its processor id is already
// recorded, and reports whether a row was inserted
func (r *SubscriptionRepository) CreateIfAbsent(ctx context.Context, s *subscription.Subscription) (bool, error) {
	query := `
		INSERT INTO subscriptions (
			user_id, processor_customer_id, processor_subscription_id, processor_price_id,
			status, plan, plan_id, current_period_end,
			commitment_end_date, subscription_end_date, will_cancel_after_commitment,
			cancel_at_period_end, promo_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''))
		ON CONFLICT (processor_subscription_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, insertArgs(s)...).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create subscription: %w", err)
	}
	return true, nil
}

func insertArgs(s *subscription.Subscription) []any {
	return []any{
		s.UserID, s.ProcessorCustomerID, s.ProcessorSubscriptionID, s.ProcessorPriceID,
		s.Status, s.Plan, s.PlanID, s.CurrentPeriodEnd,
		s.CommitmentEndDate, s.SubscriptionEndDate, s.WillCancelAfterCommitment,
		s.CancelAtPeriodEnd, s.PromoCode,
	}
}

// ApplySync writes the lifecycle fields of an existing subscription. Canceled
// rows are terminal and never match.
func (r *SubscriptionRepository) ApplySync(ctx context.Context, sync subscription.Sync) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = $1, current_period_end = $2, cancel_at_period_end = $3,
		    commitment_end_date = $4, will_cancel_after_commitment = $5, updated_at = NOW()
		WHERE processor_subscription_id = $6 AND status <> $7
	`

	result, err := r.db.Exec(ctx, query,
		sync.Status, sync.CurrentPeriodEnd, sync.CancelAtPeriodEnd,
		sync.CommitmentEndDate, sync.WillCancelAfterCommitment, sync.ProcessorSubscriptionID,
		subscription.StatusCanceled,
	)
	if err != nil {
		return false, fmt.Errorf("failed to sync subscription: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// UpdateStatusBySubscriptionID sets the status of one subscription
func (r *SubscriptionRepository) UpdateStatusBySubscriptionID(ctx context.Context, processorSubscriptionID string, status subscription.Status) (int64, error) {
	query := `UPDATE subscriptions SET status = $1, updated_at = NOW() WHERE processor_subscription_id = $2`

	result, err := r.db.Exec(ctx, query, status, processorSubscriptionID)
	if err != nil {
		return 0, fmt.Errorf("failed to update status: %w", err)
	}
	return result.RowsAffected(), nil
}

// UpdateStatusByCustomerID sets the status of every live subscription of a customer
func (r *SubscriptionRepository) UpdateStatusByCustomerID(ctx context.Context, processorCustomerID string, status subscription.Status) (int64, error) {
	query := `
		UPDATE subscriptions SET status = $1, updated_at = NOW()
		WHERE processor_customer_id = $2 AND status <> $3
	`

	result, err := r.db.Exec(ctx, query, status, processorCustomerID, subscription.StatusCanceled)
	if err != nil {
		return 0, fmt.Errorf("failed to update status: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *SubscriptionRepository) SetCancelAtPeriodEnd(ctx context.Context, processorSubscriptionID string, cancel bool) error {
	query := `UPDATE subscriptions SET cancel_at_period_end = $1, updated_at = NOW() WHERE processor_subscription_id = $2`

	result, err := r.db.Exec(ctx, query, cancel, processorSubscriptionID)
	if err != nil {
		return fmt.Errorf("failed to update cancel_at_period_end: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// ListWithActiveCommitment returns live subscriptions whose commitment ends after now
func (r *SubscriptionRepository) ListWithActiveCommitment(ctx context.Context, now time.Time) ([]subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status <> $1 AND commitment_end_date > $2
		ORDER BY commitment_end_date ASC`

	rows, err := r.db.Query(ctx, query, subscription.StatusCanceled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list committed subscriptions: %w", err)
	}
	defer rows.Close()

	var out []subscription.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
