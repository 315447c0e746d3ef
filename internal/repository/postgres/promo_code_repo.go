// internal/repository/postgres/promo_code_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/promo"
	xerrors "github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type PromoCodeRepository struct {
	db *pgxpool.Pool
	tx *DB
}

func NewPromoCodeRepository(db *pgxpool.Pool, tx *DB) *PromoCodeRepository {
	return &PromoCodeRepository{db: db, tx: tx}
}

const promoColumns = `
	id, code, discount_type, discount_value, stripe_coupon_id,
	max_uses, current_uses, max_uses_per_user, eligible_plans,
	valid_from, valid_until, is_active, description, created_at, updated_at`

func scanPromoCode(row pgx.Row) (*promo.PromoCode, error) {
	var p promo.PromoCode
	var plans []string
	err := row.Scan(
		&p.ID, &p.Code, &p.DiscountType, &p.DiscountValue, &p.StripeCouponID,
		&p.MaxUses, &p.CurrentUses, &p.MaxUsesPerUser, &plans,
		&p.ValidFrom, &p.ValidUntil, &p.IsActive, &p.Description, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		p.EligiblePlans = pq.StringArray(plans)
	}
	return &p, nil
}

// eligiblePlansArg stores an empty list as NULL, meaning every plan.
func eligiblePlansArg(plans pq.StringArray) []string {
	if len(plans) == 0 {
		return nil
	}
	return []string(plans)
}

// Create creates a new promo code
func (r *PromoCodeRepository) Create(ctx context.Context, p *promo.PromoCode) error {
	query := `
		INSERT INTO promo_codes (
			code, discount_type, discount_value, stripe_coupon_id,
			max_uses, max_uses_per_user, eligible_plans,
			valid_from, valid_until, is_active, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, current_uses, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		p.Code, p.DiscountType, p.DiscountValue, p.StripeCouponID,
		p.MaxUses, p.MaxUsesPerUser, eligiblePlansArg(p.EligiblePlans),
		p.ValidFrom, p.ValidUntil, p.IsActive, p.Description,
	).Scan(&p.ID, &p.CurrentUses, &p.CreatedAt, &p.UpdatedAt)

	if isUniqueViolation(err) {
		return fmt.Errorf("%w: promo code %q already exists", xerrors.ErrConflict, p.Code)
	}
	if err != nil {
		return fmt.Errorf("failed to create promo code: %w", err)
	}
	return nil
}

// FindByID retrieves a promo code by ID
func (r *PromoCodeRepository) FindByID(ctx context.Context, id int64) (*promo.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE id = $1`

	p, err := scanPromoCode(r.db.QueryRow(ctx, query, id))
	if err != nil && !xerrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to find promo code: %w", err)
	}
	return p, err
}

// FindByCode retrieves a promo code case-insensitively
func (r *PromoCodeRepository) FindByCode(ctx context.Context, code string) (*promo.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE UPPER(code) = UPPER($1)`

	p, err := scanPromoCode(r.db.QueryRow(ctx, query, strings.TrimSpace(code)))
	if err != nil && !xerrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to find promo code: %w", err)
	}
	return p, err
}

// FindByCouponID retrieves the promo code mapped to a processor coupon
func (r *PromoCodeRepository) FindByCouponID(ctx context.Context, couponID string) (*promo.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE stripe_coupon_id = $1 ORDER BY id DESC LIMIT 1`

	p, err := scanPromoCode(r.db.QueryRow(ctx, query, couponID))
	if err != nil && !xerrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to find promo code: %w", err)
	}
	return p, err
}

// Update updates the editable fields of a promo code
func (r *PromoCodeRepository) Update(ctx context.Context, p *promo.PromoCode) error {
	query := `
		UPDATE promo_codes
		SET discount_value = $1, stripe_coupon_id = $2, max_uses = $3, max_uses_per_user = $4,
		    eligible_plans = $5, valid_from = $6, valid_until = $7, is_active = $8,
		    description = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		p.DiscountValue, p.StripeCouponID, p.MaxUses, p.MaxUsesPerUser,
		eligiblePlansArg(p.EligiblePlans), p.ValidFrom, p.ValidUntil, p.IsActive,
		p.Description, p.ID,
	).Scan(&p.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update promo code: %w", err)
	}
	return nil
}

// SetActive toggles a promo code
func (r *PromoCodeRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE promo_codes SET is_active = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.Exec(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to update promo code: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// List retrieves promo codes with filters
func (r *PromoCodeRepository) List(ctx context.Context, filters *promo.PromoListFilters) ([]promo.PromoCode, int64, error) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if filters.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *filters.IsActive)
		argPos++
	}

	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR description ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM promo_codes %s", whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count promo codes: %w", err)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}
	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM promo_codes
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, promoColumns, whereClause, argPos, argPos+1)
	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list promo codes: %w", err)
	}
	defer rows.Close()

	codes := []promo.PromoCode{}
	for rows.Next() {
		p, err := scanPromoCode(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan promo code: %w", err)
		}
		codes = append(codes, *p)
	}
	return codes, total, rows.Err()
}

// CountUsagesByUser counts the redemptions of a promo code by one user
func (r *PromoCodeRepository) CountUsagesByUser(ctx context.Context, promoCodeID int64, userID string) (int64, error) {
	query := `SELECT COUNT(*) FROM promo_code_usages WHERE promo_code_id = $1 AND user_id = $2`

	var n int64
	if err := r.db.QueryRow(ctx, query, promoCodeID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count promo code usages: %w", err)
	}
	return n, nil
}

// RecordUsage appends a redemption to the ledger and increments current_uses
// in one transaction. The increment is conditional on the global limit, so
// concurrent redemptions can never push current_uses past max_uses. A second
// record for the same subscription is a no-op.
func (r *PromoCodeRepository) RecordUsage(ctx context.Context, u *promo.Usage, maxUsesPerUser int32) error {
	return r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if maxUsesPerUser > 0 {
			var used int64
			err := tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM promo_code_usages WHERE promo_code_id = $1 AND user_id = $2`,
				u.PromoCodeID, u.UserID,
			).Scan(&used)
			if err != nil {
				return fmt.Errorf("failed to count promo code usages: %w", err)
			}
			if used >= int64(maxUsesPerUser) {
				return fmt.Errorf("%w: per-user limit reached", xerrors.ErrConflict)
			}
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO promo_code_usages (reference, promo_code_id, user_id, subscription_id, used_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (promo_code_id, subscription_id) DO NOTHING
			RETURNING id
		`, u.Reference, u.PromoCodeID, u.UserID, u.SubscriptionID, u.UsedAt).Scan(&u.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to insert promo code usage: %w", err)
		}

		result, err := tx.Exec(ctx, `
			UPDATE promo_codes
			SET current_uses = current_uses + 1, updated_at = NOW()
			WHERE id = $1 AND (max_uses IS NULL OR current_uses < max_uses)
		`, u.PromoCodeID)
		if err != nil {
			return fmt.Errorf("failed to increment promo code uses: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("%w: promo code usage limit reached", xerrors.ErrConflict)
		}
		return nil
	})
}
