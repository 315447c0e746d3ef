// internal/repository/postgres/user_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/user"
	xerrors "github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository reads the account table owned by the auth service.
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	query := `SELECT id, email, COALESCE(name, '') FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// FindByEmail matches case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT id, email, COALESCE(name, '') FROM users WHERE LOWER(email) = $1 LIMIT 1`
	return r.findOne(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg string) (*user.User, error) {
	var u user.User
	err := r.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}
