package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLUserRepository stores sign-in accounts.
type SQLUserRepository struct {
	db *sqlx.DB
}

// NewSQLUserRepository creates a new SQLUserRepository.
func NewSQLUserRepository(db *sqlx.DB) *SQLUserRepository {
	return &SQLUserRepository{db: db}
}

// GetUserByEmail returns the user with email or ErrNotFound.
func (r *SQLUserRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	query := `SELECT id, email, name, password_hash, role, created_at FROM users WHERE email = ?`
	if err := r.db.GetContext(ctx, &u, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a user and sets its ID. An email already in use
// yields ErrDuplicate.
func (r *SQLUserRepository) CreateUser(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO users (email, name, password_hash, role, created_at)
		VALUES (:email, :name, :password_hash, :role, :created_at)`
	res, err := r.db.NamedExecContext(ctx, query, u)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("user %q: %w", u.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new user id: %w", err)
	}
	u.ID = id
	return nil
}
