package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-storefront/internal/data"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStore looks up sign-in accounts.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Credentials checks email and password sign-ins against stored bcrypt hashes.
type Credentials struct {
	users UserStore
	// dummy is compared against when the user does not exist so both
	// failure paths take about as long.
	dummy []byte
}

// NewCredentials creates a Credentials checker.
func NewCredentials(users UserStore) *Credentials {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return &Credentials{users: users, dummy: dummy}
}

// Authenticate returns the identity for a valid email and password.
func (c *Credentials) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Anonymous, ErrInvalidCredentials
	}
	user, err := c.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(c.dummy, []byte(password))
			return Anonymous, ErrInvalidCredentials
		}
		return Anonymous, fmt.Errorf("failed to look up user: %w", err)
	}
	if user.PasswordHash == "" {
		return Anonymous, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Anonymous, ErrInvalidCredentials
	}
	return Identity{ID: user.ID, Email: user.Email, Name: user.Name, Role: ParseRole(user.Role)}, nil
}
