package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/store"
	"github.com/loandocs/loandocs/pkg/cryptox"
)

var (
	ErrWeakPassword    = errors.New("password too short")
	ErrInvalidPassword = errors.New("invalid password")
)

// MinPasswordLength is the shortest password accepted when a borrower
// upgrades from link-only sign-in.
const MinPasswordLength = 12

type UserService struct {
	Store store.Store
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// GetUserByEmail fetches a user by normalized email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.Store.Users().GetUserByEmail(ctx, email)
}

// SetPassword stores an argon2id hash for the user, upgrading a temporary
// link-only account to a permanent one.
func (s *UserService) SetPassword(ctx context.Context, userID, password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to store password hash: %w", err)
	}
	return nil
}

// VerifyPassword checks a password against the stored hash.
func (s *UserService) VerifyPassword(ctx context.Context, userID, password string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return ErrInvalidPassword
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		return ErrInvalidPassword
	}
	return nil
}
