package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"taskboard/internal/auth"
	"taskboard/internal/models"
	"taskboard/internal/repositories"
)

type AuthService interface {
	ValidateCredentials(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
}

type AuthServiceImpl struct {
	users  repositories.UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenManager

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users repositories.UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenManager) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

// ValidateCredentials returns the user when email exists and password
// matches. An unknown email and a wrong password both yield
// ErrInvalidCredentials, and both pay for one bcrypt comparison.
func (s *AuthServiceImpl) ValidateCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.hasher.Verify(password, s.unknownUserHash())
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Login verifies the credentials and issues a session token bound to the
// user's id and email.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.ValidateCredentials(ctx, email, password)
	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(auth.Claims{UserID: user.ID.String(), Email: user.Email})
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return token, user, nil
}

func (s *AuthServiceImpl) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("unknown-user-placeholder")
	})
	return s.dummyHash
}
