package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"taskboard/internal/auth"
	"taskboard/internal/models"
	"taskboard/internal/repositories"

	"github.com/gofrs/uuid"
)

type UserService interface {
	CreateUser(ctx context.Context, email, password string) (*models.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ChangePassword(ctx context.Context, id uuid.UUID, oldPassword, newPassword string) error
	RemoveUser(ctx context.Context, id uuid.UUID) error
}

// TaskCleanupScheduler arranges for a deleted user's tasks to be removed.
type TaskCleanupScheduler interface {
	ScheduleUserTasksCleanup(ctx context.Context, userID uuid.UUID) error
}

type UserServiceImpl struct {
	users   repositories.UserRepository
	hasher  *auth.PasswordHasher
	cleanup TaskCleanupScheduler
}

// NewUserService builds the service. cleanup may be nil, in which case a
// deleted user's tasks are left in place.
func NewUserService(users repositories.UserRepository, hasher *auth.PasswordHasher, cleanup TaskCleanupScheduler) *UserServiceImpl {
	return &UserServiceImpl{
		users:   users,
		hasher:  hasher,
		cleanup: cleanup,
	}
}

func (s *UserServiceImpl) CreateUser(ctx context.Context, email, password string) (*models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyInUse
		}
		log.Printf("Registration failed: %v", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (s *UserServiceImpl) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, mapUserError(err)
	}
	return user, nil
}

func (s *UserServiceImpl) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, mapUserError(err)
	}
	return user, nil
}

func (s *UserServiceImpl) ChangePassword(ctx context.Context, id uuid.UUID, oldPassword, newPassword string) error {
	user, err := s.FindUserByID(ctx, id)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return ErrOldPasswordIncorrect
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return mapUserError(err)
	}
	return nil
}

// RemoveUser deletes the user and schedules removal of the tasks they own.
// A scheduling failure is logged; the user stays deleted.
func (s *UserServiceImpl) RemoveUser(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return mapUserError(err)
	}

	if s.cleanup != nil {
		if err := s.cleanup.ScheduleUserTasksCleanup(ctx, id); err != nil {
			log.Printf("Failed to schedule task cleanup for user %s: %v", id, err)
		}
	}
	return nil
}

func mapUserError(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
