package services

import (
	"context"
	"errors"
	"fmt"

	"taskboard/internal/models"
	"taskboard/internal/repositories"

	"github.com/gofrs/uuid"
)

type CreateTaskInput struct {
	Title       string
	Description string
}

type TaskService interface {
	CreateTask(ctx context.Context, ownerID uuid.UUID, input CreateTaskInput) (*models.Task, error)
	FindAll(ctx context.Context) ([]models.Task, error)
	FindTaskByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	UpdateTask(ctx context.Context, callerID, id uuid.UUID, update models.TaskUpdate) (*models.Task, error)
	RemoveTask(ctx context.Context, callerID, id uuid.UUID) error
	AdvanceStatus(ctx context.Context, callerID, id uuid.UUID) (*models.Task, bool, error)
	DeleteTasksByOwner(ctx context.Context, userID uuid.UUID) (int64, error)
}

// TaskServiceImpl manages tasks. Unless enforceOwnership is set, update,
// remove and advance act on any task regardless of who owns it.
type TaskServiceImpl struct {
	tasks            repositories.TaskRepository
	users            repositories.UserRepository
	enforceOwnership bool
}

func NewTaskService(tasks repositories.TaskRepository, users repositories.UserRepository, enforceOwnership bool) *TaskServiceImpl {
	return &TaskServiceImpl{
		tasks:            tasks,
		users:            users,
		enforceOwnership: enforceOwnership,
	}
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, ownerID uuid.UUID, input CreateTaskInput) (*models.Task, error) {
	if _, err := s.users.FindByID(ctx, ownerID); err != nil {
		return nil, mapUserError(err)
	}

	task := &models.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      models.TaskStatusPending,
		UserID:      ownerID,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

func (s *TaskServiceImpl) FindAll(ctx context.Context) ([]models.Task, error) {
	return s.tasks.FindAll(ctx)
}

func (s *TaskServiceImpl) FindTaskByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, mapTaskError(err)
	}
	return task, nil
}

func (s *TaskServiceImpl) UpdateTask(ctx context.Context, callerID, id uuid.UUID, update models.TaskUpdate) (*models.Task, error) {
	if update.Status != nil && !update.Status.IsValid() {
		return nil, ErrInvalidTaskStatus
	}

	task, err := s.resolveForWrite(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	if update.IsEmpty() {
		return task, nil
	}

	updated, err := s.tasks.Update(ctx, id, update)
	if err != nil {
		return nil, mapTaskError(err)
	}
	return updated, nil
}

func (s *TaskServiceImpl) RemoveTask(ctx context.Context, callerID, id uuid.UUID) error {
	if _, err := s.resolveForWrite(ctx, callerID, id); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		return mapTaskError(err)
	}
	return nil
}

// AdvanceStatus moves a task one step along pending, in_progress, completed.
// A completed task is returned unchanged, no write is issued, and the bool
// result is false.
func (s *TaskServiceImpl) AdvanceStatus(ctx context.Context, callerID, id uuid.UUID) (*models.Task, bool, error) {
	task, err := s.resolveForWrite(ctx, callerID, id)
	if err != nil {
		return nil, false, err
	}

	next, ok := task.Status.Next()
	if !ok {
		return task, false, nil
	}

	updated, err := s.tasks.Update(ctx, id, models.TaskUpdate{Status: &next})
	if err != nil {
		return nil, false, mapTaskError(err)
	}
	return updated, true, nil
}

func (s *TaskServiceImpl) DeleteTasksByOwner(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.tasks.DeleteByOwner(ctx, userID)
}

func (s *TaskServiceImpl) resolveForWrite(ctx context.Context, callerID, id uuid.UUID) (*models.Task, error) {
	task, err := s.FindTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.enforceOwnership && task.UserID != callerID {
		return nil, ErrTaskForbidden
	}
	return task, nil
}

func mapTaskError(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrTaskNotFound
	}
	return err
}
