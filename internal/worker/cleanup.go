package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/gofrs/uuid"
)

// TaskCleaner deletes every task owned by a user.
type TaskCleaner interface {
	DeleteTasksByOwner(ctx context.Context, userID uuid.UUID) (int64, error)
}

type UserTasksCleanupPayload struct {
	UserID string `json:"user_id"`
}

// NewUserTasksCleanupHandler removes the tasks of a deleted user.
func NewUserTasksCleanupHandler(cleaner TaskCleaner) JobHandler {
	return func(ctx context.Context, job *Job) error {
		var payload UserTasksCleanupPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("invalid cleanup payload: %w", err)
		}

		userID, err := uuid.FromString(payload.UserID)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", payload.UserID, err)
		}

		deleted, err := cleaner.DeleteTasksByOwner(ctx, userID)
		if err != nil {
			return err
		}

		log.Printf("Removed %d tasks of deleted user %s", deleted, userID)
		return nil
	}
}

// CleanupScheduler queues task cleanup for deleted users. Without a queue, or
// when enqueueing fails, the cleanup runs inline.
type CleanupScheduler struct {
	queue   *JobQueue
	cleaner TaskCleaner
}

func NewCleanupScheduler(queue *JobQueue, cleaner TaskCleaner) *CleanupScheduler {
	return &CleanupScheduler{queue: queue, cleaner: cleaner}
}

func (s *CleanupScheduler) ScheduleUserTasksCleanup(ctx context.Context, userID uuid.UUID) error {
	if s.queue != nil {
		_, err := s.queue.Enqueue(ctx, DefaultQueue, JobTypeUserTasksCleanup, UserTasksCleanupPayload{UserID: userID.String()})
		if err == nil {
			return nil
		}
		log.Printf("Falling back to inline task cleanup for user %s: %v", userID, err)
	}

	_, err := s.cleaner.DeleteTasksByOwner(ctx, userID)
	return err
}
