package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

var TaskStatuses = []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted}

func (s TaskStatus) IsValid() bool {
	for _, status := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Next returns the status that follows s and whether s can advance at all.
// Completed is terminal.
func (s TaskStatus) Next() (TaskStatus, bool) {
	switch s {
	case TaskStatusPending:
		return TaskStatusInProgress, true
	case TaskStatusInProgress:
		return TaskStatusCompleted, true
	default:
		return s, false
	}
}

type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	UserID      uuid.UUID  `json:"userId" gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Task) TableName() string {
	return "tasks"
}

// TaskUpdate carries the fields of a partial update. Nil fields are left
// untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
}

func (u TaskUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil
}
