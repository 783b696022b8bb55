package database

import (
	"context"
	"time"

	"github.com/benvon/smart-schedule/internal/models"
	"github.com/google/uuid"
)

// TaskStore defines the task persistence operations used by the planner, handlers and workers.
// This interface enables better testability by allowing mock implementations.
type TaskStore interface {
	ListAll(ctx context.Context) ([]*models.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]*models.Task, error)
	ListRequiredIncomplete(ctx context.Context) ([]*models.Task, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Create(ctx context.Context, draft models.TaskDraft) (*models.Task, error)
	Update(ctx context.Context, id uuid.UUID, update models.TaskUpdate) (*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteCompleted(ctx context.Context) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	ApplySchedule(ctx context.Context, assignments []models.ScheduleAssignment) error
}

// Ensure concrete types implement the interfaces
var (
	_ TaskStore = (*TaskRepository)(nil)
)
