package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-schedule/internal/database"
	"go.uber.org/zap"
)

// CleanupReport counts the tasks removed by a cleanup run
type CleanupReport struct {
	Completed int64 `json:"completed"`
	Expired   int64 `json:"expired"`
}

// Total returns the number of tasks removed
func (r CleanupReport) Total() int64 {
	return r.Completed + r.Expired
}

// Cleaner removes completed tasks and incomplete tasks past their deadline
type Cleaner struct {
	tasks  database.TaskStore
	logger *zap.Logger
}

// NewCleaner creates a cleaner
func NewCleaner(tasks database.TaskStore, logger *zap.Logger) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{tasks: tasks, logger: logger}
}

// Clean runs both deletions even if the first fails; errors are joined.
func (c *Cleaner) Clean(ctx context.Context, now time.Time) (CleanupReport, error) {
	var report CleanupReport
	var errs []error

	completed, err := c.tasks.DeleteCompleted(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to delete completed tasks: %w", err))
	} else {
		report.Completed = completed
	}

	expired, err := c.tasks.DeleteExpired(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to delete expired tasks: %w", err))
	} else {
		report.Expired = expired
	}

	if report.Total() > 0 {
		c.logger.Info("tasks_cleaned",
			zap.Int64("completed", report.Completed),
			zap.Int64("expired", report.Expired))
	}
	return report, errors.Join(errs...)
}
