package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-schedule/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrTaskNotFound is returned when a task does not exist
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTask is returned when a task fails basic integrity checks
	ErrInvalidTask = errors.New("invalid task")
)

const taskColumns = `id, title, description, type, is_completed, scheduled_time, is_fixed_time,
	deadline, estimated_duration, is_required, created_at, updated_at`

// TaskFilter narrows List results. Nil fields match everything.
type TaskFilter struct {
	Type      *models.TaskType
	Required  *bool
	Completed *bool
}

// TaskRepository handles task database operations
type TaskRepository struct {
	db  *DB
	now func() time.Time
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var (
		description   sql.NullString
		duration      sql.NullInt64
		scheduledTime nullTime
		deadline      nullTime
		createdAt     nullTime
		updatedAt     nullTime
		taskType      string
	)
	err := row.Scan(
		&task.ID,
		&task.Title,
		&description,
		&taskType,
		&task.IsCompleted,
		&scheduledTime,
		&task.IsFixedTime,
		&deadline,
		&duration,
		&task.IsRequired,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Type = models.TaskType(taskType)
	if !task.Type.Valid() {
		task.Type = models.TaskTypeWork
	}
	if description.Valid {
		task.Description = &description.String
	}
	if duration.Valid {
		d := int(duration.Int64)
		task.EstimatedDuration = &d
	}
	task.ScheduledTime = scheduledTime.ptr()
	task.Deadline = deadline.ptr()
	task.CreatedAt = createdAt.Time
	task.UpdatedAt = updatedAt.Time
	return task, nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// ListAll returns every task ordered by creation time
func (r *TaskRepository) ListAll(ctx context.Context) ([]*models.Task, error) {
	return r.List(ctx, TaskFilter{})
}

// List returns tasks matching the filter ordered by creation time
func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := []any{}
	argIndex := 1

	if filter.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argIndex)
		args = append(args, string(*filter.Type))
		argIndex++
	}
	if filter.Required != nil {
		query += fmt.Sprintf(" AND is_required = $%d", argIndex)
		args = append(args, *filter.Required)
		argIndex++
	}
	if filter.Completed != nil {
		query += fmt.Sprintf(" AND is_completed = $%d", argIndex)
		args = append(args, *filter.Completed)
	}
	query += " ORDER BY created_at ASC, id ASC"

	return r.queryTasks(ctx, query, args...)
}

// ListRequiredIncomplete returns required, open tasks ordered by deadline (missing last) then creation time
func (r *TaskRepository) ListRequiredIncomplete(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE is_required = TRUE AND is_completed = FALSE
		ORDER BY CASE WHEN deadline IS NULL THEN 1 ELSE 0 END, deadline ASC, created_at ASC`
	return r.queryTasks(ctx, query)
}

// Get retrieves a task by ID
func (r *TaskRepository) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.db.QueryRowContext(ctx, r.db.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// Create persists a draft and returns the stored task
func (r *TaskRepository) Create(ctx context.Context, draft models.TaskDraft) (*models.Task, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	taskType := draft.Type
	if !taskType.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidTask, draft.Type)
	}

	now := r.now().UTC()
	task := &models.Task{
		ID:                uuid.New(),
		Title:             title,
		Description:       draft.Description,
		Type:              taskType,
		ScheduledTime:     utcPtr(draft.ScheduledTime),
		IsFixedTime:       draft.IsFixedTime,
		Deadline:          utcPtr(draft.Deadline),
		EstimatedDuration: validDuration(draft.EstimatedDuration),
		IsRequired:        draft.IsRequired,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		task.ID,
		task.Title,
		nullString(task.Description),
		string(task.Type),
		task.IsCompleted,
		timeArg(task.ScheduledTime),
		task.IsFixedTime,
		timeArg(task.Deadline),
		intArg(task.EstimatedDuration),
		task.IsRequired,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// Update applies the update to an existing task and returns the new state.
// ErrTaskNotFound is returned when the task does not exist.
func (r *TaskRepository) Update(ctx context.Context, id uuid.UUID, update models.TaskUpdate) (*models.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	selectQuery := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if r.db.Dialect == DialectPostgres {
		selectQuery += " FOR UPDATE"
	}
	task, err := scanTask(tx.QueryRowContext(ctx, r.db.Rebind(selectQuery), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	update.ApplyTo(task)
	if strings.TrimSpace(task.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if !task.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidTask, task.Type)
	}
	task.EstimatedDuration = validDuration(task.EstimatedDuration)
	task.ScheduledTime = utcPtr(task.ScheduledTime)
	task.Deadline = utcPtr(task.Deadline)
	task.UpdatedAt = r.now().UTC()

	updateQuery := `
		UPDATE tasks
		SET title = $1, description = $2, type = $3, is_completed = $4, scheduled_time = $5,
			is_fixed_time = $6, deadline = $7, estimated_duration = $8, is_required = $9, updated_at = $10
		WHERE id = $11
	`
	_, err = tx.ExecContext(ctx, r.db.Rebind(updateQuery),
		task.Title,
		nullString(task.Description),
		string(task.Type),
		task.IsCompleted,
		timeArg(task.ScheduledTime),
		task.IsFixedTime,
		timeArg(task.Deadline),
		intArg(task.EstimatedDuration),
		task.IsRequired,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit task update: %w", err)
	}
	return task, nil
}

// Delete removes a task. It reports whether the task existed; deleting twice is not an error.
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tasks WHERE id = $1`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteCompleted removes every completed task and returns how many were removed
func (r *TaskRepository) DeleteCompleted(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE is_completed = TRUE`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete completed tasks: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpired removes open tasks whose deadline is before now
func (r *TaskRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM tasks WHERE is_completed = FALSE AND deadline IS NOT NULL AND deadline < $1`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tasks: %w", err)
	}
	return result.RowsAffected()
}

// ApplySchedule writes every assignment in one transaction. If any task is missing
// nothing is written and ErrTaskNotFound is returned.
func (r *TaskRepository) ApplySchedule(ctx context.Context, assignments []models.ScheduleAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := r.db.Rebind(`UPDATE tasks SET scheduled_time = $1, updated_at = $2 WHERE id = $3`)
	now := r.now().UTC()
	for _, a := range assignments {
		result, err := tx.ExecContext(ctx, query, a.ScheduledTime.UTC(), now, a.TaskID)
		if err != nil {
			return fmt.Errorf("failed to apply schedule: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("failed to apply schedule for %s: %w", a.TaskID, ErrTaskNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schedule: %w", err)
	}
	return nil
}

func validDuration(d *int) *int {
	if d == nil || !models.ValidDuration(*d) {
		return nil
	}
	v := *d
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func intArg(i *int) any {
	if i == nil {
		return nil
	}
	return int64(*i)
}
