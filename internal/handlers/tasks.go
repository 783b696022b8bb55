package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/smart-schedule/internal/database"
	"github.com/benvon/smart-schedule/internal/models"
	"github.com/benvon/smart-schedule/internal/planner"
	"github.com/benvon/smart-schedule/internal/queue"
	"github.com/benvon/smart-schedule/internal/request"
	"github.com/benvon/smart-schedule/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MaxTaskTitleLength is the maximum length for a task title
const MaxTaskTitleLength = 200

// Cleaner removes completed and expired tasks
type Cleaner interface {
	Clean(ctx context.Context, now time.Time) (planner.CleanupReport, error)
}

// TaskHandler handles task-related requests
type TaskHandler struct {
	tasks    database.TaskStore
	cleaner  Cleaner
	jobQueue queue.Enqueuer
	logger   *zap.Logger
	now      func() time.Time
}

// NewTaskHandler creates a new task handler. jobQueue may be nil, in which case
// no reschedule jobs are published.
func NewTaskHandler(tasks database.TaskStore, cleaner Cleaner, jobQueue queue.Enqueuer, log *zap.Logger) *TaskHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskHandler{
		tasks:    tasks,
		cleaner:  cleaner,
		jobQueue: jobQueue,
		logger:   log,
		now:      time.Now,
	}
}

// RegisterRoutes registers task routes on the given router
// The router should already have the /tasks prefix (e.g., from apiRouter.PathPrefix("/tasks"))
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
	r.HandleFunc("", h.CreateTask).Methods("POST")
	r.HandleFunc("/stats", h.Stats).Methods("GET")
	r.HandleFunc("/cleanup", h.Cleanup).Methods("POST")
	r.HandleFunc("/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTask).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteTask).Methods("DELETE")
	r.HandleFunc("/{id}/complete", h.CompleteTask).Methods("POST")
}

// CreateTaskRequest represents a create task request
type CreateTaskRequest struct {
	Title             string     `json:"title" validate:"required,max=200"`
	Description       *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	Type              string     `json:"type,omitempty" validate:"omitempty,task_type"`
	ScheduledTime     *time.Time `json:"scheduled_time,omitempty"`
	IsFixedTime       bool       `json:"is_fixed_time"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	EstimatedDuration *int       `json:"estimated_duration,omitempty" validate:"omitempty,min=5,max=480"`
	IsRequired        bool       `json:"is_required"`
}

// nullable distinguishes an absent JSON field from an explicit null
type nullable[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON implements json.Unmarshaler
func (n *nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func (n nullable[T]) patch() models.Patch[T] {
	if !n.Set {
		return models.Patch[T]{}
	}
	if n.Value == nil {
		return models.Clear[T]()
	}
	return models.SetTo(*n.Value)
}

// UpdateTaskRequest represents a partial task update. Nullable fields are cleared
// by an explicit null and left alone when absent.
type UpdateTaskRequest struct {
	Title             *string             `json:"title,omitempty" validate:"omitempty,max=200"`
	Description       nullable[string]    `json:"description"`
	Type              *string             `json:"type,omitempty" validate:"omitempty,task_type"`
	IsCompleted       *bool               `json:"is_completed,omitempty"`
	ScheduledTime     nullable[time.Time] `json:"scheduled_time"`
	IsFixedTime       *bool               `json:"is_fixed_time,omitempty"`
	Deadline          nullable[time.Time] `json:"deadline"`
	EstimatedDuration nullable[int]       `json:"estimated_duration"`
	IsRequired        *bool               `json:"is_required,omitempty"`
}

// ListTasks handles GET /tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var filter database.TaskFilter
	query := r.URL.Query()

	if t := query.Get("type"); t != "" {
		taskType, ok := models.ParseTaskType(t)
		if !ok {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.ValidateTaskType(t).Error())
			return
		}
		filter.Type = &taskType
	}
	for _, param := range []struct {
		name string
		dst  **bool
	}{
		{"required", &filter.Required},
		{"completed", &filter.Completed},
	} {
		raw := query.Get(param.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", param.name+" must be true or false")
			return
		}
		*param.dst = &v
	}

	tasks, err := h.tasks.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("task_list_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// CreateTask handles POST /tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	title := validation.SanitizeText(req.Title)
	if title == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title is required and cannot be empty after sanitization")
		return
	}
	if req.IsFixedTime && req.ScheduledTime == nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "is_fixed_time requires scheduled_time")
		return
	}

	draft := models.TaskDraft{
		Title:             title,
		Type:              models.TaskTypeWork,
		ScheduledTime:     req.ScheduledTime,
		IsFixedTime:       req.IsFixedTime,
		Deadline:          req.Deadline,
		EstimatedDuration: req.EstimatedDuration,
		IsRequired:        req.IsRequired,
	}
	if req.Type != "" {
		draft.Type, _ = models.ParseTaskType(req.Type)
	}
	if req.Description != nil {
		desc := validation.SanitizeText(*req.Description)
		if desc != "" {
			draft.Description = &desc
		}
	}

	task, err := h.tasks.Create(r.Context(), draft)
	if err != nil {
		if errors.Is(err, database.ErrInvalidTask) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		h.logger.Error("task_create_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create task")
		return
	}

	if task.IsRequired {
		h.enqueueReschedule(r.Context(), task.ID)
	}

	respondJSON(w, http.StatusCreated, task)
}

// GetTask handles GET /tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTaskID(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "Failed to retrieve task")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// UpdateTask handles PATCH /tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTaskID(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	update := models.TaskUpdate{
		IsCompleted:   req.IsCompleted,
		ScheduledTime: req.ScheduledTime.patch(),
		IsFixedTime:   req.IsFixedTime,
		Deadline:      req.Deadline.patch(),
		IsRequired:    req.IsRequired,
	}
	if req.Title != nil {
		title := validation.SanitizeText(*req.Title)
		if title == "" {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title cannot be empty after sanitization")
			return
		}
		update.Title = &title
	}
	if req.Type != nil {
		taskType, _ := models.ParseTaskType(*req.Type)
		update.Type = &taskType
	}
	if req.Description.Set {
		update.Description = models.Clear[string]()
		if req.Description.Value != nil {
			if desc := validation.SanitizeText(*req.Description.Value); desc != "" {
				update.Description = models.SetTo(desc)
			}
		}
	}
	update.EstimatedDuration = req.EstimatedDuration.patch()
	if v := req.EstimatedDuration.Value; v != nil && !models.ValidDuration(*v) {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "estimated_duration must be between 5 and 480 minutes")
		return
	}
	if update.IsEmpty() {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "No fields to update")
		return
	}

	task, err := h.tasks.Update(r.Context(), id, update)
	if err != nil {
		h.respondStoreError(w, err, "Failed to update task")
		return
	}

	timingChanged := update.Deadline.Set || update.EstimatedDuration.Set || update.IsRequired != nil
	if timingChanged && task.IsRequired && !task.IsCompleted {
		h.enqueueReschedule(r.Context(), task.ID)
	}

	respondJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /tasks/{id}. Deleting a missing task is not an error.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTaskID(w, r)
	if !ok {
		return
	}

	deleted, err := h.tasks.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("task_delete_failed", zap.String("task_id", id.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete task")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": deleted})
}

// CompleteTask handles POST /tasks/{id}/complete
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathTaskID(w, r)
	if !ok {
		return
	}

	completed := true
	task, err := h.tasks.Update(r.Context(), id, models.TaskUpdate{IsCompleted: &completed})
	if err != nil {
		h.respondStoreError(w, err, "Failed to complete task")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// Cleanup handles POST /tasks/cleanup
func (h *TaskHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	report, err := h.cleaner.Clean(r.Context(), h.now())
	if err != nil {
		h.logger.Error("task_cleanup_failed",
			zap.Int64("completed", report.Completed),
			zap.Int64("expired", report.Expired),
			zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Cleanup did not complete")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"completed": report.Completed,
		"expired":   report.Expired,
		"total":     report.Total(),
	})
}

// Stats handles GET /tasks/stats
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListAll(r.Context())
	if err != nil {
		h.logger.Error("task_stats_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}
	respondJSON(w, http.StatusOK, planner.ComputeStats(tasks))
}

func (h *TaskHandler) respondStoreError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, database.ErrTaskNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
	case errors.Is(err, database.ErrInvalidTask):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		h.logger.Error("task_store_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", message)
	}
}

// enqueueReschedule asks the worker to re-plan the required tasks. Publishing
// failures are logged; the task change itself has already succeeded.
func (h *TaskHandler) enqueueReschedule(ctx context.Context, taskID uuid.UUID) {
	if h.jobQueue == nil {
		return
	}
	job := queue.NewJob(queue.JobTypeReschedule, &taskID)
	job.SessionID = request.SessionID(ctx)
	job.Metadata["trigger"] = "task_api"
	if reqID := request.RequestID(ctx); reqID != "" {
		job.Metadata["request_id"] = reqID
	}
	if err := h.jobQueue.Enqueue(ctx, job); err != nil {
		h.logger.Warn("reschedule_enqueue_failed", zap.String("task_id", taskID.String()), zap.Error(err))
		return
	}
	h.logger.Debug("reschedule_enqueued", zap.String("task_id", taskID.String()), zap.String("job_id", job.ID.String()))
}
