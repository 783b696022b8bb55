package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/benvon/smart-schedule/internal/database"
	"github.com/benvon/smart-schedule/internal/models"
	"github.com/benvon/smart-schedule/internal/planner"
	"github.com/benvon/smart-schedule/internal/queue"
	"github.com/google/uuid"
)

// fakeTaskStore is an in-memory TaskStore
type fakeTaskStore struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*models.Task
	listErr error
}

var _ database.TaskStore = (*fakeTaskStore)(nil)

func newFakeTaskStore(tasks ...*models.Task) *fakeTaskStore {
	s := &fakeTaskStore{tasks: make(map[uuid.UUID]*models.Task)}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *fakeTaskStore) ListAll(ctx context.Context) ([]*models.Task, error) {
	return s.List(ctx, database.TaskFilter{})
}

func (s *fakeTaskStore) List(_ context.Context, filter database.TaskFilter) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*models.Task
	for _, t := range s.tasks {
		if filter.Type != nil && t.Type != *filter.Type {
			continue
		}
		if filter.Required != nil && t.IsRequired != *filter.Required {
			continue
		}
		if filter.Completed != nil && t.IsCompleted != *filter.Completed {
			continue
		}
		copied := *t
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeTaskStore) ListRequiredIncomplete(ctx context.Context) ([]*models.Task, error) {
	required, completed := true, false
	return s.List(ctx, database.TaskFilter{Required: &required, Completed: &completed})
}

func (s *fakeTaskStore) Get(_ context.Context, id uuid.UUID) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, database.ErrTaskNotFound
	}
	copied := *t
	return &copied, nil
}

func (s *fakeTaskStore) Create(_ context.Context, draft models.TaskDraft) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	t := &models.Task{
		ID:                uuid.New(),
		Title:             draft.Title,
		Description:       draft.Description,
		Type:              draft.Type,
		ScheduledTime:     draft.ScheduledTime,
		IsFixedTime:       draft.IsFixedTime,
		Deadline:          draft.Deadline,
		EstimatedDuration: draft.EstimatedDuration,
		IsRequired:        draft.IsRequired,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.tasks[t.ID] = t
	copied := *t
	return &copied, nil
}

func (s *fakeTaskStore) Update(_ context.Context, id uuid.UUID, update models.TaskUpdate) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, database.ErrTaskNotFound
	}
	update.ApplyTo(t)
	copied := *t
	return &copied, nil
}

func (s *fakeTaskStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	delete(s.tasks, id)
	return ok, nil
}

func (s *fakeTaskStore) DeleteCompleted(context.Context) (int64, error) {
	return 0, nil
}

func (s *fakeTaskStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeTaskStore) ApplySchedule(context.Context, []models.ScheduleAssignment) error {
	return nil
}

// mockCleaner is a mock Cleaner
type mockCleaner struct {
	CleanFunc func(ctx context.Context, now time.Time) (planner.CleanupReport, error)
}

var _ Cleaner = (*mockCleaner)(nil)

func (m *mockCleaner) Clean(ctx context.Context, now time.Time) (planner.CleanupReport, error) {
	if m.CleanFunc != nil {
		return m.CleanFunc(ctx, now)
	}
	return planner.CleanupReport{}, nil
}

// mockEnqueuer records published jobs
type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error
}

var _ queue.Enqueuer = (*mockEnqueuer)(nil)

func (m *mockEnqueuer) Enqueue(_ context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockEnqueuer) published() []*queue.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*queue.Job(nil), m.jobs...)
}

// mockPlanner is a mock Planner
type mockPlanner struct {
	HandleFunc func(ctx context.Context, utterance, sessionID string) *planner.Response
}

var _ Planner = (*mockPlanner)(nil)

func (m *mockPlanner) Handle(ctx context.Context, utterance, sessionID string) *planner.Response {
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, utterance, sessionID)
	}
	return &planner.Response{SessionID: sessionID, Success: true, Reply: "ok"}
}
