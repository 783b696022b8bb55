package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benvon/smart-schedule/internal/database"
	"github.com/benvon/smart-schedule/internal/models"
	"github.com/benvon/smart-schedule/internal/services/ai"
	"github.com/google/uuid"
)

// mockCompleter records requests and answers through CompleteFunc
type mockCompleter struct {
	mu           sync.Mutex
	calls        []ai.CompletionRequest
	CompleteFunc func(ctx context.Context, req ai.CompletionRequest) (string, error)
}

var _ ai.Completer = (*mockCompleter)(nil)

func (m *mockCompleter) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.CompleteFunc == nil {
		return "", fmt.Errorf("unexpected completion call: %s", req.Operation)
	}
	return m.CompleteFunc(ctx, req)
}

func (m *mockCompleter) operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]string, len(m.calls))
	for i, c := range m.calls {
		ops[i] = c.Operation
	}
	return ops
}

// scripted answers each operation from a queue; the last answer repeats
func scripted(answers map[string][]string) *mockCompleter {
	var mu sync.Mutex
	next := make(map[string]int)
	return &mockCompleter{
		CompleteFunc: func(_ context.Context, req ai.CompletionRequest) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			queue, ok := answers[req.Operation]
			if !ok || len(queue) == 0 {
				return "", fmt.Errorf("no scripted answer for %s", req.Operation)
			}
			i := next[req.Operation]
			if i >= len(queue) {
				i = len(queue) - 1
			}
			next[req.Operation]++
			return queue[i], nil
		},
	}
}

// fakeTaskStore is an in-memory TaskStore with error injection
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
	order []uuid.UUID
	now   func() time.Time

	applied       [][]models.ScheduleAssignment
	UpdateErr     map[uuid.UUID]error
	CreateErr     error
	ApplyErr      error
	DeleteCompErr error
	ListErr       error
}

var _ database.TaskStore = (*fakeTaskStore)(nil)

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{
		tasks:     make(map[uuid.UUID]*models.Task),
		now:       func() time.Time { return time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC) },
		UpdateErr: make(map[uuid.UUID]error),
	}
}

func (s *fakeTaskStore) add(t models.Task) *models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Type == "" {
		t.Type = models.TaskTypeWork
	}
	s.tasks[t.ID] = &t
	s.order = append(s.order, t.ID)
	cp := t
	return &cp
}

func (s *fakeTaskStore) snapshot() []*models.Task {
	out := make([]*models.Task, 0, len(s.order))
	for _, id := range s.order {
		if t, ok := s.tasks[id]; ok {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

func (s *fakeTaskStore) ListAll(_ context.Context) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	return s.snapshot(), nil
}

func (s *fakeTaskStore) List(ctx context.Context, filter database.TaskFilter) ([]*models.Task, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Task
	for _, t := range all {
		if filter.Type != nil && t.Type != *filter.Type {
			continue
		}
		if filter.Required != nil && t.IsRequired != *filter.Required {
			continue
		}
		if filter.Completed != nil && t.IsCompleted != *filter.Completed {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeTaskStore) ListRequiredIncomplete(ctx context.Context) ([]*models.Task, error) {
	required, incomplete := true, false
	tasks, err := s.List(ctx, database.TaskFilter{Required: &required, Completed: &incomplete})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].Deadline, tasks[j].Deadline
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return tasks, nil
}

func (s *fakeTaskStore) Get(_ context.Context, id uuid.UUID) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, database.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTaskStore) Create(_ context.Context, d models.TaskDraft) (*models.Task, error) {
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	if strings.TrimSpace(d.Title) == "" || !d.Type.Valid() {
		return nil, database.ErrInvalidTask
	}
	now := s.now()
	return s.add(models.Task{
		Title:             strings.TrimSpace(d.Title),
		Description:       d.Description,
		Type:              d.Type,
		ScheduledTime:     d.ScheduledTime,
		IsFixedTime:       d.IsFixedTime,
		Deadline:          d.Deadline,
		EstimatedDuration: d.EstimatedDuration,
		IsRequired:        d.IsRequired,
		CreatedAt:         now,
		UpdatedAt:         now,
	}), nil
}

func (s *fakeTaskStore) Update(_ context.Context, id uuid.UUID, u models.TaskUpdate) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.UpdateErr[id]; err != nil {
		return nil, err
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, database.ErrTaskNotFound
	}
	u.ApplyTo(t)
	t.UpdatedAt = s.now()
	cp := *t
	return &cp, nil
}

func (s *fakeTaskStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	delete(s.tasks, id)
	return ok, nil
}

func (s *fakeTaskStore) DeleteCompleted(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteCompErr != nil {
		return 0, s.DeleteCompErr
	}
	var n int64
	for id, t := range s.tasks {
		if t.IsCompleted {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeTaskStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.tasks {
		if !t.IsCompleted && t.Deadline != nil && t.Deadline.Before(now) {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeTaskStore) ApplySchedule(_ context.Context, assignments []models.ScheduleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ApplyErr != nil {
		return s.ApplyErr
	}
	for _, a := range assignments {
		if _, ok := s.tasks[a.TaskID]; !ok {
			return fmt.Errorf("%w: %s", database.ErrTaskNotFound, a.TaskID)
		}
	}
	for _, a := range assignments {
		at := a.ScheduledTime
		s.tasks[a.TaskID].ScheduledTime = &at
	}
	s.applied = append(s.applied, assignments)
	return nil
}

func ptr[T any](v T) *T { return &v }
