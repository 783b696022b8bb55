package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-schedule/internal/database"
	"github.com/benvon/smart-schedule/internal/models"
	"github.com/benvon/smart-schedule/internal/services/ai"
	"github.com/benvon/smart-schedule/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskDelta is the set of changes requested for one existing task
type TaskDelta struct {
	TaskID            uuid.UUID
	TaskTitle         string
	ScheduledTime     *time.Time
	EstimatedDuration *int
	Type              *models.TaskType
	Deadline          models.Patch[time.Time]
	Description       models.Patch[string]
}

// IsEmpty reports whether the delta changes nothing
func (d TaskDelta) IsEmpty() bool {
	return d.Update().IsEmpty()
}

// Update converts the delta into a store update
func (d TaskDelta) Update() models.TaskUpdate {
	u := models.TaskUpdate{
		Type:        d.Type,
		Deadline:    d.Deadline,
		Description: d.Description,
	}
	if d.ScheduledTime != nil {
		u.ScheduledTime = models.SetTo(*d.ScheduledTime)
	}
	if d.EstimatedDuration != nil {
		u.EstimatedDuration = models.SetTo(*d.EstimatedDuration)
	}
	return u
}

// touchesTiming reports whether the delta can create time conflicts
func (d TaskDelta) touchesTiming() bool {
	return d.ScheduledTime != nil || d.EstimatedDuration != nil || d.Deadline.Set
}

// merge overlays later fields from o onto d
func (d TaskDelta) merge(o TaskDelta) TaskDelta {
	if o.ScheduledTime != nil {
		d.ScheduledTime = o.ScheduledTime
	}
	if o.EstimatedDuration != nil {
		d.EstimatedDuration = o.EstimatedDuration
	}
	if o.Type != nil {
		d.Type = o.Type
	}
	if o.Deadline.Set {
		d.Deadline = o.Deadline
	}
	if o.Description.Set {
		d.Description = o.Description
	}
	return d
}

// Actions describes each change in the delta
func (d TaskDelta) Actions(loc *time.Location) []string {
	var actions []string
	if d.ScheduledTime != nil {
		actions = append(actions, "时间调整为"+formatLocal(*d.ScheduledTime, loc))
	}
	if d.EstimatedDuration != nil {
		actions = append(actions, fmt.Sprintf("预计时长调整为%d分钟", *d.EstimatedDuration))
	}
	if d.Deadline.Set {
		if d.Deadline.IsClear() {
			actions = append(actions, "移除截止时间")
		} else {
			actions = append(actions, "截止时间设为"+formatLocal(*d.Deadline.Value, loc))
		}
	}
	if d.Type != nil {
		actions = append(actions, "任务类型调整为"+d.Type.DisplayName())
	}
	if d.Description.Set {
		if d.Description.IsClear() {
			actions = append(actions, "移除备注")
		} else {
			actions = append(actions, fmt.Sprintf("备注更新为\"%s\"", *d.Description.Value))
		}
	}
	return actions
}

type rawAdjustment struct {
	TaskID           string            `json:"taskId" validate:"omitempty,uuid"`
	TaskTitle        string            `json:"taskTitle"`
	NewScheduledTime ai.NullableString `json:"newScheduledTime"`
	NewDuration      ai.FlexInt        `json:"newDuration"`
	NewDeadline      ai.NullableString `json:"newDeadline"`
	NewType          ai.NullableString `json:"newType"`
	NewDescription   ai.NullableString `json:"newDescription"`
}

type adjustPayload struct {
	Adjustments []rawAdjustment `json:"adjustments"`
}

// AdjustmentParser turns a modification instruction into per-task deltas
type AdjustmentParser struct {
	completer ai.Completer
	loc       *time.Location
	logger    *zap.Logger
}

// NewAdjustmentParser creates an adjustment parser
func NewAdjustmentParser(completer ai.Completer, loc *time.Location, logger *zap.Logger) *AdjustmentParser {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdjustmentParser{completer: completer, loc: loc, logger: logger}
}

// Parse returns one delta per addressed task, in the order tasks were first
// addressed. Malformed output yields no deltas and no error.
func (p *AdjustmentParser) Parse(ctx context.Context, utterance string, tasks []*models.Task, now time.Time) ([]TaskDelta, error) {
	raw, err := p.completer.Complete(ctx, ai.CompletionRequest{
		Operation:   "parse_adjustment",
		System:      systemPrompt,
		Prompt:      buildAdjustPrompt(utterance, tasks, now, p.loc),
		Temperature: ai.Temperature(adjustTemperature),
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse adjustment: %w", err)
	}

	payload, err := ai.ExtractJSON[adjustPayload](raw, nil)
	if err != nil {
		p.logger.Warn("adjustment_parse_malformed",
			zap.String("session_id", ai.ExtractSessionID(ctx)),
			zap.String("response_preview", ai.SanitizeResponse(raw, false)),
			zap.Error(err))
		return nil, nil
	}

	byID := make(map[uuid.UUID]*models.Task, len(tasks))
	byTitle := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		title := strings.TrimSpace(t.Title)
		if _, dup := byTitle[title]; !dup {
			byTitle[title] = t
		}
	}

	var order []uuid.UUID
	merged := make(map[uuid.UUID]TaskDelta)
	for _, ra := range payload.Adjustments {
		task := resolveTask(ra, byID, byTitle)
		if task == nil {
			p.logger.Debug("adjustment_reference_unresolved",
				zap.String("task_id", ra.TaskID),
				zap.String("task_title", ra.TaskTitle))
			continue
		}
		delta := p.toDelta(ra, task)
		if existing, ok := merged[task.ID]; ok {
			merged[task.ID] = existing.merge(delta)
			continue
		}
		order = append(order, task.ID)
		merged[task.ID] = delta
	}

	deltas := make([]TaskDelta, 0, len(order))
	for _, id := range order {
		if d := merged[id]; !d.IsEmpty() {
			deltas = append(deltas, d)
		}
	}
	return deltas, nil
}

// resolveTask matches by ID first, then by exact title
func resolveTask(ra rawAdjustment, byID map[uuid.UUID]*models.Task, byTitle map[string]*models.Task) *models.Task {
	failed := validation.FailedFields(validation.Validate.Struct(ra))
	if !failed["taskId"] && ra.TaskID != "" {
		if id, err := uuid.Parse(ra.TaskID); err == nil {
			if t, ok := byID[id]; ok {
				return t
			}
		}
	}
	if t, ok := byTitle[strings.TrimSpace(ra.TaskTitle)]; ok {
		return t
	}
	return nil
}

func (p *AdjustmentParser) toDelta(ra rawAdjustment, task *models.Task) TaskDelta {
	d := TaskDelta{TaskID: task.ID, TaskTitle: task.Title}

	if !ra.NewScheduledTime.Null {
		if t, ok := parseLLMTime(ra.NewScheduledTime.Value, p.loc); ok {
			d.ScheduledTime = &t
		}
	}
	if ra.NewDuration.Valid && models.ValidDuration(ra.NewDuration.Value) {
		d.EstimatedDuration = ra.NewDuration.Ptr()
	}
	if ra.NewDeadline.Present {
		if ra.NewDeadline.Null {
			d.Deadline = models.Clear[time.Time]()
		} else if t, ok := parseLLMTime(ra.NewDeadline.Value, p.loc); ok {
			d.Deadline = models.SetTo(t)
		}
	}
	if tt, ok := models.ParseTaskType(ra.NewType.Value); ok && !ra.NewType.Null {
		d.Type = &tt
	}
	if ra.NewDescription.Present {
		desc := strings.TrimSpace(ra.NewDescription.Value)
		if ra.NewDescription.Null || desc == "" {
			d.Description = models.Clear[string]()
		} else {
			d.Description = models.SetTo(desc)
		}
	}
	return d
}

// DetectAdjustmentConflicts projects the deltas onto tasks and reports new
// deadline violations and overlaps caused by timing changes.
func DetectAdjustmentConflicts(deltas []TaskDelta, tasks []*models.Task) []string {
	projected := make([]*models.Task, 0, len(tasks))
	index := make(map[uuid.UUID]*models.Task, len(tasks))
	for _, t := range tasks {
		cp := *t
		projected = append(projected, &cp)
		index[cp.ID] = &cp
	}

	changed := make(map[uuid.UUID]bool)
	for _, d := range deltas {
		t, ok := index[d.TaskID]
		if !ok || !d.touchesTiming() {
			continue
		}
		d.Update().ApplyTo(t)
		changed[t.ID] = true
	}

	var conflicts []string
	reported := make(map[[2]uuid.UUID]bool)
	for _, t := range projected {
		if !changed[t.ID] || t.ScheduledTime == nil {
			continue
		}
		if t.Deadline != nil && t.ScheduledTime.After(*t.Deadline) {
			conflicts = append(conflicts, fmt.Sprintf("任务\"%s\"的新时间晚于截止时间", t.Title))
		}
		dur, ok := t.Duration()
		if !ok {
			continue
		}
		for _, other := range projected {
			if other.ID == t.ID || other.IsCompleted || other.ScheduledTime == nil {
				continue
			}
			otherDur, ok := other.Duration()
			if !ok {
				continue
			}
			key := pairKey(t.ID, other.ID)
			if reported[key] {
				continue
			}
			if intervalsOverlap(*t.ScheduledTime, dur, *other.ScheduledTime, otherDur) {
				reported[key] = true
				conflicts = append(conflicts, fmt.Sprintf("任务\"%s\"与\"%s\"时间冲突", t.Title, other.Title))
			}
		}
	}
	return conflicts
}

func pairKey(a, b uuid.UUID) [2]uuid.UUID {
	if a.String() > b.String() {
		a, b = b, a
	}
	return [2]uuid.UUID{a, b}
}

// AppliedDelta is a delta that was written to the store
type AppliedDelta struct {
	Task    *models.Task
	Actions []string
}

// AdjustmentResult separates applied deltas from failures
type AdjustmentResult struct {
	Applied []AppliedDelta
	Failed  []string
}

// ApplyDeltas applies each delta independently. A failure never stops the rest.
func ApplyDeltas(ctx context.Context, store database.TaskStore, deltas []TaskDelta, loc *time.Location, logger *zap.Logger) AdjustmentResult {
	var result AdjustmentResult
	for _, d := range deltas {
		updated, err := store.Update(ctx, d.TaskID, d.Update())
		if err != nil {
			if errors.Is(err, database.ErrTaskNotFound) {
				result.Failed = append(result.Failed, fmt.Sprintf("任务\"%s\"更新失败（任务不存在）", d.TaskTitle))
			} else {
				result.Failed = append(result.Failed, fmt.Sprintf("任务\"%s\"调整失败", d.TaskTitle))
			}
			if logger != nil {
				logger.Warn("task_adjustment_failed",
					zap.String("task_id", d.TaskID.String()),
					zap.Error(err))
			}
			continue
		}
		result.Applied = append(result.Applied, AppliedDelta{Task: updated, Actions: d.Actions(loc)})
	}
	return result
}
