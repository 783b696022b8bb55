package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benvon/smart-schedule/internal/database"
	"github.com/benvon/smart-schedule/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// "将金融工程改为课程，移除项目报告备注" addresses two different tasks
func TestAdjustmentParser_TypeChangeAndDescriptionRemoval(t *testing.T) {
	t.Parallel()

	finance := task("金融工程", func(t *models.Task) { t.Type = models.TaskTypeLearning })
	report := task("项目报告", func(t *models.Task) { t.Description = ptr("周三前给导师看") })
	tasks := []*models.Task{finance, report}

	answer := fmt.Sprintf(`{"adjustments": [
		{"taskId": %q, "taskTitle": "金融工程", "newType": "course"},
		{"taskId": "task-2", "taskTitle": "项目报告", "newDescription": null}
	]}`, finance.ID)
	completer := scripted(map[string][]string{"parse_adjustment": {answer}})

	deltas, err := NewAdjustmentParser(completer, time.UTC, nil).Parse(context.Background(), "将金融工程改为课程，移除项目报告备注", tasks, base)
	require.NoError(t, err)
	require.Len(t, deltas, 2)

	assert.Equal(t, finance.ID, deltas[0].TaskID)
	require.NotNil(t, deltas[0].Type)
	assert.Equal(t, models.TaskTypeCourse, *deltas[0].Type)
	assert.False(t, deltas[0].Description.Set)

	assert.Equal(t, report.ID, deltas[1].TaskID)
	assert.True(t, deltas[1].Description.Set)
	assert.True(t, deltas[1].Description.IsClear())
	assert.Nil(t, deltas[1].Type)

	assert.Equal(t, []string{"任务类型调整为课程安排"}, deltas[0].Actions(time.UTC))
	assert.Equal(t, []string{"移除备注"}, deltas[1].Actions(time.UTC))

	require.Len(t, completer.calls, 1)
	assert.Contains(t, completer.calls[0].Prompt, finance.ID.String())
}

func TestAdjustmentParser_MergesAndDrops(t *testing.T) {
	t.Parallel()

	a := task("写报告", withDuration(60))
	b := task("复习")
	answer := fmt.Sprintf(`{"adjustments": [
		{"taskId": %q, "newScheduledTime": "2025-03-06 14:00"},
		{"taskTitle": "不存在的任务", "newType": "work"},
		{"taskId": %q, "newType": "meeting"},
		{"taskId": %q, "newDuration": 90, "newDeadline": null},
		{"taskId": %q, "newDuration": 1000}
	]}`, a.ID, b.ID, a.ID, b.ID)
	completer := scripted(map[string][]string{"parse_adjustment": {answer}})

	deltas, err := NewAdjustmentParser(completer, time.UTC, nil).Parse(context.Background(), "写报告改到明天下午两点，改成90分钟", []*models.Task{a, b}, base)
	require.NoError(t, err)
	require.Len(t, deltas, 1, "deltas for b carry no valid change")

	d := deltas[0]
	assert.Equal(t, a.ID, d.TaskID)
	require.NotNil(t, d.ScheduledTime)
	assert.True(t, d.ScheduledTime.Equal(time.Date(2025, 3, 6, 14, 0, 0, 0, time.UTC)))
	require.NotNil(t, d.EstimatedDuration)
	assert.Equal(t, 90, *d.EstimatedDuration)
	assert.True(t, d.Deadline.IsClear())
}

func TestAdjustmentParser_MalformedAndFailingCollaborator(t *testing.T) {
	t.Parallel()

	tasks := []*models.Task{task("写报告")}

	deltas, err := NewAdjustmentParser(scripted(map[string][]string{"parse_adjustment": {"好的，已经帮你调整"}}), time.UTC, nil).
		Parse(context.Background(), "调整写报告", tasks, base)
	require.NoError(t, err)
	assert.Empty(t, deltas)

	_, err = NewAdjustmentParser(&mockCompleter{}, time.UTC, nil).Parse(context.Background(), "调整写报告", tasks, base)
	assert.Error(t, err)
}

func TestDetectAdjustmentConflicts(t *testing.T) {
	t.Parallel()

	meeting := task("组会", fixedAt(base), withDuration(60))
	report := task("写报告", withDuration(30), dueBy(base.Add(3*time.Hour)))
	reading := task("阅读", withDuration(30))
	tasks := []*models.Task{meeting, report, reading}

	tests := []struct {
		name   string
		deltas []TaskDelta
		want   []string
	}{
		{
			name:   "moved into fixed slot",
			deltas: []TaskDelta{{TaskID: report.ID, ScheduledTime: ptr(base.Add(30 * time.Minute))}},
			want:   []string{`任务"写报告"与"组会"时间冲突`},
		},
		{
			name:   "moved past deadline",
			deltas: []TaskDelta{{TaskID: report.ID, ScheduledTime: ptr(base.Add(4 * time.Hour))}},
			want:   []string{`任务"写报告"的新时间晚于截止时间`},
		},
		{
			name:   "free slot",
			deltas: []TaskDelta{{TaskID: report.ID, ScheduledTime: ptr(base.Add(2 * time.Hour))}},
		},
		{
			name:   "type change is not checked",
			deltas: []TaskDelta{{TaskID: reading.ID, Type: ptr(models.TaskTypeLearning)}},
		},
		{
			name: "both moved onto each other reported once",
			deltas: []TaskDelta{
				{TaskID: report.ID, ScheduledTime: ptr(base.Add(2 * time.Hour))},
				{TaskID: reading.ID, ScheduledTime: ptr(base.Add(2*time.Hour + 10*time.Minute))},
			},
			want: []string{`任务"写报告"与"阅读"时间冲突`},
		},
		{
			name:   "unknown task ignored",
			deltas: []TaskDelta{{TaskID: uuid.New(), ScheduledTime: ptr(base)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DetectAdjustmentConflicts(tt.deltas, tasks))
		})
	}

	assert.Nil(t, report.ScheduledTime, "inputs must not be mutated")
	assert.Nil(t, reading.ScheduledTime)
}

func TestApplyDeltas_PartialFailure(t *testing.T) {
	t.Parallel()

	store := newFakeTaskStore()
	ok := store.add(models.Task{Title: "写报告"})
	broken := store.add(models.Task{Title: "复习"})
	store.UpdateErr[broken.ID] = errors.New("database is locked")
	missing := uuid.New()

	course := models.TaskTypeCourse
	result := ApplyDeltas(context.Background(), store, []TaskDelta{
		{TaskID: missing, TaskTitle: "已删除", Type: &course},
		{TaskID: broken.ID, TaskTitle: "复习", Type: &course},
		{TaskID: ok.ID, TaskTitle: "写报告", Type: &course},
	}, time.UTC, nil)

	require.Len(t, result.Applied, 1)
	assert.Equal(t, ok.ID, result.Applied[0].Task.ID)
	assert.Equal(t, models.TaskTypeCourse, result.Applied[0].Task.Type)
	assert.Equal(t, []string{
		`任务"已删除"更新失败（任务不存在）`,
		`任务"复习"调整失败`,
	}, result.Failed)

	got, err := store.Get(context.Background(), broken.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskTypeWork, got.Type)

	_, err = store.Get(context.Background(), missing)
	assert.ErrorIs(t, err, database.ErrTaskNotFound)
}
