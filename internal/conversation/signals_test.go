package conversation

import (
	"testing"

	"github.com/benvon/smart-schedule/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplexSignals_Matches(t *testing.T) {
	signals := DefaultComplexSignals()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "procedural request",
			text: "请于3月10日之前登录教务系统填写奖学金申请表，打印后签署姓名，并在3月12日17:00截止前提交到学院办公室，逾期不予受理",
			want: true,
		},
		{
			name: "too short",
			text: "3月10日之前填写并提交",
			want: false,
		},
		{
			name: "no action verbs",
			text: "请在3月10日之前完成这份非常长的报告，报告需要涵盖所有的季度数据以及对未来的展望，还要附上详细的分析图表和结论部分的说明文字",
			want: false,
		},
		{
			name: "no time expression",
			text: "需要登录系统填写申请表然后打印出来签署姓名再提交给老师审核，整个流程比较繁琐请帮我拆分成若干个步骤并逐一安排合适的时间完成",
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, signals.Matches(tt.text))
		})
	}
}

func TestNewComplexSignals(t *testing.T) {
	s, err := NewComplexSignals([]string{"submit", "sign"}, `(?i)before|by \d`, 20)
	require.NoError(t, err)
	assert.True(t, s.Matches("Please sign the form and submit it before Friday noon"))
	assert.False(t, s.Matches("Please sign the form before Friday noon, thanks a lot"))

	_, err = NewComplexSignals(nil, "([", 0)
	assert.Error(t, err)
}

func TestFindComplexInput_IgnoresAssistantMessages(t *testing.T) {
	long := "请于3月10日之前登录教务系统填写奖学金申请表，打印后签署姓名，并在3月12日17:00截止前提交到学院办公室，逾期不予受理"
	messages := []models.ChatMessage{
		{Role: models.RoleAssistant, Content: long},
		{Role: models.RoleUser, Content: "好的"},
	}
	_, ok := FindComplexInput(messages, DefaultComplexSignals())
	assert.False(t, ok)
}

func TestFindComplexInput_OnlyPendingRequests(t *testing.T) {
	long := "请于3月10日之前登录教务系统填写奖学金申请表，打印后签署姓名，并在3月12日17:00截止前提交到学院办公室，逾期不予受理"
	awaiting := &models.MessageMetadata{TaskAnalysis: &models.TaskAnalysis{OriginalInput: long, RequiresConfirmation: true}}
	committed := &models.MessageMetadata{Actions: []string{"编排了4个任务"}}

	tests := []struct {
		name     string
		messages []models.ChatMessage
		want     bool
	}{
		{
			name: "no reply yet",
			messages: []models.ChatMessage{
				{Role: models.RoleUser, Content: long},
				{Role: models.RoleUser, Content: "好的"},
			},
			want: true,
		},
		{
			name: "awaiting confirmation",
			messages: []models.ChatMessage{
				{Role: models.RoleUser, Content: long},
				{Role: models.RoleAssistant, Content: "请确认", Metadata: awaiting},
				{Role: models.RoleUser, Content: "好的"},
			},
			want: true,
		},
		{
			name: "already committed",
			messages: []models.ChatMessage{
				{Role: models.RoleUser, Content: long},
				{Role: models.RoleAssistant, Content: "请确认", Metadata: awaiting},
				{Role: models.RoleUser, Content: "好的"},
				{Role: models.RoleAssistant, Content: "已创建", Metadata: committed},
				{Role: models.RoleUser, Content: "好的，谢谢"},
			},
			want: false,
		},
		{
			name: "committed without confirmation",
			messages: []models.ChatMessage{
				{Role: models.RoleUser, Content: long},
				{Role: models.RoleAssistant, Content: "已创建", Metadata: committed},
				{Role: models.RoleUser, Content: "确认"},
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindComplexInput(tt.messages, DefaultComplexSignals())
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, long, got)
			}
		})
	}
}
