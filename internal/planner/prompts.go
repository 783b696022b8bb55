package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-schedule/internal/models"
)

const systemPrompt = "你是一个个人日程规划助手。只输出要求的JSON对象，不要输出多余文字。"

// Sampling temperatures per operation
const (
	classifyTemperature  = 0.3
	decomposeTemperature = 0.3
	adjustTemperature    = 0.3
	scheduleTemperature  = 0.5
	queryTemperature     = 0.7
)

const relativeDateRules = `**重要：用户提到相对时间时，请基于上面的ISO日期计算具体日期**
- "明天" = 当前日期+1天
- "后天" = 当前日期+2天
- "周六"、"周日"等 = 下一个对应的星期几
- "下周" = 当前日期+7天
`

const taskTypeGuide = `**任务类型定义：**
- course: 课程类（上课、作业等）
- trivial: 琐碎事务（跑腿、申报、简单操作等）
- work: 工作类（项目任务、报告等）
- learning: 学习类（自主学习、研究等）
`

func buildClassifyPrompt(utterance string, now time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(dateHeader(now, loc))
	b.WriteString("\n")
	b.WriteString(relativeDateRules)
	b.WriteString(`
判断以下用户输入属于哪种类型：
1. adjustment - 调整现有任务（"把...改到..."、"调整..."、"修改类型..."、"移除备注..."）
2. new_task - 单个新任务（"我要..."、"明天..."、"帮我安排..."）
3. query - 一般查询或闲聊（"今天有什么安排"、"我的任务怎么样"）
4. complex_task - 包含多个步骤、多个动作或多个时间节点、需要拆分的任务描述

规则：
- scheduledTime 仅当用户明确指定执行时间时才填写
- deadline 仅当用户明确提到截止时间时才填写
- estimatedDuration 仅当用户明确提到预计时长时才填写（分钟）
- isRequired 默认false，仅当用户说明必须/重要/紧急时为true

用户输入：`)
	b.WriteString(utterance)
	b.WriteString(`

请只返回JSON：
{
  "type": "adjustment|new_task|query|complex_task",
  "explanation": "判断理由",
  "taskInfo": {
    "title": "任务标题",
    "type": "course|trivial|work|learning",
    "scheduledTime": "YYYY-MM-DD HH:MM",
    "isFixedTime": false,
    "deadline": "YYYY-MM-DD HH:MM",
    "estimatedDuration": 30,
    "isRequired": false
  }
}
`)
	return b.String()
}

func buildDecomposePrompt(utterance string, now time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(dateHeader(now, loc))
	b.WriteString(`
请把下面的复杂描述拆分为具体、可执行的子任务。

拆分原则：
1. 每个不同的动作词（填报、提交、打印、签字等）和每个不同的时间节点都可能是一个独立任务
2. 按原文顺序排列任务
3. 除非原文明确给出执行时间，否则不要填写scheduledTime
4. 除非原文明确给出截止时间，否则不要填写deadline
5. 除非原文明确给出时长，否则不要填写estimatedDuration
6. description只在原文提供了补充说明时填写，不要自行编写

`)
	b.WriteString(relativeDateRules)
	b.WriteString("\n")
	b.WriteString(taskTypeGuide)
	b.WriteString("\n用户输入：")
	b.WriteString(utterance)
	b.WriteString(`

请只返回JSON：
{
  "analysis": "对文本的分析总结",
  "suggestedTasks": [
    {
      "title": "具体任务标题",
      "type": "course|trivial|work|learning",
      "scheduledTime": "YYYY-MM-DD HH:MM",
      "isFixedTime": false,
      "deadline": "YYYY-MM-DD HH:MM",
      "estimatedDuration": 30,
      "isRequired": false,
      "description": "备注"
    }
  ]
}
`)
	return b.String()
}

// promptTask is the view of a task shown to the model
type promptTask struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Type              string  `json:"type"`
	IsFixedTime       bool    `json:"isFixedTime"`
	ScheduledTime     *string `json:"scheduledTime"`
	Deadline          *string `json:"deadline"`
	EstimatedDuration *int    `json:"estimatedDuration"`
	IsRequired        bool    `json:"isRequired"`
	Description       *string `json:"description,omitempty"`
}

func tasksJSON(tasks []*models.Task, loc *time.Location) string {
	view := make([]promptTask, 0, len(tasks))
	for _, t := range tasks {
		pt := promptTask{
			ID:                t.ID.String(),
			Title:             t.Title,
			Type:              string(t.Type),
			IsFixedTime:       t.IsFixedTime,
			EstimatedDuration: t.EstimatedDuration,
			IsRequired:        t.IsRequired,
			Description:       t.Description,
		}
		if t.ScheduledTime != nil {
			s := formatLocal(*t.ScheduledTime, loc)
			pt.ScheduledTime = &s
		}
		if t.Deadline != nil {
			s := formatLocal(*t.Deadline, loc)
			pt.Deadline = &s
		}
		view = append(view, pt)
	}
	out, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(out)
}

func buildAdjustPrompt(utterance string, tasks []*models.Task, now time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(dateHeader(now, loc))
	b.WriteString("\n现有任务列表：\n")
	b.WriteString(tasksJSON(tasks, loc))
	b.WriteString("\n\n用户调整指令：")
	b.WriteString(utterance)
	b.WriteString(`

分析用户要调整哪些任务以及调整内容。一条指令可能调整多个任务，每个任务返回一项。
只返回需要调整的字段；未调整的字段不要出现。
newDeadline 为 null 表示移除截止时间；newDescription 为 null 表示移除备注。

`)
	b.WriteString(relativeDateRules)
	b.WriteString("\n")
	b.WriteString(taskTypeGuide)
	b.WriteString(`
示例：
- "金融工程上课是课程，申报奖学金是琐碎事务" → 两项：一项 newType=course，一项 newType=trivial
- "移除项目报告的备注" → newDescription: null
- "给数学作业添加备注：包含微积分" → newDescription: "包含微积分"

请只返回JSON：
{
  "adjustments": [
    {
      "taskId": "任务ID",
      "taskTitle": "任务标题",
      "newScheduledTime": "YYYY-MM-DD HH:MM",
      "newDuration": 60,
      "newDeadline": "YYYY-MM-DD HH:MM",
      "newType": "course|trivial|work|learning",
      "newDescription": "新备注"
    }
  ]
}
`)
	return b.String()
}

func buildSchedulePrompt(tasks []*models.Task, feedback []Issue, now time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(dateHeader(now, loc))
	b.WriteString(`
请为以下任务安排合理的开始时间，遵循：
1. 琐碎事务尽量集中在一起处理
2. 学习任务安排成连续、不被打扰的时间块
3. isFixedTime为true的任务保持原定时间，不能更改
4. 不得晚于截止时间，并优先安排重要（isRequired）任务
5. 有预计时长的任务之间时间不能重叠
6. 每个任务必须且只能出现一次

当前任务列表：
`)
	b.WriteString(tasksJSON(tasks, loc))
	if len(feedback) > 0 {
		b.WriteString("\n\n上一次编排存在以下问题，请修正：\n")
		for _, issue := range feedback {
			b.WriteString("- ")
			b.WriteString(issue.Message)
			b.WriteString("\n")
		}
	}
	b.WriteString(`

请只返回JSON：
{
  "schedule": [
    {"id": "任务ID", "scheduledTime": "YYYY-MM-DD HH:MM", "reason": "编排理由"}
  ]
}
`)
	return b.String()
}

// TaskStats summarises the task set for general queries
type TaskStats struct {
	Total      int                     `json:"total"`
	Completed  int                     `json:"completed"`
	Incomplete int                     `json:"incomplete"`
	ByType     map[models.TaskType]int `json:"by_type"`
}

// ComputeStats counts tasks by completion and type
func ComputeStats(tasks []*models.Task) TaskStats {
	stats := TaskStats{ByType: make(map[models.TaskType]int, len(models.TaskTypes))}
	for _, t := range tasks {
		stats.Total++
		if t.IsCompleted {
			stats.Completed++
		} else {
			stats.Incomplete++
		}
		stats.ByType[t.Type]++
	}
	return stats
}

// String renders the statistics as the bullet list used in replies and prompts
func (s TaskStats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "- 总任务数：%d\n- 已完成：%d\n- 未完成：%d\n", s.Total, s.Completed, s.Incomplete)
	for _, tt := range models.TaskTypes {
		fmt.Fprintf(&b, "- %s：%d\n", tt.DisplayName(), s.ByType[tt])
	}
	return b.String()
}

func buildQueryPrompt(utterance string, stats TaskStats, now time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(dateHeader(now, loc))
	b.WriteString("\n用户询问：")
	b.WriteString(utterance)
	b.WriteString("\n\n当前任务情况：\n")
	b.WriteString(stats.String())
	b.WriteString("\n请基于这些信息回答用户的问题，要友好、简洁、实用。\n")
	return b.String()
}
