package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-schedule/internal/config"
	"github.com/benvon/smart-schedule/internal/conversation"
	"github.com/benvon/smart-schedule/internal/database"
	"github.com/benvon/smart-schedule/internal/models"
	"github.com/benvon/smart-schedule/internal/request"
	"github.com/benvon/smart-schedule/internal/services/ai"
	"github.com/benvon/smart-schedule/internal/telemetry"
	"github.com/benvon/smart-schedule/internal/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultHistoryLimit is how many recent messages are loaded per request
const DefaultHistoryLimit = 20

// User-facing replies
const (
	replyEmptyMessage       = "消息内容不能为空"
	replyIncompleteDraft    = "任务数据不完整，缺少标题或类型"
	replyUnparsableComplex  = "无法解析该复杂任务，请提供更清晰的描述"
	replyComplexFailed      = "处理复杂任务失败，请稍后重试"
	replyReanalysisFailed   = "重新分析任务失败，请重新输入任务描述。"
	replyUnresolvedConfirm  = "很抱歉，我无法找到您要确认的任务内容。请重新输入完整的任务描述，我将重新为您分析。"
	replyUnknownAdjustment  = "无法识别要调整的任务，请明确指定任务名称"
	replyAdjustmentFailed   = "调整失败，请稍后重试"
	replyTasksUnavailable   = "暂时无法读取任务列表，请稍后重试"
	replyNothingToSchedule  = "当前没有需要编排的必需任务"
	replyScheduleSaveFailed = "编排失败: 无法保存编排结果"
)

// Response is the outcome of handling one utterance
type Response struct {
	SessionID           string               `json:"session_id"`
	Success             bool                 `json:"success"`
	Reply               string               `json:"response"`
	Actions             []string             `json:"actions,omitempty"`
	Conflicts           []string             `json:"conflicts,omitempty"`
	PendingConfirmation *models.TaskAnalysis `json:"task_analysis,omitempty"`
}

func failure(reply string) *Response {
	return &Response{Success: false, Reply: reply}
}

// Orchestrator dispatches utterances through classification, decomposition,
// adjustment, confirmation and scheduling
type Orchestrator struct {
	tasks    database.TaskStore
	history  conversation.Store
	progress *conversation.ProgressLog
	logger   *zap.Logger
	now      func() time.Time
	loc      *time.Location

	completer    ai.Completer
	policy       config.Policy
	proposer     Proposer
	historyLimit int

	classifier  *Classifier
	decomposer  *Decomposer
	adjuster    *AdjustmentParser
	synthesizer *Synthesizer
	resolver    *ConfirmationResolver
	cleaner     *Cleaner
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLocation sets the zone used to read and render local times
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) { o.loc = loc }
}

// WithPolicy sets the confirmation policy
func WithPolicy(policy config.Policy) Option {
	return func(o *Orchestrator) { o.policy = policy }
}

// WithProgressLog records processing steps per session
func WithProgressLog(progress *conversation.ProgressLog) Option {
	return func(o *Orchestrator) { o.progress = progress }
}

// WithProposer replaces the model-backed schedule proposer
func WithProposer(p Proposer) Option {
	return func(o *Orchestrator) { o.proposer = p }
}

// WithHistoryLimit sets how many recent messages are consulted
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyLimit = n
		}
	}
}

// New creates an Orchestrator
func New(completer ai.Completer, tasks database.TaskStore, history conversation.Store, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		tasks:        tasks,
		history:      history,
		completer:    completer,
		logger:       zap.NewNop(),
		now:          time.Now,
		loc:          time.Local,
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.proposer == nil {
		o.proposer = NewLLMProposer(completer, o.loc, o.logger)
	}

	resolver, err := NewConfirmationResolver(o.policy, history, o.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build confirmation policy: %w", err)
	}
	o.resolver = resolver
	o.classifier = NewClassifier(completer, o.loc, o.logger)
	o.decomposer = NewDecomposer(completer, o.loc, o.logger)
	o.adjuster = NewAdjustmentParser(completer, o.loc, o.logger)
	o.synthesizer = NewSynthesizer(tasks, o.proposer, o.logger, o.progress)
	o.cleaner = NewCleaner(tasks, o.logger)
	return o, nil
}

// Synthesizer returns the scheduling loop used by the orchestrator
func (o *Orchestrator) Synthesizer() *Synthesizer {
	return o.synthesizer
}

// Cleaner returns the cleanup collaborator used by the orchestrator
func (o *Orchestrator) Cleaner() *Cleaner {
	return o.cleaner
}

// NewSessionID returns a fresh session identifier
func NewSessionID() string {
	return "session_" + uuid.NewString()
}

// Handle processes one utterance. It never returns nil and never panics on
// collaborator failures; every failure is reported through Success and Reply.
func (o *Orchestrator) Handle(ctx context.Context, utterance, sessionID string) *Response {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	ctx = request.WithSessionID(ctx, sessionID)

	ctx, span := telemetry.Tracer().Start(ctx, "planner.handle")
	defer span.End()

	utterance = validation.SanitizeText(utterance)
	if utterance == "" {
		resp := failure(replyEmptyMessage)
		resp.SessionID = sessionID
		return resp
	}

	o.progress.Reset(sessionID)
	if _, err := o.history.Append(ctx, sessionID, models.RoleUser, utterance, nil); err != nil {
		o.logger.Warn("chat_history_append_failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	history, err := o.history.Recent(ctx, sessionID, o.historyLimit)
	if err != nil {
		o.logger.Warn("chat_history_load_failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	now := o.now()
	o.progress.Record(sessionID, "分析输入类型", "")
	classification := o.classifier.Classify(ctx, utterance, now)
	span.SetAttributes(attribute.String("planner.intent", classification.Intent.String()))
	o.logger.Info("planner_handle",
		zap.String("session_id", sessionID),
		zap.String("request_id", ai.ExtractRequestID(ctx)),
		zap.String("intent", classification.Intent.String()))

	var resp *Response
	switch classification.Intent {
	case models.IntentAdjustment:
		resp = o.handleAdjustment(ctx, utterance, now)
	case models.IntentNewTask:
		resp = o.handleNewTask(ctx, classification, now)
	case models.IntentComplexTask:
		resp = o.handleComplexTask(ctx, utterance, now)
	default:
		resp = o.handleQuery(ctx, utterance, sessionID, history, now)
	}
	resp.SessionID = sessionID

	meta := &models.MessageMetadata{
		TaskAnalysis: resp.PendingConfirmation,
		Actions:      resp.Actions,
		Conflicts:    resp.Conflicts,
	}
	if _, err := o.history.Append(ctx, sessionID, models.RoleAssistant, resp.Reply, meta); err != nil {
		o.logger.Warn("chat_history_append_failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	o.progress.Record(sessionID, "处理完成", "")
	span.SetAttributes(attribute.Bool("planner.success", resp.Success))
	return resp
}

// cleanup removes stale tasks before task-creating branches. Failures are logged only.
func (o *Orchestrator) cleanup(ctx context.Context, now time.Time) []string {
	o.progress.Record(ai.ExtractSessionID(ctx), "清理过期任务", "")
	report, err := o.cleaner.Clean(ctx, now)
	if err != nil {
		o.logger.Warn("task_cleanup_failed",
			zap.String("session_id", ai.ExtractSessionID(ctx)),
			zap.Error(err))
	}
	if report.Total() == 0 {
		return nil
	}
	return []string{fmt.Sprintf("清理了%d个已完成或过期任务", report.Total())}
}

func (o *Orchestrator) handleAdjustment(ctx context.Context, utterance string, now time.Time) *Response {
	sessionID := ai.ExtractSessionID(ctx)
	o.progress.Record(sessionID, "解析调整指令", "")

	tasks, err := o.tasks.ListAll(ctx)
	if err != nil {
		o.logger.Error("task_list_failed", zap.String("session_id", sessionID), zap.Error(err))
		return failure(replyTasksUnavailable)
	}

	deltas, err := o.adjuster.Parse(ctx, utterance, tasks, now)
	if err != nil {
		o.logger.Warn("adjustment_parse_failed", zap.String("session_id", sessionID), zap.Error(err))
		return failure(replyAdjustmentFailed)
	}
	if len(deltas) == 0 {
		return failure(replyUnknownAdjustment)
	}

	if conflicts := DetectAdjustmentConflicts(deltas, tasks); len(conflicts) > 0 {
		resp := failure("发现以下冲突，请提供进一步指令：\n" + strings.Join(conflicts, "\n"))
		resp.Conflicts = conflicts
		return resp
	}

	o.progress.Record(sessionID, "应用调整", fmt.Sprintf("%d项", len(deltas)))
	result := ApplyDeltas(ctx, o.tasks, deltas, o.loc, o.logger)

	var lines, actions []string
	for _, applied := range result.Applied {
		lines = append(lines, fmt.Sprintf("任务\"%s\"调整完成：%s", applied.Task.Title, strings.Join(applied.Actions, "、")))
		for _, action := range applied.Actions {
			actions = append(actions, applied.Task.Title+": "+action)
		}
	}

	var reply strings.Builder
	reply.WriteString(strings.Join(lines, "\n"))
	if len(result.Failed) > 0 {
		if reply.Len() > 0 {
			reply.WriteString("\n\n")
		}
		reply.WriteString("以下调整失败：\n")
		reply.WriteString(strings.Join(result.Failed, "\n"))
	}
	if reply.Len() == 0 {
		reply.WriteString("没有任务被调整")
	}

	return &Response{
		Success: len(result.Applied) > 0,
		Reply:   reply.String(),
		Actions: actions,
	}
}

func (o *Orchestrator) handleNewTask(ctx context.Context, c Classification, now time.Time) *Response {
	actions := o.cleanup(ctx, now)

	if c.Draft == nil {
		return failure(replyIncompleteDraft)
	}
	task, err := o.tasks.Create(ctx, *c.Draft)
	if err != nil {
		o.logger.Error("task_create_failed",
			zap.String("session_id", ai.ExtractSessionID(ctx)),
			zap.Error(err))
		if errors.Is(err, database.ErrInvalidTask) {
			return failure(replyIncompleteDraft)
		}
		return failure("创建任务失败，请稍后重试")
	}
	actions = append(actions, "创建任务："+task.Title)

	resp := o.schedule(ctx, now)
	resp.Reply = fmt.Sprintf("已添加任务：%s\n\n%s", task.Title, resp.Reply)
	resp.Actions = append(actions, resp.Actions...)
	return resp
}

func (o *Orchestrator) handleComplexTask(ctx context.Context, utterance string, now time.Time) *Response {
	actions := o.cleanup(ctx, now)

	o.progress.Record(ai.ExtractSessionID(ctx), "拆分复杂任务", "")
	decomposition, err := o.decomposer.Decompose(ctx, utterance, now)
	if err != nil {
		o.logger.Warn("task_decomposition_failed",
			zap.String("session_id", ai.ExtractSessionID(ctx)),
			zap.Error(err))
		if errors.Is(err, ErrNoDrafts) {
			return failure(replyUnparsableComplex)
		}
		return failure(replyComplexFailed)
	}

	if RequiresConfirmation(decomposition.Drafts) {
		o.progress.Record(ai.ExtractSessionID(ctx), "等待用户确认", fmt.Sprintf("%d个任务", len(decomposition.Drafts)))
		return &Response{
			Success: true,
			Reply:   FormatForConfirmation(decomposition.Drafts, o.loc),
			Actions: actions,
			PendingConfirmation: &models.TaskAnalysis{
				OriginalInput:        utterance,
				SuggestedTasks:       decomposition.Drafts,
				RequiresConfirmation: true,
			},
		}
	}

	resp := o.commitDrafts(ctx, decomposition.Drafts, now)
	resp.Actions = append(actions, resp.Actions...)
	return resp
}

func (o *Orchestrator) handleQuery(ctx context.Context, utterance, sessionID string, history []models.ChatMessage, now time.Time) *Response {
	resolution := o.resolver.Resolve(ctx, utterance, sessionID, history)
	if resolution.Resolved {
		o.progress.Record(sessionID, "确认原始任务", "")
		actions := o.cleanup(ctx, now)
		decomposition, err := o.decomposer.Decompose(ctx, resolution.OriginalInput, now)
		if err != nil {
			o.logger.Warn("task_reanalysis_failed", zap.String("session_id", sessionID), zap.Error(err))
			return failure(replyReanalysisFailed)
		}
		resp := o.commitDrafts(ctx, decomposition.Drafts, now)
		resp.Actions = append(actions, resp.Actions...)
		return resp
	}
	if resolution.IsConfirmation {
		return failure(replyUnresolvedConfirm)
	}

	return o.answerQuery(ctx, utterance, now)
}

func (o *Orchestrator) answerQuery(ctx context.Context, utterance string, now time.Time) *Response {
	tasks, err := o.tasks.ListAll(ctx)
	if err != nil {
		o.logger.Error("task_list_failed", zap.String("session_id", ai.ExtractSessionID(ctx)), zap.Error(err))
		return failure(replyTasksUnavailable)
	}
	stats := ComputeStats(tasks)

	answer, err := o.completer.Complete(ctx, ai.CompletionRequest{
		Operation:   "answer_query",
		Prompt:      buildQueryPrompt(utterance, stats, now, o.loc),
		Temperature: ai.Temperature(queryTemperature),
	})
	answer = strings.TrimSpace(answer)
	if err != nil || answer == "" {
		if err != nil {
			o.logger.Warn("query_answer_failed", zap.String("session_id", ai.ExtractSessionID(ctx)), zap.Error(err))
		}
		answer = "当前任务情况：\n" + stats.String()
	}
	return &Response{Success: true, Reply: answer}
}

// commitDrafts creates drafts in order, then schedules. Individual create
// failures are reported next to the successes.
func (o *Orchestrator) commitDrafts(ctx context.Context, drafts []models.TaskDraft, now time.Time) *Response {
	var created []*models.Task
	var actions, failed []string
	for _, d := range drafts {
		task, err := o.tasks.Create(ctx, d)
		if err != nil {
			o.logger.Warn("task_create_failed",
				zap.String("session_id", ai.ExtractSessionID(ctx)),
				zap.String("title", d.Title),
				zap.Error(err))
			failed = append(failed, fmt.Sprintf("创建任务\"%s\"失败", d.Title))
			continue
		}
		created = append(created, task)
		actions = append(actions, "创建任务："+task.Title)
	}
	if len(created) == 0 {
		resp := failure("创建任务失败：\n" + strings.Join(failed, "\n"))
		resp.Conflicts = failed
		return resp
	}

	var b strings.Builder
	fmt.Fprintf(&b, "已成功拆分并创建%d个任务：\n", len(created))
	for i, t := range created {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t.Title)
	}
	if len(failed) > 0 {
		b.WriteString("\n以下任务创建失败：\n")
		b.WriteString(strings.Join(failed, "\n"))
		b.WriteString("\n")
	}

	sched := o.schedule(ctx, now)
	b.WriteString("\n")
	b.WriteString(sched.Reply)

	return &Response{
		Success:   true,
		Reply:     b.String(),
		Actions:   append(actions, sched.Actions...),
		Conflicts: append(failed, sched.Conflicts...),
	}
}

// schedule runs the synthesizer over every required, incomplete task
func (o *Orchestrator) schedule(ctx context.Context, now time.Time) *Response {
	outcome, err := o.synthesizer.Reschedule(ctx, now)
	if err != nil {
		o.logger.Error("schedule_failed", zap.String("session_id", ai.ExtractSessionID(ctx)), zap.Error(err))
		return failure(replyScheduleSaveFailed)
	}
	return scheduleResponse(outcome)
}

func scheduleResponse(outcome *ScheduleOutcome) *Response {
	if !outcome.Success {
		issues := IssueMessages(outcome.Issues)
		resp := failure("编排失败: " + strings.Join(issues, ", "))
		resp.Conflicts = issues
		return resp
	}
	if outcome.Scheduled == 0 {
		return &Response{Success: true, Reply: replyNothingToSchedule}
	}
	return &Response{
		Success: true,
		Reply:   "任务编排完成！" + outcome.Summary,
		Actions: []string{fmt.Sprintf("编排了%d个任务", outcome.Scheduled), outcome.Summary},
	}
}
