package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-schedule/internal/conversation"
	"github.com/benvon/smart-schedule/internal/database"
	"github.com/benvon/smart-schedule/internal/models"
	"github.com/benvon/smart-schedule/internal/services/ai"
	"github.com/benvon/smart-schedule/internal/telemetry"
	"github.com/benvon/smart-schedule/internal/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// MaxScheduleAttempts bounds the propose/validate loop
const MaxScheduleAttempts = 3

// Proposer produces candidate start times for every task. feedback holds the
// issues of the previous attempt, if any.
type Proposer interface {
	Propose(ctx context.Context, tasks []*models.Task, feedback []Issue, now time.Time) ([]models.ScheduleAssignment, error)
}

// ProposerFunc adapts a function to the Proposer interface
type ProposerFunc func(ctx context.Context, tasks []*models.Task, feedback []Issue, now time.Time) ([]models.ScheduleAssignment, error)

// Propose calls f
func (f ProposerFunc) Propose(ctx context.Context, tasks []*models.Task, feedback []Issue, now time.Time) ([]models.ScheduleAssignment, error) {
	return f(ctx, tasks, feedback, now)
}

type schedulePayload struct {
	Schedule []struct {
		ID            string `json:"id"`
		ScheduledTime string `json:"scheduledTime"`
		Reason        string `json:"reason"`
	} `json:"schedule" validate:"required"`
}

// llmProposer asks the completion collaborator for a schedule
type llmProposer struct {
	completer ai.Completer
	loc       *time.Location
	logger    *zap.Logger
}

// NewLLMProposer creates a Proposer backed by the completion collaborator
func NewLLMProposer(completer ai.Completer, loc *time.Location, logger *zap.Logger) Proposer {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &llmProposer{completer: completer, loc: loc, logger: logger}
}

func (p *llmProposer) Propose(ctx context.Context, tasks []*models.Task, feedback []Issue, now time.Time) ([]models.ScheduleAssignment, error) {
	raw, err := p.completer.Complete(ctx, ai.CompletionRequest{
		Operation:   "generate_schedule",
		System:      systemPrompt,
		Prompt:      buildSchedulePrompt(tasks, feedback, now, p.loc),
		Temperature: ai.Temperature(scheduleTemperature),
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	payload, err := ai.ExtractJSON[schedulePayload](raw, func(sp schedulePayload) error {
		return validation.Validate.Struct(sp)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.ScheduleAssignment, 0, len(payload.Schedule))
	for _, item := range payload.Schedule {
		id, err := uuid.Parse(strings.TrimSpace(item.ID))
		if err != nil {
			p.logger.Debug("schedule_item_invalid_id", zap.String("id", item.ID))
			continue
		}
		at, ok := parseLLMTime(item.ScheduledTime, p.loc)
		if !ok {
			p.logger.Debug("schedule_item_invalid_time",
				zap.String("id", item.ID),
				zap.String("scheduled_time", item.ScheduledTime))
			continue
		}
		out = append(out, models.ScheduleAssignment{TaskID: id, ScheduledTime: at, Reason: item.Reason})
	}
	return out, nil
}

// ScheduleOutcome reports one synthesis run
type ScheduleOutcome struct {
	Success     bool
	Scheduled   int
	Summary     string
	Issues      []Issue
	Attempts    int
	Assignments []models.ScheduleAssignment
	// LastErr is the last proposer error, kept so callers can detect rate limits
	LastErr error
}

// Synthesizer runs the bounded propose, validate and apply loop
type Synthesizer struct {
	tasks    database.TaskStore
	proposer Proposer
	logger   *zap.Logger
	progress *conversation.ProgressLog
}

// NewSynthesizer creates a synthesizer. progress may be nil.
func NewSynthesizer(tasks database.TaskStore, proposer Proposer, logger *zap.Logger, progress *conversation.ProgressLog) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{tasks: tasks, proposer: proposer, logger: logger, progress: progress}
}

// Reschedule synthesizes a schedule for every required, incomplete task
func (s *Synthesizer) Reschedule(ctx context.Context, now time.Time) (*ScheduleOutcome, error) {
	tasks, err := s.tasks.ListRequiredIncomplete(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list required tasks: %w", err)
	}
	return s.Synthesize(ctx, tasks, now)
}

// Synthesize places tasks. A validated proposal is applied atomically; an error
// is only returned when applying it fails or ctx is done.
func (s *Synthesizer) Synthesize(ctx context.Context, tasks []*models.Task, now time.Time) (*ScheduleOutcome, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "planner.synthesize")
	defer span.End()
	span.SetAttributes(attribute.Int("planner.tasks", len(tasks)))

	sessionID := ai.ExtractSessionID(ctx)
	if len(tasks) == 0 {
		return &ScheduleOutcome{Success: true, Summary: successSummary(0)}, nil
	}

	outcome := &ScheduleOutcome{}
	var feedback []Issue
	for attempt := 1; attempt <= MaxScheduleAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return outcome, err
		}
		outcome.Attempts = attempt
		s.progress.Record(sessionID, fmt.Sprintf("智能编排尝试 %d/%d", attempt, MaxScheduleAttempts), "")

		proposal, err := s.proposer.Propose(ctx, tasks, feedback, now)
		if err != nil {
			outcome.LastErr = err
			feedback = []Issue{{Kind: IssueProposal, Message: proposalFailureMessage(err)}}
			s.logger.Warn("schedule_proposal_failed",
				zap.String("session_id", sessionID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		issues := ValidateProposal(proposal, tasks)
		if len(issues) > 0 {
			feedback = issues
			s.logger.Info("schedule_validation_failed",
				zap.String("session_id", sessionID),
				zap.Int("attempt", attempt),
				zap.Strings("issues", IssueMessages(issues)))
			s.progress.Record(sessionID, "编排验证失败", strings.Join(IssueMessages(issues), "，"))
			continue
		}

		if err := s.tasks.ApplySchedule(ctx, proposal); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "apply failed")
			return outcome, fmt.Errorf("failed to apply schedule: %w", err)
		}

		outcome.Success = true
		outcome.Scheduled = len(proposal)
		outcome.Assignments = proposal
		outcome.Summary = successSummary(len(proposal))
		outcome.Issues = nil
		span.SetAttributes(attribute.Int("planner.attempts", attempt))
		s.logger.Info("schedule_applied",
			zap.String("session_id", sessionID),
			zap.Int("attempt", attempt),
			zap.Int("scheduled", len(proposal)))
		return outcome, nil
	}

	outcome.Issues = feedback
	outcome.Summary = fmt.Sprintf("编排存在%d个问题", len(feedback))
	span.SetAttributes(attribute.Int("planner.attempts", MaxScheduleAttempts))
	span.SetStatus(codes.Error, "schedule attempts exhausted")
	return outcome, nil
}

func successSummary(n int) string {
	return fmt.Sprintf("成功编排%d个任务，琐碎事务已集中安排，学习时间保持连续", n)
}

func proposalFailureMessage(err error) string {
	if errors.Is(err, ai.ErrInvalidOutput) {
		return "编排结果格式无效"
	}
	return "编排生成失败"
}
