package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-schedule/internal/models"
	"github.com/benvon/smart-schedule/internal/services/ai"
	"go.uber.org/zap"
)

// ErrNoDrafts is returned when a decomposition yields no usable task
var ErrNoDrafts = errors.New("no task drafts could be extracted")

// Decomposition is an ordered list of drafts extracted from one request
type Decomposition struct {
	Analysis string
	Drafts   []models.TaskDraft
}

type decomposePayload struct {
	Analysis       string     `json:"analysis"`
	SuggestedTasks []rawDraft `json:"suggestedTasks"`
}

// Decomposer splits procedural text into atomic task drafts
type Decomposer struct {
	completer ai.Completer
	loc       *time.Location
	logger    *zap.Logger
}

// NewDecomposer creates a decomposer
func NewDecomposer(completer ai.Completer, loc *time.Location, logger *zap.Logger) *Decomposer {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decomposer{completer: completer, loc: loc, logger: logger}
}

// Decompose returns drafts in source order. Malformed output and empty results
// wrap ErrNoDrafts; collaborator errors are returned as is.
func (d *Decomposer) Decompose(ctx context.Context, utterance string, now time.Time) (*Decomposition, error) {
	raw, err := d.completer.Complete(ctx, ai.CompletionRequest{
		Operation:   "split_task",
		System:      systemPrompt,
		Prompt:      buildDecomposePrompt(utterance, now, d.loc),
		Temperature: ai.Temperature(decomposeTemperature),
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decompose task: %w", err)
	}

	payload, err := ai.ExtractJSON[decomposePayload](raw, nil)
	if err != nil {
		d.logger.Warn("task_decomposition_malformed",
			zap.String("session_id", ai.ExtractSessionID(ctx)),
			zap.String("response_preview", ai.SanitizeResponse(raw, false)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNoDrafts, err)
	}

	policy := newDraftPolicy(utterance, d.loc)
	drafts := make([]models.TaskDraft, 0, len(payload.SuggestedTasks))
	dropped := 0
	for _, rd := range payload.SuggestedTasks {
		draft, ok := policy.toDraft(rd)
		if !ok {
			dropped++
			continue
		}
		drafts = append(drafts, draft)
	}
	if dropped > 0 {
		d.logger.Debug("task_drafts_dropped",
			zap.String("session_id", ai.ExtractSessionID(ctx)),
			zap.Int("dropped", dropped))
	}
	if len(drafts) == 0 {
		return nil, ErrNoDrafts
	}

	return &Decomposition{Analysis: payload.Analysis, Drafts: drafts}, nil
}
