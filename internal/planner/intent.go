package planner

import (
	"context"
	"time"

	"github.com/benvon/smart-schedule/internal/models"
	"github.com/benvon/smart-schedule/internal/services/ai"
	"github.com/benvon/smart-schedule/internal/validation"
	"go.uber.org/zap"
)

// Classification is the outcome of intent classification. Draft is only set
// for IntentNewTask and may be nil when the model gave no usable task.
type Classification struct {
	Intent      models.Intent
	Draft       *models.TaskDraft
	Explanation string
}

type classifyPayload struct {
	Type        string    `json:"type" validate:"required,intent"`
	Explanation string    `json:"explanation"`
	TaskInfo    *rawDraft `json:"taskInfo" validate:"-"`
}

// Classifier maps an utterance to an intent
type Classifier struct {
	completer ai.Completer
	loc       *time.Location
	logger    *zap.Logger
}

// NewClassifier creates a classifier
func NewClassifier(completer ai.Completer, loc *time.Location, logger *zap.Logger) *Classifier {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{completer: completer, loc: loc, logger: logger}
}

// Classify never fails: any collaborator or parsing problem yields IntentQuery.
func (c *Classifier) Classify(ctx context.Context, utterance string, now time.Time) Classification {
	raw, err := c.completer.Complete(ctx, ai.CompletionRequest{
		Operation:   "classify_input",
		System:      systemPrompt,
		Prompt:      buildClassifyPrompt(utterance, now, c.loc),
		Temperature: ai.Temperature(classifyTemperature),
		JSONMode:    true,
	})
	if err != nil {
		c.logger.Warn("intent_classification_failed",
			zap.String("session_id", ai.ExtractSessionID(ctx)),
			zap.Error(err))
		return Classification{Intent: models.IntentQuery}
	}

	payload, err := ai.ExtractJSON[classifyPayload](raw, func(p classifyPayload) error {
		return validation.Validate.Struct(p)
	})
	if err != nil {
		c.logger.Warn("intent_classification_fallback",
			zap.String("session_id", ai.ExtractSessionID(ctx)),
			zap.String("response_preview", ai.SanitizeResponse(raw, false)),
			zap.Error(err))
		return Classification{Intent: models.IntentQuery}
	}

	intent, _ := models.ParseIntent(payload.Type)
	result := Classification{Intent: intent, Explanation: payload.Explanation}
	if intent == models.IntentNewTask && payload.TaskInfo != nil {
		if draft, ok := newDraftPolicy(utterance, c.loc).toDraft(*payload.TaskInfo); ok {
			result.Draft = &draft
		}
	}

	c.logger.Debug("intent_classified",
		zap.String("session_id", ai.ExtractSessionID(ctx)),
		zap.String("intent", intent.String()),
		zap.Bool("has_draft", result.Draft != nil))
	return result
}
