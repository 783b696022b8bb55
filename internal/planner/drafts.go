package planner

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/benvon/smart-schedule/internal/models"
	"github.com/benvon/smart-schedule/internal/services/ai"
	"github.com/benvon/smart-schedule/internal/validation"
)

// minSharedRunes is how many consecutive letters or digits a description must
// share with the source text to be kept
const minSharedRunes = 4

// maxConfirmFreeDrafts is the largest decomposition committed without asking
const maxConfirmFreeDrafts = 3

const confirmationPrompt = `如果确认无误，请回复"确认"或"好的"。如需修改，请具体说明。`

// rawDraft is a task draft as emitted by the model
type rawDraft struct {
	Title             string            `json:"title" validate:"required,max=200"`
	Type              string            `json:"type" validate:"omitempty,task_type"`
	ScheduledTime     ai.NullableString `json:"scheduledTime"`
	IsFixedTime       ai.FlexBool       `json:"isFixedTime"`
	Deadline          ai.NullableString `json:"deadline"`
	EstimatedDuration ai.FlexInt        `json:"estimatedDuration"`
	IsRequired        ai.FlexBool       `json:"isRequired"`
	Description       ai.NullableString `json:"description"`
}

// draftPolicy decides which model-provided fields survive, based on the source text
type draftPolicy struct {
	loc         *time.Location
	hasTime     bool
	hasDuration bool
	source      string
}

func newDraftPolicy(source string, loc *time.Location) draftPolicy {
	return draftPolicy{
		loc:         loc,
		hasTime:     HasTemporalExpression(source),
		hasDuration: HasDurationExpression(source),
		source:      foldText(source),
	}
}

// foldText keeps only lower-cased letters and digits
func foldText(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

// grounded reports whether desc repeats detail from the source text: either
// all of it, or a run of at least minSharedRunes runes
func (p draftPolicy) grounded(desc string) bool {
	folded := []rune(foldText(desc))
	if len(folded) == 0 {
		return false
	}
	if len(folded) <= minSharedRunes {
		return strings.Contains(p.source, string(folded))
	}
	for i := 0; i+minSharedRunes <= len(folded); i++ {
		if strings.Contains(p.source, string(folded[i:i+minSharedRunes])) {
			return true
		}
	}
	return false
}

// toDraft validates raw field by field. Fields that fail fall back to their
// safe default; a missing title drops the draft.
func (p draftPolicy) toDraft(raw rawDraft) (models.TaskDraft, bool) {
	raw.Title = validation.SanitizeText(raw.Title)
	failed := validation.FailedFields(validation.Validate.Struct(raw))
	if failed["title"] {
		return models.TaskDraft{}, false
	}

	draft := models.TaskDraft{
		Title:      raw.Title,
		Type:       models.TaskTypeWork,
		IsRequired: raw.IsRequired.Value,
	}
	if !failed["type"] {
		if tt, ok := models.ParseTaskType(raw.Type); ok {
			draft.Type = tt
		}
	}

	if p.hasTime {
		if t, ok := parseLLMTime(raw.ScheduledTime.Value, p.loc); ok && !raw.ScheduledTime.Null {
			draft.ScheduledTime = &t
			draft.IsFixedTime = raw.IsFixedTime.Value
		}
		if t, ok := parseLLMTime(raw.Deadline.Value, p.loc); ok && !raw.Deadline.Null {
			draft.Deadline = &t
		}
	}

	if p.hasDuration && raw.EstimatedDuration.Valid && models.ValidDuration(raw.EstimatedDuration.Value) {
		draft.EstimatedDuration = raw.EstimatedDuration.Ptr()
	}

	if desc := strings.TrimSpace(raw.Description.Value); desc != "" && !raw.Description.Null && p.grounded(desc) {
		draft.Description = &desc
	}

	return draft, true
}

// RequiresConfirmation reports whether drafts must be confirmed before they are created
func RequiresConfirmation(drafts []models.TaskDraft) bool {
	if len(drafts) > maxConfirmFreeDrafts {
		return true
	}
	for _, d := range drafts {
		if d.IsRequired {
			return true
		}
	}
	return false
}

// FormatForConfirmation enumerates drafts for the user to confirm
func FormatForConfirmation(drafts []models.TaskDraft, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("我已为您分析并拆分出以下任务，请确认：\n\n")
	for i, d := range drafts {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, d.Title)
		fmt.Fprintf(&b, "   类型：%s\n", d.Type.DisplayName())
		if d.ScheduledTime != nil {
			fmt.Fprintf(&b, "   计划时间：%s\n", formatLocal(*d.ScheduledTime, loc))
		}
		if d.Deadline != nil {
			fmt.Fprintf(&b, "   截止时间：%s\n", formatLocal(*d.Deadline, loc))
		}
		if d.EstimatedDuration != nil {
			fmt.Fprintf(&b, "   预计用时：%d分钟\n", *d.EstimatedDuration)
		}
		if d.IsRequired {
			b.WriteString("   重要程度：必需完成\n")
		}
		if d.Description != nil {
			fmt.Fprintf(&b, "   备注：%s\n", *d.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString(confirmationPrompt)
	return b.String()
}
