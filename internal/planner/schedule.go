package planner

import (
	"fmt"
	"time"

	"github.com/benvon/smart-schedule/internal/models"
	"github.com/google/uuid"
)

// FixedTimeTolerance is how far a fixed-time task may drift in a proposal
const FixedTimeTolerance = 60 * time.Second

// IssueKind names the rule a schedule proposal broke
type IssueKind string

const (
	IssueMissing   IssueKind = "missing"
	IssueDuplicate IssueKind = "duplicate"
	IssueUnknown   IssueKind = "unknown"
	IssueFixedTime IssueKind = "fixed_time"
	IssueDeadline  IssueKind = "deadline"
	IssueOverlap   IssueKind = "overlap"
	// IssueProposal covers proposals that could not be produced or parsed
	IssueProposal IssueKind = "proposal"
)

// Issue is one validation failure of a schedule proposal
type Issue struct {
	Kind    IssueKind   `json:"kind"`
	TaskIDs []uuid.UUID `json:"task_ids,omitempty"`
	Message string      `json:"message"`
}

// IssueMessages flattens issues for replies
func IssueMessages(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Message
	}
	return out
}

// ValidateProposal checks a proposal against the hard scheduling rules. It is
// pure and returns nil when the proposal is acceptable.
func ValidateProposal(proposal []models.ScheduleAssignment, tasks []*models.Task) []Issue {
	byID := make(map[uuid.UUID]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var issues []Issue
	seen := make(map[uuid.UUID]bool, len(proposal))
	placed := make([]models.ScheduleAssignment, 0, len(proposal))

	for _, a := range proposal {
		task, ok := byID[a.TaskID]
		if !ok {
			issues = append(issues, Issue{
				Kind:    IssueUnknown,
				TaskIDs: []uuid.UUID{a.TaskID},
				Message: fmt.Sprintf("安排中包含未知任务ID %s", a.TaskID),
			})
			continue
		}
		if seen[a.TaskID] {
			issues = append(issues, Issue{
				Kind:    IssueDuplicate,
				TaskIDs: []uuid.UUID{a.TaskID},
				Message: fmt.Sprintf("任务\"%s\"被重复安排", task.Title),
			})
			continue
		}
		seen[a.TaskID] = true
		placed = append(placed, a)
	}

	var missing []uuid.UUID
	for _, t := range tasks {
		if !seen[t.ID] {
			missing = append(missing, t.ID)
		}
	}
	if len(missing) > 0 {
		issues = append(issues, Issue{
			Kind:    IssueMissing,
			TaskIDs: missing,
			Message: fmt.Sprintf("有%d个任务未安排时间", len(missing)),
		})
	}

	for _, a := range placed {
		task := byID[a.TaskID]
		if task.IsFixedTime && task.ScheduledTime != nil {
			drift := a.ScheduledTime.Sub(*task.ScheduledTime)
			if drift < -FixedTimeTolerance || drift > FixedTimeTolerance {
				issues = append(issues, Issue{
					Kind:    IssueFixedTime,
					TaskIDs: []uuid.UUID{task.ID},
					Message: fmt.Sprintf("任务\"%s\"的时间不能更改（固定时间）", task.Title),
				})
			}
		}
	}

	for _, a := range placed {
		task := byID[a.TaskID]
		if task.Deadline != nil && a.ScheduledTime.After(*task.Deadline) {
			issues = append(issues, Issue{
				Kind:    IssueDeadline,
				TaskIDs: []uuid.UUID{task.ID},
				Message: fmt.Sprintf("任务\"%s\"安排时间超过截止时间", task.Title),
			})
		}
	}

	for i := 0; i < len(placed); i++ {
		a := byID[placed[i].TaskID]
		durA, okA := a.Duration()
		if !okA {
			continue
		}
		for j := i + 1; j < len(placed); j++ {
			b := byID[placed[j].TaskID]
			durB, okB := b.Duration()
			if !okB {
				continue
			}
			if intervalsOverlap(placed[i].ScheduledTime, durA, placed[j].ScheduledTime, durB) {
				issues = append(issues, Issue{
					Kind:    IssueOverlap,
					TaskIDs: []uuid.UUID{a.ID, b.ID},
					Message: fmt.Sprintf("任务\"%s\"和\"%s\"时间冲突", a.Title, b.Title),
				})
			}
		}
	}

	return issues
}

// intervalsOverlap compares half-open intervals [start, start+dur)
func intervalsOverlap(startA time.Time, durA time.Duration, startB time.Time, durB time.Duration) bool {
	return startA.Before(startB.Add(durB)) && startB.Before(startA.Add(durA))
}
