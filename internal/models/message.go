package models

import "time"

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of a session's conversation history
type ChatMessage struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// MessageMetadata carries the structured outcome attached to an assistant reply
type MessageMetadata struct {
	TaskAnalysis *TaskAnalysis `json:"task_analysis,omitempty"`
	Actions      []string      `json:"actions,omitempty"`
	Conflicts    []string      `json:"conflicts,omitempty"`
}

// TaskAnalysis describes a decomposition that may be awaiting confirmation
type TaskAnalysis struct {
	OriginalInput        string      `json:"original_input"`
	SuggestedTasks       []TaskDraft `json:"suggested_tasks"`
	RequiresConfirmation bool        `json:"requires_confirmation"`
}
