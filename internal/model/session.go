package model

import "time"

// Turn is one message in a conversation. Turns are never mutated once written.
type Turn struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
	Time    string `json:"time" yaml:"time"`
	ID      string `json:"id" yaml:"id"`
}

// Session is an append-only conversation log.
type Session struct {
	SessionID    string         `json:"session_id" yaml:"session_id"`
	SessionName  string         `json:"session_name" yaml:"session_name"`
	Conversation []Turn         `json:"conversation" yaml:"conversation"`
	SessionPath  string         `json:"session_path" yaml:"session_path"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
	Deleted      bool           `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Extra        map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Roles used in conversation turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Environment maps step ids (plus the reserved key "workflow") to step results.
type Environment map[string]any

// EnvWorkflowKey holds the parsed steps of the running workflow.
const EnvWorkflowKey = "workflow"

// Clone returns a shallow copy used to seed nested workflows.
func (e Environment) Clone() Environment {
	c := make(Environment, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}
