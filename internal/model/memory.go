// Package model defines the core memory, session and workflow data types.
package model

import (
	"slices"
	"time"
)

// Memory represents a stored memory entry.
type Memory struct {
	ID           string         `json:"id" yaml:"id"`
	OriginalText string         `json:"original_text" yaml:"original_text"`
	Summary      string         `json:"summary" yaml:"summary"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" yaml:"updated_at"`
	Labels       []string       `json:"labels" yaml:"labels"`
	Trigger      *string        `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Embedding    []float32      `json:"-" yaml:"-"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// HasLabel reports whether the memory is tagged with label.
func (m *Memory) HasLabel(label string) bool {
	return slices.Contains(m.Labels, label)
}

// TriggerName returns the trigger or "" when unset.
func (m *Memory) TriggerName() string {
	if m.Trigger == nil {
		return ""
	}
	return *m.Trigger
}

// Clone returns a deep copy, so callers can't mutate cached records.
func (m Memory) Clone() Memory {
	c := m
	c.Labels = slices.Clone(m.Labels)
	c.Embedding = slices.Clone(m.Embedding)
	if m.Trigger != nil {
		t := *m.Trigger
		c.Trigger = &t
	}
	if m.Metadata != nil {
		c.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// Label is a free-form categorical tag.
type Label struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Trigger is a keyword that pulls its memories into context when it appears in user input.
type Trigger struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// WorkflowLabel marks memories whose trigger names a workflow.
const WorkflowLabel = "workflow"

// ReflectionLabel is appended to memories extracted by reflection.
const ReflectionLabel = "reflection"

// StringPtr returns a pointer to s, or nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
