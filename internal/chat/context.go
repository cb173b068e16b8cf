package chat

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/Adam-Huang/reflect/internal/memory"
	"github.com/Adam-Huang/reflect/internal/model"
)

// DefaultBudget is the context budget in tokens when none is configured.
const DefaultBudget = 4000

// ContextMemory is a retrieved memory packed into the prompt.
type ContextMemory struct {
	ID        string    `json:"id" yaml:"id"`
	Trigger   string    `json:"trigger" yaml:"trigger"`
	Summary   string    `json:"summary" yaml:"summary"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Excerpt   bool      `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
}

// ContextResult is the memory context assembled for one query.
type ContextResult struct {
	Budget       int             `json:"budget" yaml:"budget"`
	Used         int             `json:"used" yaml:"used"`
	Triggers     []string        `json:"triggers" yaml:"triggers"`
	WorkflowName string          `json:"workflow_name,omitempty" yaml:"workflow_name,omitempty"`
	Memories     []ContextMemory `json:"memories" yaml:"memories"`
}

// Context retrieves the memories whose triggers occur in query and packs their
// summaries into the budget (rough proxy: 1 token ≈ 4 chars).
//
// A retrieved memory labelled "workflow" names the workflow to run on the reply,
// even when the budget leaves it out of the prompt.
func (a *Assistant) Context(ctx context.Context, query string) (*ContextResult, error) {
	budget := a.budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	charBudget := budget * 4

	result := &ContextResult{Budget: budget, Triggers: a.mem.MatchTriggers(query), Memories: []ContextMemory{}}

	var candidates []model.Memory
	for _, trigger := range result.Triggers {
		found, err := a.mem.SearchMemory(ctx, memory.SearchParams{Query: trigger, Mode: memory.ModeTrigger})
		if err != nil {
			return nil, fmt.Errorf("trigger %q: %w", trigger, err)
		}
		candidates = append(candidates, found...)
	}

	for _, m := range candidates {
		if result.WorkflowName == "" && m.HasLabel(model.WorkflowLabel) && m.Trigger != nil {
			result.WorkflowName = *m.Trigger
		}
	}

	// Greedy packing into budget
	used := 0
	for _, m := range candidates {
		cm := ContextMemory{ID: m.ID, Trigger: m.TriggerName(), Summary: m.Summary, CreatedAt: m.CreatedAt}
		if used+len(m.Summary) <= charBudget {
			result.Memories = append(result.Memories, cm)
			used += len(m.Summary)
		} else if remaining := charBudget - used; remaining >= 100 {
			// Partial fit, excerpt
			cm.Summary = truncate(m.Summary, remaining) + "..."
			cm.Excerpt = true
			result.Memories = append(result.Memories, cm)
			used += len(cm.Summary)
			break
		} else {
			break
		}
	}
	result.Used = used / 4
	return result, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
