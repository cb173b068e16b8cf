package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Adam-Huang/reflect/internal/chunker"
	"github.com/Adam-Huang/reflect/internal/llm"
	"github.com/Adam-Huang/reflect/internal/memory"
	"github.com/Adam-Huang/reflect/internal/model"
	"github.com/Adam-Huang/reflect/internal/workflow"
)

// ErrNoReflection is returned when the reflection reply holds no usable json block.
var ErrNoReflection = errors.New("reflection produced no memories block")

const reflectionSystem = "You are an AI assistant focused on analysis and summarisation."

const reflectionPrompt = `Extract the key information from the conversation below, focusing on what the user said. Pay particular attention to:
1. Positive feedback from the user, such as praise or approval, which shows the assistant answered well. Record it.
2. Negative feedback from the user, such as doubt or dissatisfaction. Remember where the assistant went wrong.

Analyse:
1. The user's interests and hobbies
2. Important personal information
3. Conversational habits and way of speaking
4. Specific events or facts worth remembering

Structure the output as follows:
` + "```json" + `
[
  {
    "summary": "key summary",
    "labels": ["label", "another"],
    "trigger": "trigger_word"
  }
]
` + "```" + `
Triggers may join words with _ but must not contain spaces.

Conversation:
%s`

// Reflection is the outcome of reflecting on a conversation.
type Reflection struct {
	Text  string         `json:"text" yaml:"text"`
	Added []model.Memory `json:"added" yaml:"added"`
}

type reflected struct {
	Summary string   `json:"summary"`
	Labels  []string `json:"labels"`
	Trigger string   `json:"trigger"`
}

// Reflect asks the model to distil conversation into memories and stores each
// one with the reflection label. Transcripts longer than the reflection window
// are reflected on window by window. The raw replies are returned even when
// parsing fails.
func (a *Assistant) Reflect(ctx context.Context, conversation []model.Turn) (*Reflection, error) {
	lines := make([]string, len(conversation))
	for i, t := range conversation {
		lines[i] = t.Role + " - " + t.Content
	}
	windows := chunker.Lines(lines, a.reflectWindow)
	if len(windows) == 0 {
		windows = []chunker.Chunk{{}}
	}

	res := &Reflection{Added: []model.Memory{}}
	var replies []string
	parsed := 0
	for _, w := range windows {
		text, err := a.llm.Complete(ctx, llm.Request{
			System:   reflectionSystem,
			Messages: []llm.Message{{Role: model.RoleUser, Content: fmt.Sprintf(reflectionPrompt, w.Text)}},
		})
		if err != nil {
			res.Text = strings.Join(replies, "\n\n")
			return res, fmt.Errorf("reflection: %w", err)
		}
		replies = append(replies, text)

		items, err := parseReflection(text)
		if err != nil {
			a.log.Warn("reflection not parsed", zap.Int("start_turn", w.StartLine), zap.Error(err))
			continue
		}
		parsed++
		for _, it := range items {
			mem, err := a.storeReflected(ctx, it)
			if err != nil {
				res.Text = strings.Join(replies, "\n\n")
				return res, fmt.Errorf("store reflection: %w", err)
			}
			if mem != nil {
				res.Added = append(res.Added, *mem)
			}
		}
	}
	res.Text = strings.Join(replies, "\n\n")
	if parsed == 0 {
		return res, ErrNoReflection
	}
	a.quoted = nil
	a.log.Info("reflection stored", zap.Int("memories", len(res.Added)), zap.Int("windows", len(windows)))
	return res, nil
}

func parseReflection(text string) ([]reflected, error) {
	body, ok := workflow.ExtractJSON(text)
	if !ok {
		return nil, ErrNoReflection
	}
	var items []reflected
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoReflection, err)
	}
	return items, nil
}

// storeReflected adds one extracted item. Items without a summary are skipped.
func (a *Assistant) storeReflected(ctx context.Context, it reflected) (*model.Memory, error) {
	if strings.TrimSpace(it.Summary) == "" {
		return nil, nil
	}
	labels := slices.DeleteFunc(slices.Clone(it.Labels), func(l string) bool { return strings.TrimSpace(l) == "" })
	labels = append(labels, model.ReflectionLabel)
	return a.mem.AddMemory(ctx, memory.AddParams{
		Text:    it.Summary,
		Summary: it.Summary,
		Labels:  labels,
		Trigger: it.Trigger,
	})
}
