// Package workflow parses model-authored action blocks and executes them against an ability registry.
package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Step is one action invocation. StepID is "STEP" + 1-based position, fixed at parse time.
type Step struct {
	ActionName string         `json:"action_name" yaml:"action_name"`
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
	StepID     string         `json:"step_id" yaml:"step_id"`
}

// Workflow is an ordered list of steps.
type Workflow []Step

// ErrNoBlock is returned by ParseStrict when the text has no json fence.
var ErrNoBlock = errors.New("no json block")

var jsonBlock = regexp.MustCompile("(?s)```json\\s*\\n(.*?)```")

// ExtractJSON returns the body of the first ```json fence in text.
func ExtractJSON(text string) (string, bool) {
	m := jsonBlock.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Parse extracts a workflow from free-form text. Malformed or absent blocks yield an empty workflow.
func Parse(text string) Workflow {
	wf, _ := ParseStrict(text)
	return wf
}

// ParseStrict is Parse that reports why nothing was parsed. The returned workflow is never nil.
func ParseStrict(text string) (Workflow, error) {
	body, ok := ExtractJSON(text)
	if !ok {
		return Workflow{}, ErrNoBlock
	}
	body = string(bytes.TrimSpace([]byte(body)))

	var raw []rawStep
	if len(body) > 0 && body[0] == '{' {
		var one rawStep
		if err := json.Unmarshal([]byte(body), &one); err != nil {
			return Workflow{}, fmt.Errorf("decode action: %w", err)
		}
		raw = []rawStep{one}
	} else if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Workflow{}, fmt.Errorf("decode workflow: %w", err)
	}

	wf := make(Workflow, len(raw))
	for i, r := range raw {
		params := r.Parameters
		if params == nil {
			params = map[string]any{}
		}
		wf[i] = Step{ActionName: r.ActionName, Parameters: params, StepID: StepID(i)}
	}
	return wf, nil
}

type rawStep struct {
	ActionName string         `json:"action_name"`
	Parameters map[string]any `json:"parameters"`
}

// StepID returns the id of the step at zero-based position i.
func StepID(i int) string {
	return "STEP" + strconv.Itoa(i+1)
}

// Format renders the workflow back into a fenced block.
func (wf Workflow) Format() string {
	raw := make([]rawStep, len(wf))
	for i, s := range wf {
		raw[i] = rawStep{ActionName: s.ActionName, Parameters: s.Parameters}
	}
	b, _ := json.MarshalIndent(raw, "", "  ")
	return "```json\n" + string(b) + "\n```"
}
