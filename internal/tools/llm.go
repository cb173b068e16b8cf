package tools

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Adam-Huang/reflect/internal/ability"
	"github.com/Adam-Huang/reflect/internal/llm"
	"github.com/Adam-Huang/reflect/internal/model"
	"github.com/Adam-Huang/reflect/internal/workflow"
)

type llmCall struct {
	caller Caller
}

// Invoke answers content. When the reply was produced under a workflow memory
// it is handed back as a followup so the engine runs it before the next step.
func (l *llmCall) Invoke(ctx context.Context, call ability.Call) (ability.Result, error) {
	content, err := ability.RequireString(call.Params, "content")
	if err != nil {
		return ability.Result{}, err
	}
	reply, workflowName, err := l.caller.Call(ctx, content, call.Environment)
	if err != nil {
		return ability.Result{}, err
	}
	if workflowName != "" {
		return ability.Result{Value: reply, Followup: reply}, nil
	}
	return ability.Value(reply), nil
}

const thinkSystem = `You are a careful planner. Think step by step about the request before answering.
If the request needs actions, answer with a json workflow block:
` + "```json" + `
[{"action_name": "<action>", "parameters": {...}}]
` + "```" + `
Refer to earlier results by their step id, for example "STEP1".`

type think struct {
	llm   llm.Completer
	names func() []string
}

func (t *think) Invoke(ctx context.Context, call ability.Call) (ability.Result, error) {
	content, err := ability.RequireString(call.Params, "content")
	if err != nil {
		return ability.Result{}, err
	}
	system := thinkSystem + "\n\nAvailable actions: " + strings.Join(t.names(), ", ")
	if env := DescribeEnvironment(call.Environment); env != "" {
		system += "\n\n" + env
	}
	reply, err := t.llm.Complete(ctx, llm.Request{
		System:   system,
		Messages: []llm.Message{{Role: model.RoleUser, Content: content}},
	})
	if err != nil {
		return ability.Result{}, err
	}
	return ability.Value(reply), nil
}

// DescribeEnvironment summarises the running workflow and every step result so far.
func DescribeEnvironment(env model.Environment) string {
	var sb strings.Builder
	if wf, ok := env[model.EnvWorkflowKey].(workflow.Workflow); ok && len(wf) > 0 {
		sb.WriteString("Current workflow:\n")
		for _, s := range wf {
			fmt.Fprintf(&sb, "%s: %s %v\n", s.StepID, s.ActionName, s.Parameters)
		}
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		if k != model.EnvWorkflowKey {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	if len(keys) > 0 {
		sb.WriteString("Results so far:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s result: %v\n", k, env[k])
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
