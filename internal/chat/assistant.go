// Package chat runs conversation turns: memory retrieval, prompt assembly,
// completion, session logging and, when a workflow memory fires, workflow execution.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Adam-Huang/reflect/internal/llm"
	"github.com/Adam-Huang/reflect/internal/memory"
	"github.com/Adam-Huang/reflect/internal/model"
	"github.com/Adam-Huang/reflect/internal/session"
	"github.com/Adam-Huang/reflect/internal/workflow"
)

// SessionSaver persists a session after each exchange.
type SessionSaver interface {
	Save(ctx context.Context, sess *model.Session) error
}

// Runner executes a workflow held in free-form text.
type Runner interface {
	RunText(ctx context.Context, text string, seed model.Environment) (workflow.Outcome, error)
}

// Assistant ties the memory manager, a completer and the session store together.
type Assistant struct {
	mem          *memory.Manager
	llm          llm.Completer
	sessions     SessionSaver
	runner       Runner
	log          *zap.Logger
	budget       int
	historyTurns int
	// reflectWindow bounds the transcript bytes sent in one reflection request.
	reflectWindow int
	now           func() time.Time

	active *model.Session
	quoted []model.Turn
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithSessions persists every exchange through s.
func WithSessions(s SessionSaver) Option {
	return func(a *Assistant) { a.sessions = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) { a.log = l }
}

// WithBudget sets the memory context budget in tokens.
func WithBudget(tokens int) Option {
	return func(a *Assistant) { a.budget = tokens }
}

// WithHistory quotes the last n session turns into each request when nothing was quoted explicitly.
func WithHistory(n int) Option {
	return func(a *Assistant) { a.historyTurns = n }
}

// WithReflectWindow sets the transcript size, in bytes, reflected on per request.
func WithReflectWindow(n int) Option {
	return func(a *Assistant) { a.reflectWindow = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// New creates an assistant.
func New(mem *memory.Manager, completer llm.Completer, opts ...Option) *Assistant {
	a := &Assistant{mem: mem, llm: completer, log: zap.NewNop(), budget: DefaultBudget, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetRunner attaches the workflow engine. The engine's registry usually holds
// abilities that call back into this assistant, so it is wired after construction.
func (a *Assistant) SetRunner(r Runner) { a.runner = r }

// SetSession makes sess the session chat turns and abilities write to.
func (a *Assistant) SetSession(sess *model.Session) {
	a.active = sess
	a.quoted = nil
}

// Session returns the active session, or nil.
func (a *Assistant) Session() *model.Session { return a.active }

// Quote includes turns as history in the next request only.
func (a *Assistant) Quote(turns ...model.Turn) {
	a.quoted = append(a.quoted, turns...)
}

// BuildSystemPrompt assembles the system prompt for query: triggered memories,
// the running workflow overview and environment entries named in the query.
// It also returns the workflow name when a workflow memory was triggered.
func (a *Assistant) BuildSystemPrompt(ctx context.Context, query string, env model.Environment) (string, string, error) {
	packed, err := a.Context(ctx, query)
	if err != nil {
		return "", "", err
	}

	var sb strings.Builder
	sb.WriteString("\nRelevant information about the user:\n")
	for _, m := range packed.Memories {
		fmt.Fprintf(&sb, "\ncreated at [%s]\nsummary:\n%s\n", m.CreatedAt.Format(session.TimeLayout), m.Summary)
	}
	if overview := WorkflowOverview(env); overview != "" {
		fmt.Fprintf(&sb, "\n\nWorkflow in progress:\n%s\n", overview)
	}
	if info := EnvironmentInfo(env, query); info != "" {
		fmt.Fprintf(&sb, "\n\nEnvironment information:\n%s\n", info)
	}

	prompt := "You are a friendly AI assistant. Refer to the following information about the user:\n" +
		sb.String() +
		"\nUse this information where it helps you give a tailored answer."
	return prompt, packed.WorkflowName, nil
}

// Chat sends input with the system prompt and quoted history, then logs both turns to sess.
// A nil sess keeps nothing.
func (a *Assistant) Chat(ctx context.Context, sess *model.Session, input, systemPrompt string) (string, error) {
	history := a.quoted
	if len(history) == 0 && sess != nil && a.historyTurns > 0 {
		n := min(a.historyTurns, len(sess.Conversation))
		history = sess.Conversation[len(sess.Conversation)-n:]
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, t := range history {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: model.RoleUser, Content: input})

	asked := a.now()
	reply, err := a.llm.Complete(ctx, llm.Request{System: systemPrompt, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	a.quoted = nil

	if sess != nil {
		sess.Conversation = append(sess.Conversation,
			session.NewTurn(model.RoleUser, input, asked),
			session.NewTurn(model.RoleAssistant, reply, a.now()))
		if a.sessions != nil {
			if err := a.sessions.Save(ctx, sess); err != nil {
				return reply, fmt.Errorf("save session: %w", err)
			}
		}
	}
	return reply, nil
}

// Call answers content in the active session with memory context. It returns the
// reply and the triggered workflow name, if any.
func (a *Assistant) Call(ctx context.Context, content string, env model.Environment) (string, string, error) {
	prompt, workflowName, err := a.BuildSystemPrompt(ctx, content, env)
	if err != nil {
		return "", "", err
	}
	reply, err := a.Chat(ctx, a.active, content, prompt)
	if err != nil {
		return "", "", err
	}
	return reply, workflowName, nil
}

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	Reply        string            `json:"reply" yaml:"reply"`
	WorkflowName string            `json:"workflow_name,omitempty" yaml:"workflow_name,omitempty"`
	Workflow     *workflow.Outcome `json:"workflow,omitempty" yaml:"workflow,omitempty"`
}

// Turn runs one user turn in the active session. When a workflow memory was
// triggered, the reply is executed as a workflow.
func (a *Assistant) Turn(ctx context.Context, input string) (*TurnResult, error) {
	reply, workflowName, err := a.Call(ctx, input, nil)
	if err != nil {
		return nil, err
	}
	res := &TurnResult{Reply: reply, WorkflowName: workflowName}
	if workflowName == "" || a.runner == nil {
		return res, nil
	}

	a.log.Info("running workflow", zap.String("workflow", workflowName))
	out, err := a.runner.RunText(ctx, reply, nil)
	if err != nil {
		return res, fmt.Errorf("workflow %s: %w", workflowName, err)
	}
	res.Workflow = &out
	return res, nil
}

// WorkflowOverview lists the steps of the running workflow, one per line.
func WorkflowOverview(env model.Environment) string {
	wf, ok := env[model.EnvWorkflowKey].(workflow.Workflow)
	if !ok || len(wf) == 0 {
		return ""
	}
	lines := make([]string, len(wf))
	for i, s := range wf {
		params, _ := json.Marshal(s.Parameters)
		lines[i] = fmt.Sprintf("%s:%s -> %s", s.StepID, s.ActionName, params)
	}
	return strings.Join(lines, "\n")
}

// EnvironmentInfo reports the results of environment keys mentioned in text.
func EnvironmentInfo(env model.Environment, text string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		if k != model.EnvWorkflowKey && strings.Contains(text, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s result: %v\n", k, env[k])
	}
	return sb.String()
}
