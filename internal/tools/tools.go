// Package tools holds the built-in abilities workflows can call.
package tools

import (
	"context"

	"go.uber.org/zap"

	"github.com/Adam-Huang/reflect/internal/ability"
	"github.com/Adam-Huang/reflect/internal/llm"
	"github.com/Adam-Huang/reflect/internal/model"
)

// Ability names.
const (
	LLMCall       = "llm_call"
	Think         = "think"
	UserCheck     = "user_check"
	ShellCommand  = "shell_operations.execute_shell_command"
	ListDirectory = "file_reader.list_directory"
	ReadFile      = "file_reader.read_file"
	WriteFile     = "filesystem_operations.write_to_file"
	JSONExact     = "re_exact.json_exact"
)

// Caller answers content with memory context in the active session and reports
// the workflow name a triggered workflow memory carries.
type Caller interface {
	Call(ctx context.Context, content string, env model.Environment) (reply, workflowName string, err error)
}

// Deps are the collaborators abilities need. Nil fields disable the abilities that use them.
type Deps struct {
	Caller     Caller
	Completer  llm.Completer
	Interactor Interactor
	Logger     *zap.Logger
}

// Register adds every ability whose dependencies are present to reg.
func Register(reg *ability.Registry, d Deps) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if d.Caller != nil {
		reg.Register(LLMCall, &llmCall{caller: d.Caller}, ability.WithEnvironment(),
			ability.WithDescription("answer content with memory context; a triggered workflow runs on the reply"))
	}
	if d.Completer != nil {
		reg.Register(Think, &think{llm: d.Completer, names: reg.Names}, ability.WithEnvironment(),
			ability.WithDescription("reason about content and the workflow so far without touching the session"))
	}
	if d.Interactor != nil {
		reg.Register(UserCheck, &userCheck{ui: d.Interactor},
			ability.WithDescription("ask the user to approve, modify or terminate input_string"))
	}

	reg.Register(ShellCommand, &shell{log: log.Named("shell")},
		ability.WithDescription("run command in a shell and return its output and error"))
	reg.RegisterFunc(ListDirectory, listDirectory,
		ability.WithDescription("list path up to max_depth levels"))
	reg.RegisterFunc(ReadFile, readFile,
		ability.WithDescription("read read_size bytes of file_path from start"))
	reg.RegisterFunc(WriteFile, writeFile,
		ability.WithDescription("write content to path, creating parent directories"))
	reg.RegisterFunc(JSONExact, jsonExact,
		ability.WithDescription("parse the first json block in text"))
}
