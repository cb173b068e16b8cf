package tools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Adam-Huang/reflect/internal/ability"
)

// Decision is the user's verdict on a checked value.
type Decision int

const (
	Approve Decision = iota
	Modify
	Terminate
)

// Interactor asks the user to review text. For Modify the returned string replaces text.
type Interactor interface {
	Check(ctx context.Context, text string) (Decision, string, error)
}

type userCheck struct {
	ui Interactor
}

// Invoke returns the approved or modified input, or nil when the user terminates.
func (u *userCheck) Invoke(ctx context.Context, call ability.Call) (ability.Result, error) {
	text, err := ability.RequireString(call.Params, "input_string")
	if err != nil {
		return ability.Result{}, err
	}
	decision, modified, err := u.ui.Check(ctx, text)
	if err != nil {
		return ability.Result{}, err
	}
	switch decision {
	case Approve:
		return ability.Value(text), nil
	case Modify:
		return ability.Value(modified), nil
	default:
		return ability.Value(nil), nil
	}
}

// LineInteractor prompts on a writer and reads single-line answers from a reader.
type LineInteractor struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewLineInteractor creates an interactor over in and out, typically stdin and stderr.
func NewLineInteractor(in io.Reader, out io.Writer) *LineInteractor {
	return &LineInteractor{in: bufio.NewReader(in), out: out}
}

func (l *LineInteractor) Check(ctx context.Context, text string) (Decision, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.out, "\n%s\n\n", text)
	for {
		if err := ctx.Err(); err != nil {
			return Terminate, "", err
		}
		fmt.Fprint(l.out, "[a]pprove, [m]odify or [t]erminate? ")
		answer, err := l.readLine()
		if err != nil {
			return Terminate, "", err
		}
		switch strings.ToLower(answer) {
		case "a", "approve", "":
			return Approve, text, nil
		case "t", "terminate":
			return Terminate, "", nil
		case "m", "modify":
			fmt.Fprint(l.out, "replacement: ")
			modified, err := l.readLine()
			if err != nil {
				return Terminate, "", err
			}
			return Modify, modified, nil
		}
	}
}

func (l *LineInteractor) readLine() (string, error) {
	line, err := l.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
