package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Adam-Huang/reflect/internal/ability"
	"github.com/Adam-Huang/reflect/internal/workflow"
)

const defaultReadSize = 1024

// maxReadSize caps one read_file call.
const maxReadSize = 1 << 20

type shell struct {
	log *zap.Logger
}

// Invoke runs command through sh and reports stdout and stderr. A failing command
// is not an ability error: its stderr is the result.
func (s *shell) Invoke(ctx context.Context, call ability.Call) (ability.Result, error) {
	command, _ := ability.String(call.Params, "command")
	if strings.TrimSpace(command) == "" {
		return ability.Value(map[string]any{"output": "", "error": "Invalid command: Command string is empty or whitespace"}), nil
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return ability.Value(map[string]any{"output": "", "error": "Exception occurred: " + err.Error()}), nil
		}
		s.log.Debug("command failed", zap.String("command", command), zap.Int("exit", exitErr.ExitCode()))
	}
	return ability.Value(map[string]any{"output": stdout.String(), "error": stderr.String()}), nil
}

// listDirectory lists path recursively. Directories above max_depth become
// {"directory", "contents"} entries, everything else is its name.
func listDirectory(_ context.Context, call ability.Call) (ability.Result, error) {
	path, ok := ability.String(call.Params, "path")
	if !ok || path == "" {
		path = "."
	}
	maxDepth, err := ability.Int(call.Params, "max_depth", 1)
	if err != nil {
		return ability.Result{}, err
	}
	entries, err := walk(path, 0, maxDepth)
	if err != nil {
		return ability.Result{}, err
	}
	return ability.Value(entries), nil
}

func walk(path string, depth, maxDepth int) ([]any, error) {
	dir, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	out := make([]any, 0, len(dir))
	for _, e := range dir {
		if !e.IsDir() || depth >= maxDepth {
			out = append(out, e.Name())
			continue
		}
		contents, err := walk(filepath.Join(path, e.Name()), depth+1, maxDepth)
		if err != nil {
			contents = []any{}
		}
		out = append(out, map[string]any{"directory": e.Name(), "contents": contents})
	}
	return out, nil
}

func readFile(_ context.Context, call ability.Call) (ability.Result, error) {
	path, err := ability.RequireString(call.Params, "file_path")
	if err != nil {
		return ability.Result{}, err
	}
	start, err := ability.Int(call.Params, "start", 0)
	if err != nil {
		return ability.Result{}, err
	}
	size, err := ability.Int(call.Params, "read_size", defaultReadSize)
	if err != nil {
		return ability.Result{}, err
	}
	if start < 0 || size < 0 {
		return ability.Result{}, fmt.Errorf("read %s: negative offset or size", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return ability.Result{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ability.Result{}, err
	}
	size = min(size, maxReadSize, int(max(info.Size()-int64(start), 0)))

	buf := make([]byte, size)
	n, err := f.ReadAt(buf, int64(start))
	if err != nil && n == 0 && !errors.Is(err, io.EOF) {
		return ability.Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ability.Value(string(buf[:n])), nil
}

func writeFile(_ context.Context, call ability.Call) (ability.Result, error) {
	path, err := ability.RequireString(call.Params, "path")
	if err != nil {
		return ability.Result{}, err
	}
	content, _ := ability.String(call.Params, "content")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ability.Result{}, err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return ability.Result{}, err
	}
	return ability.Value(nil), nil
}

// jsonExact parses the first json block in text. Anything unusable yields an empty object.
func jsonExact(_ context.Context, call ability.Call) (ability.Result, error) {
	text, _ := ability.String(call.Params, "text")
	body, ok := workflow.ExtractJSON(text)
	if !ok {
		return ability.Value(map[string]any{}), nil
	}
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return ability.Value(map[string]any{}), nil
	}
	return ability.Value(v), nil
}
