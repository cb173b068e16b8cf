package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Adam-Huang/reflect/internal/ability"
	"github.com/Adam-Huang/reflect/internal/model"
)

func block(body string) string {
	return "Here is the plan:\n```json\n" + body + "\n```\nDone."
}

func TestParse(t *testing.T) {
	wf := Parse(block(`[
		{"action_name": "a", "parameters": {"x": 1}},
		{"action_name": "b"}
	]`))
	require.Len(t, wf, 2)
	assert.Equal(t, Step{ActionName: "a", Parameters: map[string]any{"x": float64(1)}, StepID: "STEP1"}, wf[0])
	assert.Equal(t, "STEP2", wf[1].StepID)
	assert.NotNil(t, wf[1].Parameters)
}

func TestParse_SingleObject(t *testing.T) {
	wf := Parse(block(`{"action_name": "llm_call", "parameters": {"content": "hi"}}`))
	require.Len(t, wf, 1)
	assert.Equal(t, "llm_call", wf[0].ActionName)
	assert.Equal(t, "STEP1", wf[0].StepID)
}

func TestParse_MalformedIsEmpty(t *testing.T) {
	for name, text := range map[string]string{
		"no block":    "just chatting",
		"bad json":    block(`[{"action_name": }]`),
		"wrong shape": block(`"a string"`),
		"other fence": "```python\nprint(1)\n```",
	} {
		t.Run(name, func(t *testing.T) {
			wf := Parse(text)
			assert.NotNil(t, wf)
			assert.Empty(t, wf)
		})
	}

	_, err := ParseStrict("nothing")
	assert.ErrorIs(t, err, ErrNoBlock)
}

func TestFormatRoundTrip(t *testing.T) {
	wf := Parse(block(`[{"action_name": "a", "parameters": {"x": "STEP1"}}]`))
	again := Parse(wf.Format())
	assert.Equal(t, wf, again)
}

func echoRegistry() *ability.Registry {
	r := ability.NewRegistry()
	r.RegisterFunc("echo", func(_ context.Context, c ability.Call) (ability.Result, error) {
		return ability.Value(c.Params["x"]), nil
	})
	return r
}

func newEngine(t *testing.T, r *ability.Registry, depth int) *Engine {
	return NewEngine(r, zaptest.NewLogger(t), depth)
}

func TestRun_UnknownActionSkipped(t *testing.T) {
	e := newEngine(t, echoRegistry(), 0)

	out, err := e.RunText(context.Background(), block(`[{"action_name":"noop_unknown","parameters":{}}]`), nil)
	require.NoError(t, err)
	assert.Nil(t, out.Result)
	assert.NotContains(t, out.Environment, "STEP1")
	assert.Contains(t, out.Environment, model.EnvWorkflowKey)
}

func TestRun_StepReferenceSubstituted(t *testing.T) {
	r := echoRegistry()
	var seen []any
	r.RegisterFunc("record", func(_ context.Context, c ability.Call) (ability.Result, error) {
		seen = append(seen, c.Params["x"])
		return ability.Value(c.Params["x"]), nil
	})
	e := newEngine(t, r, 0)

	out, err := e.RunText(context.Background(), block(`[
		{"action_name":"echo","parameters":{"x":"hello"}},
		{"action_name":"record","parameters":{"x":"STEP1"}},
		{"action_name":"record","parameters":{"x":"STEP9"}}
	]`), nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"hello", "STEP9"}, seen)
	assert.Equal(t, "hello", out.Environment["STEP1"])
	assert.Equal(t, "hello", out.Environment["STEP2"])
	assert.Equal(t, "STEP9", out.Result)
}

func TestRun_ErrorBecomesStringResult(t *testing.T) {
	r := echoRegistry()
	r.RegisterFunc("fail", func(context.Context, ability.Call) (ability.Result, error) {
		return ability.Result{}, errors.New("disk full")
	})
	r.RegisterFunc("boom", func(context.Context, ability.Call) (ability.Result, error) {
		panic("bad state")
	})
	e := newEngine(t, r, 0)

	out, err := e.RunText(context.Background(), block(`[
		{"action_name":"fail","parameters":{}},
		{"action_name":"boom","parameters":{}},
		{"action_name":"echo","parameters":{"x":"STEP1"}}
	]`), nil)
	require.NoError(t, err)
	assert.Equal(t, "error: disk full", out.Environment["STEP1"])
	assert.Equal(t, "error: panic: bad state", out.Environment["STEP2"])
	assert.Equal(t, "error: disk full", out.Result)
}

func TestRun_FollowupRunsNestedBeforeNextStep(t *testing.T) {
	r := echoRegistry()
	var order []string
	r.RegisterFunc("log", func(_ context.Context, c ability.Call) (ability.Result, error) {
		s, _ := ability.String(c.Params, "x")
		order = append(order, s)
		return ability.Value(s), nil
	})
	r.RegisterFunc("plan", func(_ context.Context, c ability.Call) (ability.Result, error) {
		order = append(order, "plan")
		return ability.Result{
			Value:    "raw plan",
			Followup: block(`[{"action_name":"log","parameters":{"x":"inner-1"}},{"action_name":"log","parameters":{"x":"inner-2"}}]`),
		}, nil
	})
	e := newEngine(t, r, 0)

	seed := model.Environment{"user": "ada"}
	out, err := e.RunText(context.Background(), block(`[
		{"action_name":"plan","parameters":{}},
		{"action_name":"log","parameters":{"x":"outer"}}
	]`), seed)
	require.NoError(t, err)

	assert.Equal(t, []string{"plan", "inner-1", "inner-2", "outer"}, order)
	assert.Equal(t, "inner-2", out.Environment["STEP1"], "outer entry is the nested final result")
	assert.Equal(t, "outer", out.Environment["STEP2"])
	assert.Equal(t, "ada", out.Environment["user"])
	assert.NotContains(t, seed, "STEP1", "seed is not modified")
}

func TestRun_NestedEnvironmentIsACopy(t *testing.T) {
	r := echoRegistry()
	r.RegisterFunc("nest", func(context.Context, ability.Call) (ability.Result, error) {
		return ability.Result{Followup: block(`[{"action_name":"echo","parameters":{"x":"seen"}},{"action_name":"echo","parameters":{"x":"STEP1"}}]`)}, nil
	})
	e := newEngine(t, r, 0)

	out, err := e.RunText(context.Background(), block(`[
		{"action_name":"echo","parameters":{"x":"parent"}},
		{"action_name":"nest","parameters":{}}
	]`), nil)
	require.NoError(t, err)
	// The nested STEP1 shadows the parent's only inside the nested run.
	assert.Equal(t, "parent", out.Environment["STEP1"])
	assert.Equal(t, "seen", out.Environment["STEP2"])
}

func TestRun_EnvironmentInjectedOnlyWhenRequested(t *testing.T) {
	r := ability.NewRegistry()
	var withEnv, withoutEnv model.Environment
	r.RegisterFunc("ctx", func(_ context.Context, c ability.Call) (ability.Result, error) {
		withEnv = c.Environment
		return ability.Value("ok"), nil
	}, ability.WithEnvironment())
	r.RegisterFunc("plain", func(_ context.Context, c ability.Call) (ability.Result, error) {
		withoutEnv = c.Environment
		return ability.Value("ok"), nil
	})
	e := newEngine(t, r, 0)

	_, err := e.RunText(context.Background(), block(`[{"action_name":"plain"},{"action_name":"ctx"}]`), nil)
	require.NoError(t, err)
	assert.Nil(t, withoutEnv)
	require.NotNil(t, withEnv)
	assert.Equal(t, "ok", withEnv["STEP1"])
	assert.Len(t, withEnv[model.EnvWorkflowKey], 2)
}

func TestRun_DepthGuard(t *testing.T) {
	r := ability.NewRegistry()
	calls := 0
	r.RegisterFunc("again", func(context.Context, ability.Call) (ability.Result, error) {
		calls++
		return ability.Result{Followup: block(`[{"action_name":"again"}]`)}, nil
	})
	e := newEngine(t, r, 3)

	_, err := e.RunText(context.Background(), block(`[{"action_name":"again"}]`), nil)
	assert.ErrorIs(t, err, ErrDepthExceeded)
	assert.Equal(t, 4, calls, "depths 0..3 run, depth 4 is refused")
}

func TestRun_ContextCancelled(t *testing.T) {
	e := newEngine(t, echoRegistry(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.RunText(ctx, block(`[{"action_name":"echo","parameters":{"x":1}}]`), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
