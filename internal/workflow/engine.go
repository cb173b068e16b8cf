package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Adam-Huang/reflect/internal/ability"
	"github.com/Adam-Huang/reflect/internal/model"
)

// DefaultMaxDepth bounds followup nesting when no limit is configured.
const DefaultMaxDepth = 8

// ErrDepthExceeded is returned when followups nest deeper than the engine allows.
var ErrDepthExceeded = errors.New("workflow nesting depth exceeded")

// Outcome is the result of one workflow run.
type Outcome struct {
	// Result is the last executed step's result, nil when no step ran.
	Result      any               `json:"result" yaml:"result"`
	Environment model.Environment `json:"environment" yaml:"environment"`
}

// Engine executes workflows sequentially against a registry.
type Engine struct {
	registry *ability.Registry
	log      *zap.Logger
	maxDepth int
}

// NewEngine creates an engine. maxDepth <= 0 uses DefaultMaxDepth.
func NewEngine(registry *ability.Registry, logger *zap.Logger, maxDepth int) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Engine{registry: registry, log: logger, maxDepth: maxDepth}
}

// RunText parses text and runs the workflow it holds. Text without a usable block runs zero steps.
func (e *Engine) RunText(ctx context.Context, text string, seed model.Environment) (Outcome, error) {
	wf, err := ParseStrict(text)
	if err != nil {
		e.log.Info("no workflow parsed", zap.Error(err))
	}
	return e.Run(ctx, wf, seed)
}

// Run executes wf with an environment seeded from seed. seed is not modified.
//
// Unknown actions are skipped and leave no environment entry. Ability errors become
// "error: <msg>" results. Only context cancellation and ErrDepthExceeded are returned.
func (e *Engine) Run(ctx context.Context, wf Workflow, seed model.Environment) (Outcome, error) {
	env := seed.Clone()
	result, err := e.run(ctx, wf, env, 0)
	return Outcome{Result: result, Environment: env}, err
}

func (e *Engine) run(ctx context.Context, wf Workflow, env model.Environment, depth int) (any, error) {
	if depth > e.maxDepth {
		return nil, fmt.Errorf("depth %d > %d: %w", depth, e.maxDepth, ErrDepthExceeded)
	}
	env[model.EnvWorkflowKey] = wf

	log := e.log.With(zap.Int("depth", depth))
	log.Debug("workflow started", zap.Int("steps", len(wf)))

	var last any
	for _, step := range wf {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		a, wantsEnv, ok := e.registry.Lookup(step.ActionName)
		if !ok {
			log.Warn("unknown action, skipping", zap.String("step", step.StepID), zap.String("action", step.ActionName))
			continue
		}

		call := ability.Call{Params: resolve(step.Parameters, env)}
		if wantsEnv {
			call.Environment = env.Clone()
		}

		var result any
		res, err := invoke(ctx, a, call)
		if err != nil {
			log.Warn("action failed", zap.String("step", step.StepID), zap.String("action", step.ActionName), zap.Error(err))
			result = "error: " + err.Error()
		} else {
			result = res.Value
		}

		if err == nil && res.Followup != "" {
			nested, perr := ParseStrict(res.Followup)
			if perr != nil {
				log.Info("followup holds no workflow", zap.String("step", step.StepID), zap.Error(perr))
			}
			result, err = e.run(ctx, nested, env.Clone(), depth+1)
			if err != nil {
				return nil, err
			}
		}

		env[step.StepID] = result
		last = result
		log.Debug("step finished", zap.String("step", step.StepID), zap.String("action", step.ActionName))
	}
	return last, nil
}

// resolve substitutes string parameters that name an environment key with that key's value.
func resolve(params map[string]any, env model.Environment) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			if r, found := env[s]; found {
				out[k] = r
				continue
			}
		}
		out[k] = v
	}
	return out
}

// invoke reports a panicking ability as an error.
func invoke(ctx context.Context, a ability.Ability, call ability.Call) (res ability.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Invoke(ctx, call)
}
