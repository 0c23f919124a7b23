package interpreter

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEvaluator evaluates condition-node expressions against a run
// environment. Programs are compiled once and cached for reuse across
// executions of the same agent.
type ExprEvaluator struct {
	compiled map[string]*vm.Program
	mu       sync.RWMutex

	// MaxExpressionLength limits expression size for security (default: 4096)
	MaxExpressionLength int
}

// NewExprEvaluator creates a new expression evaluator.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{
		compiled:            make(map[string]*vm.Program),
		MaxExpressionLength: 4096,
	}
}

// Evaluate evaluates an expression against an environment. The environment
// carries run-level state such as the rows from the most recent data fetch,
// see buildStepEnv.
func (e *ExprEvaluator) Evaluate(expression string, env map[string]interface{}) (interface{}, error) {
	if len(expression) > e.MaxExpressionLength {
		return nil, fmt.Errorf("expression exceeds maximum length of %d characters", e.MaxExpressionLength)
	}

	e.mu.RLock()
	prog, ok := e.compiled[expression]
	e.mu.RUnlock()

	if !ok {
		var err error
		prog, err = expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("compile expression %q: %w", expression, err)
		}

		e.mu.Lock()
		e.compiled[expression] = prog
		e.mu.Unlock()
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression %q: %w", expression, err)
	}

	return result, nil
}

// EvaluateBool evaluates an expression and coerces the result to a boolean.
func (e *ExprEvaluator) EvaluateBool(expression string, env map[string]interface{}) (bool, error) {
	result, err := e.Evaluate(expression, env)
	if err != nil {
		return false, err
	}

	switch v := result.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		return v != "", nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expression %q returned %T, expected bool", expression, result)
	}
}
