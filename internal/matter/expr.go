package matter

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultExprCacheSize bounds the number of compiled expressions kept.
const DefaultExprCacheSize = 512

// Bindings is the variable-binding context handed to Satisfies and Apply
// by the rule or action executor. Expressions see it as `vars`.
type Bindings map[string]any

// exprEnv is the environment expressions are compiled against.
type exprEnv struct {
	Vars Bindings `expr:"vars"`
	Self selfView `expr:"self"`
}

// selfView is the read-only projection of the instance under evaluation.
type selfView struct {
	Quantity float64 `expr:"quantity"`
	State    string  `expr:"state"`
	Formula  string  `expr:"formula"`
	Kind     string  `expr:"kind"`
	Type     string  `expr:"type"`
	Children int     `expr:"children"`
}

// evaluator compiles expressions once and runs them per call.
type evaluator struct {
	programs *lru.Cache[string, *vm.Program]
	logger   Logger
}

func newEvaluator(size int, logger Logger) *evaluator {
	if size < 1 {
		size = DefaultExprCacheSize
	}
	cache, err := lru.New[string, *vm.Program](size)
	if err != nil {
		// only reachable with a non-positive size, guarded above
		panic(err)
	}
	return &evaluator{programs: cache, logger: logger}
}

func (e *evaluator) program(expression string, asBool bool) (*vm.Program, error) {
	key := "n:" + expression
	opts := []expr.Option{expr.Env(exprEnv{})}
	if asBool {
		key = "b:" + expression
		opts = append(opts, expr.AsBool())
	}
	if p, ok := e.programs.Get(key); ok {
		return p, nil
	}
	p, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, err
	}
	e.programs.Add(key, p)
	return p, nil
}

// Compile checks that an expression compiles, without running it.
func (e *evaluator) Compile(expression string, asBool bool) error {
	_, err := e.program(expression, asBool)
	return err
}

// number resolves an operand. Expression failures are reported so the
// caller can treat the constraint as unsatisfied.
func (e *evaluator) number(op Operand, self selfView, vars Bindings) (float64, error) {
	if op.Expr == "" {
		return op.Value, nil
	}
	p, err := e.program(op.Expr, false)
	if err != nil {
		return 0, fmt.Errorf("compile %q: %w", op.Expr, err)
	}
	out, err := expr.Run(p, exprEnv{Vars: vars, Self: self})
	if err != nil {
		return 0, fmt.Errorf("run %q: %w", op.Expr, err)
	}
	f, ok := toFloat64(out)
	if !ok {
		return 0, fmt.Errorf("expression %q returned %T, want a number", op.Expr, out)
	}
	return f, nil
}

func (e *evaluator) predicate(expression string, self selfView, vars Bindings) bool {
	p, err := e.program(expression, true)
	if err != nil {
		e.logger.Warnf("condition expression does not compile: expr=%q error=%v", expression, err)
		return false
	}
	out, err := expr.Run(p, exprEnv{Vars: vars, Self: self})
	if err != nil {
		e.logger.Debugf("condition expression failed: expr=%q error=%v", expression, err)
		return false
	}
	b, _ := out.(bool)
	return b
}

// toFloat64 attempts to convert a value to float64
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	default:
		return 0, false
	}
}
