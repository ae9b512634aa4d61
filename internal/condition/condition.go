// Package condition evaluates a route's execution conditions against a
// scope, deciding whether the route runs for a given (environment, user)
// cell. Equality, containment, existence, and regex operators are compiled
// to CEL programs and cached; ordering operators are evaluated directly in
// Go since CEL's dynamic typing makes numeric-vs-lexicographic fallback
// awkward to express declaratively.
package condition

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/l0p7/httpdiff/internal/config"
	"github.com/l0p7/httpdiff/internal/scope"
)

// Outcome reports whether a route's conditions were satisfied, and if not,
// why — one reason per failed condition, so a run report can explain a skip
// without the caller re-deriving it.
type Outcome struct {
	Satisfied bool
	Reasons   []string
}

// Evaluator compiles and caches CEL programs for equality-shaped operators.
// A single Evaluator is safe to share across concurrent route evaluations.
type Evaluator struct {
	env *cel.Env

	mu    sync.Mutex
	cache map[string]cel.Program
}

// New builds an Evaluator with the CEL variables execution conditions are
// allowed to reference: a single `value` binding for the resolved scope
// variable, and `target` for the condition's configured comparison value.
func New() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.StringType),
		cel.Variable("target", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("condition: build cel environment: %w", err)
	}
	return &Evaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// Evaluate ANDs every condition on route against sc. Every condition is
// checked regardless of earlier failures, so Outcome.Reasons reports all of
// them when more than one fails.
func (e *Evaluator) Evaluate(route config.Route, sc *scope.Scope) (Outcome, error) {
	out := Outcome{Satisfied: true}
	for _, cond := range route.Conditions {
		value, found := sc.Lookup(cond.Variable)
		ok, err := e.evalOne(cond, value, found)
		if err != nil {
			return Outcome{}, fmt.Errorf("condition: route %s: %w", route.Name, err)
		}
		if !ok {
			out.Satisfied = false
			out.Reasons = append(out.Reasons, fmt.Sprintf("%s %s %q failed (actual: %q, present: %v)", cond.Variable, cond.Operator, cond.Value, value, found))
		}
	}
	return out, nil
}

func (e *Evaluator) evalOne(cond config.ExecutionCondition, value string, found bool) (bool, error) {
	switch cond.Operator {
	case config.OpExists:
		return found, nil
	case config.OpNotExists:
		return !found, nil
	case config.OpGreaterThan:
		return compareOrdered(value, cond.Value, func(a, b float64) bool { return a > b }, func(a, b string) bool { return a > b }), nil
	case config.OpLessThan:
		return compareOrdered(value, cond.Value, func(a, b float64) bool { return a < b }, func(a, b string) bool { return a < b }), nil
	case config.OpEquals:
		return e.evalCEL("value == target", value, cond.Value)
	case config.OpNotEquals:
		return e.evalCEL("value != target", value, cond.Value)
	case config.OpContains:
		return e.evalCEL("value.contains(target)", value, cond.Value)
	case config.OpNotContains:
		return e.evalCEL("!value.contains(target)", value, cond.Value)
	case config.OpMatches:
		return e.evalCEL("value.matches(target)", value, cond.Value)
	default:
		return false, fmt.Errorf("unsupported operator %q", cond.Operator)
	}
}

func (e *Evaluator) evalCEL(expr, value, target string) (bool, error) {
	program, err := e.programFor(expr)
	if err != nil {
		return false, err
	}
	result, _, err := program.Eval(map[string]any{"value": value, "target": target})
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", expr, err)
	}
	b, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not yield a bool", expr)
	}
	return b, nil
}

func (e *Evaluator) programFor(expr string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.cache[expr]; ok {
		return p, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	e.cache[expr] = program
	return program, nil
}

// compareOrdered compares a and b numerically when both parse as float64,
// falling back to lexicographic string comparison otherwise.
func compareOrdered(a, b string, numeric func(a, b float64) bool, lexical func(a, b string) bool) bool {
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		return numeric(af, bf)
	}
	return lexical(a, b)
}
