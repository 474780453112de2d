// Package rules provides the fraud rule registry and the CEL-Go based
// predicate engine.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Engine compiles and evaluates rule predicate expressions.
// Programs are cached per expression so re-reading the registry on every
// scoring run stays cheap; an updated expression compiles fresh.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	programs map[string]cel.Program
}

// NewEngine creates a new predicate engine.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable(FeatureOddHourCount, cel.IntType),
		cel.Variable(FeatureDistinctDevices, cel.IntType),
		cel.Variable(FeatureDistinctIPs, cel.IntType),
		cel.Variable(FeatureFailedCheckIns, cel.IntType),
		cel.Variable(FeatureMissingGeoCount, cel.IntType),
		cel.Variable(FeatureTxCount, cel.IntType),
		cel.Variable(FeatureCheckInCount, cel.IntType),
		cel.Variable(FeatureLocationCount, cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// ValidateExpression compiles an expression without caching it.
// Used by the admin update path to reject broken predicates up front.
func (e *Engine) ValidateExpression(expr string) error {
	_, err := e.compile(expr)
	return err
}

// Matches evaluates an expression against the given features and returns
// the match count. Boolean results map to 0/1; negative results clamp to
// zero so a rule can never subtract from the score.
func (e *Engine) Matches(expr string, features map[string]any) (int, error) {
	prog, err := e.program(expr)
	if err != nil {
		return 0, err
	}

	out, _, err := prog.Eval(features)
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate expression %q: %w", expr, err)
	}

	n := toCount(out)
	if n < 0 {
		n = 0
	}
	return n, nil
}

func (e *Engine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prog, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	prog, err := e.compile(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[expr] = prog
	e.mu.Unlock()

	return prog, nil
}

func (e *Engine) compile(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expr, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.IntType {
		return nil, fmt.Errorf("expression %q must return bool or int, got %s", expr, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for expression %q: %w", expr, err)
	}

	return program, nil
}

// toCount converts a CEL value to a match count.
func toCount(val ref.Val) int {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1
		}
		return 0
	case types.Int:
		return int(v)
	default:
		return 0
	}
}
