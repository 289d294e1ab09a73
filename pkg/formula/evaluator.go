// Package formula evaluates restricted expressions for the formula
// operation kind. Expressions see the current record as a map variable and
// nothing else: no host functions, no I/O, no ambient state.
package formula

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"bulkops/pkg/models"
)

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create formula environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// Validate compiles the expression without running it. Used by the
// validation engine to reject bad formulas before any mutation begins.
func (e *Evaluator) Validate(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("formula validation failed: %w", issues.Err())
	}
	return nil
}

// Compile returns a reusable program for the expression.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile formula: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create formula program: %w", err)
	}

	return program, nil
}

// Evaluate runs the expression against one record and returns the raw
// result value.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, record models.Record) (interface{}, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}

	return e.Run(ctx, program, record)
}

// Run executes a previously compiled program against one record. Batch
// callers compile once and call Run per record.
func (e *Evaluator) Run(ctx context.Context, program cel.Program, record models.Record) (interface{}, error) {
	vars := map[string]interface{}{
		"record": map[string]interface{}(record),
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate formula: %w", err)
	}

	return result.Value(), nil
}
