package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"okapi/pkg/models"
)

// Evaluator compiles and runs audience filter expressions against
// marketplace entities. A filter sees the entity's id, kind, city,
// creation time and free-form attributes.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("city", cel.StringType),
		cel.Variable("created_at", cel.TimestampType),
		cel.Variable("attributes", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateFilterExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// CompileFilter compiles a filter once so it can be evaluated against
// many entities within a single rule run.
func (e *Evaluator) CompileFilter(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

func (e *Evaluator) EvaluateFilter(ctx context.Context, expression string, entity models.Entity) (bool, error) {
	program, err := e.CompileFilter(expression)
	if err != nil {
		return false, err
	}

	return e.EvaluateCompiled(ctx, program, entity)
}

func (e *Evaluator) EvaluateCompiled(ctx context.Context, program cel.Program, entity models.Entity) (bool, error) {
	attrs := entity.Attributes
	if attrs == nil {
		attrs = map[string]interface{}{}
	}

	vars := map[string]interface{}{
		"id":         entity.ID,
		"kind":       entity.Kind,
		"city":       entity.City,
		"created_at": entity.CreatedAt,
		"attributes": attrs,
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
