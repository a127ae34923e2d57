// Package policy validates synthesized templates before deployment. The rego
// policy enforces the structural guarantees every registry stack must carry:
// retain-on-delete, mutable tags, and lowercase repository names.
package policy

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed ecr.rego
var policyContent string

type Validator struct {
	prepared rego.PreparedEvalQuery
}

type ValidationResult struct {
	Allowed    bool     `json:"allowed"`
	Violations []string `json:"violations,omitempty"`
}

func NewValidator() (*Validator, error) {
	query, err := rego.New(
		rego.Query("data.ecr.violations"),
		rego.Module("ecr.rego", policyContent),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy query: %w", err)
	}

	return &Validator{
		prepared: query,
	}, nil
}

// ValidateTemplate evaluates the policy against a template's object form
func (v *Validator) ValidateTemplate(ctx context.Context, template map[string]any) (*ValidationResult, error) {
	input := map[string]any{
		"Resources": template["Resources"],
	}

	results, err := v.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 {
		return &ValidationResult{
			Allowed:    false,
			Violations: []string{"policy evaluation returned no results"},
		}, nil
	}

	violations, err := toViolations(results[0].Expressions[0].Value)
	if err != nil {
		return nil, err
	}

	return &ValidationResult{
		Allowed:    len(violations) == 0,
		Violations: violations,
	}, nil
}

func toViolations(value any) ([]string, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected policy result type %T", value)
	}

	var violations []string
	for _, item := range items {
		msg, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected policy violation type %T", item)
		}
		violations = append(violations, msg)
	}

	sort.Strings(violations)
	return violations, nil
}
