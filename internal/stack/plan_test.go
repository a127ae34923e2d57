package stack

import (
	"testing"

	apperrors "github.com/savaki/image-deployer/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestPlanSteps(t *testing.T) {
	plan := newTestStack(t).Plan()

	assert.Equal(t, "agent-b-mcps", plan.Stack)
	assert.Equal(t, "123456789012", plan.Account)
	assert.Equal(t, "us-east-1", plan.Region)
	assert.Equal(t, "agent-b-mcps.template.json", plan.Template)

	promotion, ok := plan.Step("Promotion")
	assert.True(t, ok)
	assert.Equal(t, StepKindPromote, promotion.Kind)
	assert.Equal(t, "agent-b-mcps", promotion.Repository)
	assert.Equal(t, "latest", promotion.Tag)
	assert.Equal(t, "Image", promotion.Source)
	assert.Contains(t, promotion.DependsOn, "Repository")
	assert.Contains(t, promotion.DependsOn, "Image")

	outputs, ok := plan.Step("Outputs")
	assert.True(t, ok)
	assert.Equal(t, StepKindOutput, outputs.Kind)
	assert.Equal(t, []string{"Promotion"}, outputs.DependsOn)
}

func TestPlanOrderedPromotionAfterRegistry(t *testing.T) {
	plan := newTestStack(t).Plan()

	ordered, err := plan.Ordered()
	assert.NoError(t, err)

	position := map[string]int{}
	for i, step := range ordered {
		position[step.Name] = i
	}

	assert.Less(t, position["Repository"], position["Promotion"],
		"promotion must never run before its target registry")
	assert.Less(t, position["Image"], position["Promotion"])
	assert.Less(t, position["Promotion"], position["Outputs"])
}

func TestPlanOrderedIsDeterministic(t *testing.T) {
	plan := newTestStack(t).Plan()

	first, err := plan.Ordered()
	assert.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := plan.Ordered()
		assert.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPlanOrderedUnknownDependency(t *testing.T) {
	plan := Plan{
		Stack: "test",
		Steps: []Step{
			{Name: "a", Kind: StepKindRegistry},
			{Name: "b", Kind: StepKindPromote, DependsOn: []string{"missing"}},
		},
	}

	_, err := plan.Ordered()
	assert.ErrorIs(t, err, apperrors.ErrUnknownDependency)
}

func TestPlanOrderedCycle(t *testing.T) {
	plan := Plan{
		Stack: "test",
		Steps: []Step{
			{Name: "a", Kind: StepKindRegistry, DependsOn: []string{"b"}},
			{Name: "b", Kind: StepKindPromote, DependsOn: []string{"a"}},
		},
	}

	_, err := plan.Ordered()
	assert.ErrorIs(t, err, apperrors.ErrPlanCycle)
}
