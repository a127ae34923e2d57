package pipeline

import (
	"fmt"
	"testing"

	apperrors "github.com/savaki/image-deployer/internal/errors"
	"github.com/savaki/image-deployer/internal/stack"
	"github.com/stretchr/testify/assert"
)

var testEnv = stack.Environment{Account: "123456789012", Region: "us-east-1"}

func testSpec() Spec {
	return Spec{
		Name:           "agent-b-mcps",
		RepositoryName: "agent-b-mcps",
		Directory:      ".",
		File:           "agent-b/Dockerfile",
		Exclude:        []string{".git", ".gitignore", "stacks.out", "target", "node_modules", "*.md"},
	}
}

func TestPipelineDefaultTag(t *testing.T) {
	app := stack.NewApp(testEnv)

	p, err := New(app, testSpec())
	assert.NoError(t, err)
	assert.Equal(t, "latest", p.Tag)
	assert.Equal(t, "latest", p.Promotion.Tag())

	outputs := p.Stack.Outputs()
	assert.Len(t, outputs, 1)
	assert.Equal(t, "ImageUri", outputs[0].Name)
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com/agent-b-mcps:latest", outputs[0].Value)
}

func TestPipelineContextTag(t *testing.T) {
	app := stack.NewApp(testEnv, stack.WithContext(map[string]string{TagContextKey: "v1.2.3"}))

	p, err := New(app, testSpec())
	assert.NoError(t, err)
	assert.Equal(t, "v1.2.3", p.Tag)

	// output must use the exact tag the promotion uses
	outputs := p.Stack.Outputs()
	assert.Equal(t, fmt.Sprintf("%s:%s", p.Repository.URI(), p.Promotion.Tag()), outputs[0].Value)
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com/agent-b-mcps:v1.2.3", outputs[0].Value)
}

func TestPipelinePromotionDependsOnRepository(t *testing.T) {
	app := stack.NewApp(testEnv)

	p, err := New(app, testSpec())
	assert.NoError(t, err)

	plan := p.Stack.Plan()
	promotion, ok := plan.Step("Promotion")
	assert.True(t, ok)
	assert.Contains(t, promotion.DependsOn, "Repository",
		"promotion must carry an explicit edge to the registry")

	ordered, err := plan.Ordered()
	assert.NoError(t, err)

	position := map[string]int{}
	for i, step := range ordered {
		position[step.Name] = i
	}
	assert.Less(t, position["Repository"], position["Promotion"])
}

func TestPipelineExclusionsSurviveIntoPlan(t *testing.T) {
	app := stack.NewApp(testEnv)

	p, err := New(app, testSpec())
	assert.NoError(t, err)

	build, ok := p.Stack.Plan().Step("Image")
	assert.True(t, ok)
	assert.Contains(t, build.Exclude, ".git")
	assert.Contains(t, build.Exclude, "stacks.out")
	assert.Contains(t, build.Exclude, "target")
	assert.Contains(t, build.Exclude, "node_modules")
}

func TestPipelineRejectsUppercaseRepository(t *testing.T) {
	app := stack.NewApp(testEnv)

	spec := testSpec()
	spec.RepositoryName = "AgentB"
	_, err := New(app, spec)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRepositoryName)
}

func TestPipelineCustomOutputName(t *testing.T) {
	app := stack.NewApp(testEnv)

	spec := testSpec()
	spec.OutputName = "ServerImageUri"
	p, err := New(app, spec)
	assert.NoError(t, err)

	outputs := p.Stack.Outputs()
	assert.Equal(t, "ServerImageUri", outputs[0].Name)
}
