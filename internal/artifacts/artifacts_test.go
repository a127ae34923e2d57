package artifacts

import (
	"strings"
	"testing"

	"github.com/savaki/image-deployer/internal/stack"
	"github.com/stretchr/testify/assert"
)

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	assert.Len(t, defs, 4)

	names := map[string]bool{}
	for _, def := range defs {
		names[def.Name] = true

		assert.Equal(t, def.RepositoryName, strings.ToLower(def.RepositoryName),
			"ECR requires lowercase repository names")
		assert.NotEmpty(t, def.Directory)
		assert.NotEmpty(t, def.File)
	}

	assert.True(t, names["agent-b-mcps"])
	assert.True(t, names["agent-a-mcps"])
	assert.True(t, names["agent-a-mcpc"])
	assert.True(t, names["ai-agent-web"])
}

// Guard against accidentally narrowing the exclusion set: build output and
// version-control metadata must never leak into any build context.
func TestDefinitionsExclusions(t *testing.T) {
	required := []string{".git", ".gitignore", "stacks.out", "target", "node_modules"}

	for _, def := range Definitions() {
		for _, pattern := range required {
			assert.Contains(t, def.Exclude, pattern,
				"%s must exclude %s from its build context", def.Name, pattern)
		}
	}
}

func TestNewAppRegistersAllStacks(t *testing.T) {
	app, err := NewApp(DefaultEnvironment, nil)
	assert.NoError(t, err)
	assert.Len(t, app.Stacks(), 4)

	for _, s := range app.Stacks() {
		outputs := s.Outputs()
		assert.Len(t, outputs, 1)
		assert.True(t, strings.HasSuffix(outputs[0].Value, ":latest"))
	}
}

func TestNewAppWithTag(t *testing.T) {
	app, err := NewApp(stack.Environment{Account: "123456789012", Region: "us-east-1"},
		map[string]string{"image_tag": "v1.2.3"})
	assert.NoError(t, err)

	for _, s := range app.Stacks() {
		outputs := s.Outputs()
		assert.True(t, strings.HasSuffix(outputs[0].Value, ":v1.2.3"),
			"%s output %q must carry the supplied tag", s.Name(), outputs[0].Value)
	}
}
