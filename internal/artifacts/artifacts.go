// Package artifacts defines the deployable artifacts of this repository.
package artifacts

import (
	"github.com/savaki/image-deployer/internal/pipeline"
	"github.com/savaki/image-deployer/internal/stack"
)

// DefaultEnvironment is the fixed account/region pair the stacks deploy into.
// Override with --account/--region when targeting a different account.
var DefaultEnvironment = stack.Environment{
	Account: "123456789012",
	Region:  "us-east-1",
}

// baseExclude keeps non-essential and sensitive paths out of every build
// context: version-control metadata, synthesis output, cargo build output,
// local dependency caches, and documentation.
var baseExclude = []string{
	".git",
	".gitignore",
	"stacks.out",
	"target",
	"node_modules",
	"*.md",
}

// Definitions returns the four artifact pipelines, one per deployable unit.
// Repository names are lowercase literals, as ECR requires.
func Definitions() []pipeline.Spec {
	return []pipeline.Spec{
		{
			Name:           "agent-b-mcps",
			RepositoryName: "agent-b-mcps",
			Directory:      ".",
			File:           "agent-b/Dockerfile",
			Exclude:        baseExclude,
		},
		{
			Name:           "agent-a-mcps",
			RepositoryName: "agent-a-mcps",
			Directory:      ".",
			File:           "agent-a/mcp-server/Dockerfile",
			Exclude:        baseExclude,
		},
		{
			Name:           "agent-a-mcpc",
			RepositoryName: "agent-a-mcpc",
			Directory:      ".",
			File:           "agent-a/mcp-client/Dockerfile",
			Exclude:        baseExclude,
		},
		{
			Name:           "ai-agent-web",
			RepositoryName: "ai-agent-web",
			Directory:      ".",
			File:           "web/Dockerfile",
			Exclude:        baseExclude,
		},
	}
}

// NewApp constructs the app with all artifact pipelines registered
func NewApp(env stack.Environment, context map[string]string) (*stack.App, error) {
	app := stack.NewApp(env, stack.WithContext(context))
	for _, spec := range Definitions() {
		if _, err := pipeline.New(app, spec); err != nil {
			return nil, err
		}
	}
	return app, nil
}
