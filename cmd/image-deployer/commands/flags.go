package commands

import (
	"fmt"
	"strings"

	"github.com/savaki/image-deployer/internal/artifacts"
	"github.com/savaki/image-deployer/internal/pipeline"
	"github.com/savaki/image-deployer/internal/stack"
	"github.com/urfave/cli/v2"
)

// DefaultOutDir is where synthesized templates and plans land
const DefaultOutDir = "stacks.out"

// targetFlags select the deployment target account/region
func targetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "account",
			Usage:   "AWS account ID the stacks deploy into",
			Value:   artifacts.DefaultEnvironment.Account,
			EnvVars: []string{"AWS_ACCOUNT_ID"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "AWS region the stacks deploy into",
			Value:   artifacts.DefaultEnvironment.Region,
			EnvVars: []string{"AWS_REGION"},
		},
	}
}

// contextFlags supply invocation-time context values
func contextFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "context",
			Aliases: []string{"c"},
			Usage:   "Context value in key=value form (can be specified multiple times)",
		},
		&cli.StringFlag{
			Name:    "tag",
			Aliases: []string{"t"},
			Usage:   fmt.Sprintf("Destination image tag (shorthand for --context %s=TAG); defaults to %q", pipeline.TagContextKey, pipeline.DefaultTag),
			EnvVars: []string{"IMAGE_TAG"},
		},
	}
}

func outFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "Synthesis output directory",
		Value:   DefaultOutDir,
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "env",
		Aliases: []string{"e"},
		Usage:   "Deployment environment name (dev, stg, prd)",
		Value:   "dev",
		EnvVars: []string{"ENV"},
	}
}

// environmentFromFlags builds the injected deployment target
func environmentFromFlags(c *cli.Context) stack.Environment {
	return stack.Environment{
		Account: c.String("account"),
		Region:  c.String("region"),
	}
}

// contextFromFlags parses --context key=value pairs plus the --tag shorthand
func contextFromFlags(c *cli.Context) (map[string]string, error) {
	values := map[string]string{}
	for _, raw := range c.StringSlice("context") {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid context value %q (expected key=value)", raw)
		}
		values[key] = value
	}

	if tag := c.String("tag"); tag != "" {
		values[pipeline.TagContextKey] = tag
	}
	return values, nil
}

// buildApp constructs the app with all artifact pipelines registered
func buildApp(c *cli.Context) (*stack.App, error) {
	context, err := contextFromFlags(c)
	if err != nil {
		return nil, err
	}
	return artifacts.NewApp(environmentFromFlags(c), context)
}

// selectStacks resolves positional stack name arguments; no arguments selects
// every registered stack.
func selectStacks(c *cli.Context, app *stack.App) ([]*stack.Stack, error) {
	if c.NArg() == 0 {
		return app.Stacks(), nil
	}

	var selected []*stack.Stack
	for _, name := range c.Args().Slice() {
		s, err := app.Stack(name)
		if err != nil {
			return nil, err
		}
		selected = append(selected, s)
	}
	return selected, nil
}
