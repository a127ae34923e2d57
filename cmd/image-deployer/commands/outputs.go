package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/image-deployer/internal/di"
	"github.com/savaki/image-deployer/internal/services"
	"github.com/urfave/cli/v2"
)

// OutputsCommand returns the outputs command
func OutputsCommand(logger *zerolog.Logger) *cli.Command {
	flags := targetFlags()
	flags = append(flags, contextFlags()...)
	flags = append(flags, envFlag(),
		&cli.BoolFlag{
			Name:  "cloudformation",
			Usage: "Read output values from the deployed stacks instead of the output store",
		},
	)

	return &cli.Command{
		Name:      "outputs",
		Usage:     "Show deployed stack output values",
		ArgsUsage: "[stack ...]",
		Description: `Read the output values published by previous deployments. By default
values come from the SSM output store; --cloudformation reads them from
the deployed stacks instead.`,
		Flags: flags,
		Action: func(c *cli.Context) error {
			return outputsAction(c, logger)
		},
	}
}

func outputsAction(c *cli.Context, logger *zerolog.Logger) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}

	stacks, err := selectStacks(c, app)
	if err != nil {
		return err
	}

	env := c.String("env")
	container, err := di.New(env, di.WithEnvironment(app.Env()))
	if err != nil {
		return err
	}

	return container.Invoke(func(cfn *services.CloudFormationService, store services.OutputStore) error {
		for _, s := range stacks {
			if c.Bool("cloudformation") {
				// deployed stacks are named {env}-{stack}
				values, err := cfn.StackOutputs(c.Context, fmt.Sprintf("%s-%s", env, s.Name()))
				if err != nil {
					return err
				}
				for name, value := range values {
					logger.Info().Msgf("%s.%s = %s", s.Name(), name, value)
				}
				continue
			}

			for _, output := range s.Outputs() {
				value, err := store.GetOutput(c.Context, s.Name(), output.Name)
				if err != nil {
					logger.Warn().Err(err).Msgf("%s.%s not published", s.Name(), output.Name)
					continue
				}
				logger.Info().Msgf("%s.%s = %s", s.Name(), output.Name, value)
			}
		}
		return nil
	})
}
