package commands

import (
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// StacksCommand returns the stacks command
func StacksCommand(logger *zerolog.Logger) *cli.Command {
	flags := targetFlags()
	flags = append(flags, contextFlags()...)

	return &cli.Command{
		Name:  "stacks",
		Usage: "List the registered stacks",
		Flags: flags,
		Action: func(c *cli.Context) error {
			return stacksAction(c, logger)
		},
	}
}

func stacksAction(c *cli.Context, logger *zerolog.Logger) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}

	for _, s := range app.Stacks() {
		logger.Info().Msgf("%s:", s.Name())
		for _, repo := range s.Repositories() {
			logger.Info().Msgf("  repository: %s", repo.URI())
		}
		for _, output := range s.Outputs() {
			logger.Info().Msgf("  %s: %s", output.Name, output.Value)
		}
	}
	return nil
}
