package commands

import (
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// SynthCommand returns the synth command
func SynthCommand(logger *zerolog.Logger) *cli.Command {
	flags := targetFlags()
	flags = append(flags, contextFlags()...)
	flags = append(flags, outFlag())

	return &cli.Command{
		Name:  "synth",
		Usage: "Synthesize stack templates and deployment plans",
		Description: `Synthesize every registered stack into CloudFormation templates and
deployment plans without touching AWS.

Each stack produces:
  <stack>.template.json  - the ECR repository and stack outputs
  <stack>.plan.json      - ordered deployment steps with explicit dependency edges

Examples:
  # Synthesize with the default tag (latest)
  image-deployer synth

  # Synthesize for a release tag
  image-deployer synth --tag v1.2.3`,
		Flags: flags,
		Action: func(c *cli.Context) error {
			return synthAction(c, logger)
		},
	}
}

func synthAction(c *cli.Context, logger *zerolog.Logger) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}

	assembly, err := app.Synth(c.String("out"))
	if err != nil {
		return err
	}

	logger.Info().
		Str("dir", assembly.Dir).
		Int("stacks", len(assembly.Manifest.Stacks)).
		Msg("synthesis complete")
	for name := range assembly.Manifest.Stacks {
		logger.Info().Msgf("  - %s", name)
	}
	return nil
}
