package main

import (
	"context"
	"os"

	"github.com/savaki/image-deployer/cmd/image-deployer/commands"
	"github.com/savaki/image-deployer/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "image-deployer",
		Usage: "Container image stack deployment toolkit",
		Description: `Declares one image promotion stack per deployable artifact and deploys them
against a fixed AWS account and region.

Each stack provisions a durable ECR repository (retained on teardown), builds
a container image from local source, promotes it into the repository under a
caller-supplied or default tag, and publishes the tagged image URI as a stack
output.`,
		Commands: []*cli.Command{
			commands.SynthCommand(&logger),
			commands.DeployCommand(&logger),
			commands.ValidateCommand(&logger),
			commands.StacksCommand(&logger),
			commands.OutputsCommand(&logger),
			commands.HistoryCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
