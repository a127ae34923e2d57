package commands

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/image-deployer/internal/dao/deploydao"
	"github.com/savaki/image-deployer/internal/di"
	"github.com/urfave/cli/v2"
)

// HistoryCommand returns the history command
func HistoryCommand(logger *zerolog.Logger) *cli.Command {
	flags := targetFlags()
	flags = append(flags, envFlag(),
		&cli.StringFlag{
			Name:    "stack",
			Aliases: []string{"s"},
			Usage:   "Limit history to one stack",
		},
	)

	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded deployments",
		Description: `Show deployment history from DynamoDB. Without --stack, shows the latest
deployment of each stack in the environment.`,
		Flags: flags,
		Action: func(c *cli.Context) error {
			return historyAction(c, logger)
		},
	}
}

func historyAction(c *cli.Context, logger *zerolog.Logger) error {
	container, err := di.New(c.String("env"),
		di.WithEnvironment(environmentFromFlags(c)),
	)
	if err != nil {
		return err
	}

	return container.Invoke(func(dao *deploydao.DAO) error {
		var records []deploydao.Record
		var err error

		if stackName := c.String("stack"); stackName != "" {
			records, err = dao.QueryByStackEnv(c.Context, stackName, c.String("env"))
		} else {
			records, err = dao.QueryLatest(c.Context, c.String("env"))
		}
		if err != nil {
			return err
		}

		if len(records) == 0 {
			logger.Info().Msg("no deployments recorded")
			return nil
		}

		for _, record := range records {
			logger.Info().
				Str("stack", record.Stack).
				Str("status", string(record.Status)).
				Str("image_uri", record.ImageURI).
				Str("created", time.Unix(record.CreatedAt, 0).Format(time.RFC3339)).
				Msg(record.GetID().String())
		}
		return nil
	})
}
