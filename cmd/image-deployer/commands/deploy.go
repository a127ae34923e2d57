package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/image-deployer/internal/dao/deploydao"
	"github.com/savaki/image-deployer/internal/di"
	"github.com/savaki/image-deployer/internal/engine"
	"github.com/savaki/image-deployer/internal/pipeline"
	"github.com/savaki/image-deployer/internal/policy"
	"github.com/savaki/image-deployer/internal/services"
	"github.com/savaki/image-deployer/internal/stack"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"
)

// DeployCommand returns the deploy command
func DeployCommand(logger *zerolog.Logger) *cli.Command {
	flags := targetFlags()
	flags = append(flags, contextFlags()...)
	flags = append(flags, outFlag(), envFlag(),
		&cli.BoolFlag{
			Name:  "direct-registry",
			Usage: "Ensure repositories via the ECR API instead of CloudFormation",
		},
		&cli.BoolFlag{
			Name:  "no-history",
			Usage: "Skip recording the deployment in DynamoDB",
		},
		&cli.BoolFlag{
			Name:  "org-access",
			Usage: "Grant organization-wide read access on the deployed repositories",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Print the ordered deployment steps without executing them",
		},
	)

	return &cli.Command{
		Name:      "deploy",
		Usage:     "Build, promote, and publish image stacks",
		ArgsUsage: "[stack ...]",
		Description: `Synthesize the selected stacks (all by default) and execute their
deployment plans in dependency order:

  1. Ensure the durable ECR repository exists (CloudFormation, retained on teardown)
  2. Build the image asset and stage it under its content hash
  3. Promote the staged image into the repository under the destination tag
  4. Publish the tagged image URI as a stack output (SSM Parameter Store)

The promotion never runs before its target repository exists; ordering is
carried by the synthesized plan.

Examples:
  # Deploy everything with the default tag (latest)
  image-deployer deploy

  # Deploy one stack under a release tag
  image-deployer deploy agent-b-mcps --tag v1.2.3`,
		Flags: flags,
		Action: func(c *cli.Context) error {
			return deployAction(c, logger)
		},
	}
}

func deployAction(c *cli.Context, logger *zerolog.Logger) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}

	stacks, err := selectStacks(c, app)
	if err != nil {
		return err
	}

	if _, ok := app.Context(pipeline.TagContextKey); !ok {
		logger.Warn().Msgf("no %s supplied; promoting as mutable tag %q, overwriting the previous image", pipeline.TagContextKey, pipeline.DefaultTag)
	}

	// Synthesize first so the plans on disk always match what gets deployed
	assembly, err := app.Synth(c.String("out"))
	if err != nil {
		return err
	}
	logger.Info().Str("dir", assembly.Dir).Msg("synthesized stacks")

	// Pre-flight policy check
	validator, err := policy.NewValidator()
	if err != nil {
		return err
	}
	if err := validateStacks(c, logger, validator, stacks); err != nil {
		return err
	}

	if c.Bool("dry-run") {
		return printPlans(logger, stacks)
	}

	container, err := di.New(c.String("env"),
		di.WithEnvironment(app.Env()),
	)
	if err != nil {
		return err
	}

	return container.Invoke(func(eng *engine.Engine, dao *deploydao.DAO, ecrService *services.ECRService) error {
		// The target account is pinned; refuse to deploy with credentials
		// for a different one.
		actual, err := ecrService.GetAccountID(c.Context)
		if err != nil {
			return err
		}
		if want := app.Env().Account; actual != want {
			return fmt.Errorf("credentials belong to account %s, target account is %s", actual, want)
		}

		opts := engine.Options{
			DirectRegistry: c.Bool("direct-registry"),
		}

		for _, s := range stacks {
			if err := deployStack(c.Context, logger, eng, dao, s, opts, c.Bool("no-history"), c.String("env")); err != nil {
				return err
			}
		}

		if c.Bool("org-access") {
			return grantOrgAccess(c.Context, logger, ecrService, stacks)
		}
		return nil
	})
}

// grantOrgAccess applies an organization-wide read policy to each stack's
// repository. Skipped with a warning when the account is not in an organization.
func grantOrgAccess(ctx context.Context, logger *zerolog.Logger, ecrService *services.ECRService, stacks []*stack.Stack) error {
	orgID, err := ecrService.GetOrganizationID(ctx)
	if err != nil {
		return err
	}
	if orgID == "" {
		logger.Warn().Msg("account is not in an organization; skipping repository read grants")
		return nil
	}

	for _, s := range stacks {
		for _, repo := range s.Repositories() {
			if err := ecrService.SetRepositoryPolicy(ctx, repo.RepositoryName(), orgID); err != nil {
				return err
			}
			logger.Info().Str("repository", repo.RepositoryName()).Str("org", orgID).Msg("granted organization read access")
		}
	}
	return nil
}

// deployStack runs one stack's plan, recording the run in the history table
func deployStack(
	ctx context.Context,
	logger *zerolog.Logger,
	eng *engine.Engine,
	dao *deploydao.DAO,
	s *stack.Stack,
	opts engine.Options,
	skipHistory bool,
	env string,
) error {
	plan := s.Plan()
	template, err := s.TemplateJSON()
	if err != nil {
		return err
	}

	var record deploydao.Record
	if !skipHistory {
		promotion, ok := plan.Step("Promotion")
		if !ok {
			return fmt.Errorf("stack %s has no promotion step", s.Name())
		}

		record, err = dao.Create(ctx, deploydao.CreateInput{
			Stack:      s.Name(),
			Env:        env,
			SK:         ksuid.New().String(),
			Repository: promotion.Repository,
			Tag:        promotion.Tag,
			ImageURI:   fmt.Sprintf("%s:%s", promotion.RepositoryURI, promotion.Tag),
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to record deployment; continuing")
			skipHistory = true
		}
	}

	result, deployErr := eng.Deploy(ctx, plan, string(template), opts)

	if !skipHistory {
		status := deploydao.StatusSuccess
		var errMsg *string
		if deployErr != nil {
			status = deploydao.StatusFailed
			msg := deployErr.Error()
			errMsg = &msg
		}
		if err := dao.UpdateStatus(ctx, deploydao.UpdateInput{
			PK:       record.PK,
			SK:       record.SK,
			Status:   &status,
			ErrorMsg: errMsg,
		}); err != nil {
			logger.Warn().Err(err).Msg("failed to update deployment record")
		}
	}

	if deployErr != nil {
		return deployErr
	}

	for name, value := range result.Outputs {
		logger.Info().Msgf("%s.%s = %s", s.Name(), name, value)
	}
	return nil
}

// printPlans logs each stack's steps in execution order
func printPlans(logger *zerolog.Logger, stacks []*stack.Stack) error {
	for _, s := range stacks {
		plan := s.Plan()
		ordered, err := plan.Ordered()
		if err != nil {
			return err
		}

		logger.Info().Msgf("%s:", s.Name())
		for _, step := range ordered {
			if len(step.DependsOn) > 0 {
				logger.Info().Msgf("  %s (%s) after %v", step.Name, step.Kind, step.DependsOn)
				continue
			}
			logger.Info().Msgf("  %s (%s)", step.Name, step.Kind)
		}
	}
	return nil
}
