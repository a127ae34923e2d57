package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/image-deployer/internal/policy"
	"github.com/savaki/image-deployer/internal/stack"
	"github.com/urfave/cli/v2"
)

// ValidateCommand returns the validate command
func ValidateCommand(logger *zerolog.Logger) *cli.Command {
	flags := targetFlags()
	flags = append(flags, contextFlags()...)

	return &cli.Command{
		Name:  "validate",
		Usage: "Validate synthesized templates against policy",
		Description: `Check every stack's synthesized template against the repository policy:
ECR repositories must carry a Retain deletion policy, mutable tags, and
lowercase names. Deploy runs the same checks as a pre-flight.`,
		Flags: flags,
		Action: func(c *cli.Context) error {
			return validateAction(c, logger)
		},
	}
}

func validateAction(c *cli.Context, logger *zerolog.Logger) error {
	app, err := buildApp(c)
	if err != nil {
		return err
	}

	validator, err := policy.NewValidator()
	if err != nil {
		return err
	}

	return validateStacks(c, logger, validator, app.Stacks())
}

// validateStacks policy-checks the given stacks, reporting every violation
// before failing.
func validateStacks(c *cli.Context, logger *zerolog.Logger, validator *policy.Validator, stacks []*stack.Stack) error {
	failed := 0
	for _, s := range stacks {
		template, err := templateObject(s)
		if err != nil {
			return err
		}

		result, err := validator.ValidateTemplate(c.Context, template)
		if err != nil {
			return fmt.Errorf("failed to validate stack %s: %w", s.Name(), err)
		}

		if result.Allowed {
			logger.Info().Str("stack", s.Name()).Msg("policy check passed")
			continue
		}

		failed++
		for _, violation := range result.Violations {
			logger.Error().Str("stack", s.Name()).Msg(violation)
		}
	}

	if failed > 0 {
		return fmt.Errorf("policy check failed for %d stack(s)", failed)
	}
	return nil
}

// templateObject renders a stack template into its generic JSON object form
// for policy evaluation.
func templateObject(s *stack.Stack) (map[string]any, error) {
	data, err := s.TemplateJSON()
	if err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("failed to parse template for stack %s: %w", s.Name(), err)
	}
	return obj, nil
}
