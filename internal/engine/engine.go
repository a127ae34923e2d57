// Package engine executes synthesized deployment plans. Steps run in the
// order their declared edges allow: a promotion never runs before the
// registry it targets, ordering carried by the plan, not by blocking code
// here.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/image-deployer/internal/assets"
	"github.com/savaki/image-deployer/internal/services"
	"github.com/savaki/image-deployer/internal/stack"
)

// StagingRepository is the shared transient repository image assets are
// pushed to before promotion. Created on demand, one per account/region.
const StagingRepository = "image-deployer-assets"

// TemplateDeployer applies a stack template
type TemplateDeployer interface {
	DeployTemplate(ctx context.Context, stackName, template string) (*services.DeployResult, error)
}

// RepositoryEnsurer creates a repository when it does not already exist
type RepositoryEnsurer interface {
	EnsureRepository(ctx context.Context, repositoryName string) (*services.RepositoryInfo, error)
}

// ImageBuilder builds and stages one image asset
type ImageBuilder interface {
	Build(ctx context.Context, spec assets.BuildSpec) (*assets.Result, error)
}

// ImageCopier copies an image between references
type ImageCopier interface {
	Copy(ctx context.Context, src, dst string) error
}

// Engine executes deployment plans
type Engine struct {
	cloudformation TemplateDeployer
	registries     RepositoryEnsurer
	builder        ImageBuilder
	copier         ImageCopier
	outputs        services.OutputStore
	env            string
}

// New creates an Engine. The env string names the deployment environment
// (dev, stg, prd) and prefixes CloudFormation stack names.
func New(
	cloudformation TemplateDeployer,
	registries RepositoryEnsurer,
	builder ImageBuilder,
	copier ImageCopier,
	outputs services.OutputStore,
	env string,
) *Engine {
	return &Engine{
		cloudformation: cloudformation,
		registries:     registries,
		builder:        builder,
		copier:         copier,
		outputs:        outputs,
		env:            env,
	}
}

// Options control a single deployment run
type Options struct {
	// DirectRegistry ensures repositories via the ECR API instead of
	// deploying the stack template through CloudFormation.
	DirectRegistry bool

	// SkipOutputStore suppresses publication of outputs to the output store
	SkipOutputStore bool
}

// Result describes one completed stack deployment
type Result struct {
	Stack     string            `json:"stack"`
	StackName string            `json:"stack_name"` // CloudFormation stack name, {env}-{stack}
	Outputs   map[string]string `json:"outputs"`
	Builds    map[string]string `json:"builds"` // build step name -> transient reference
}

// Deploy runs every step of the plan in dependency order. The first failing
// step aborts the run; nothing is retried.
func (e *Engine) Deploy(ctx context.Context, plan stack.Plan, template string, opts Options) (result *Result, err error) {
	logger := zerolog.Ctx(ctx)

	defer func(begin time.Time) {
		logger.Info().
			Interface("error", err).
			Str("stack", plan.Stack).
			Dur("elapsed", time.Since(begin)).
			Msg("stack deployment completed")
	}(time.Now())

	ordered, err := plan.Ordered()
	if err != nil {
		return nil, err
	}

	result = &Result{
		Stack:     plan.Stack,
		StackName: fmt.Sprintf("%s-%s", e.env, plan.Stack),
		Outputs:   map[string]string{},
		Builds:    map[string]string{},
	}

	templateDeployed := false
	for _, step := range ordered {
		logger.Info().
			Str("stack", plan.Stack).
			Str("step", step.Name).
			Str("kind", string(step.Kind)).
			Msg("running step")

		switch step.Kind {
		case stack.StepKindRegistry:
			err = e.runRegistry(ctx, result.StackName, step, template, opts, &templateDeployed)
		case stack.StepKindBuild:
			err = e.runBuild(ctx, step, result)
		case stack.StepKindPromote:
			err = e.runPromote(ctx, step, result)
		case stack.StepKindOutput:
			err = e.runOutput(ctx, plan.Stack, step, opts, result)
		default:
			err = fmt.Errorf("unknown step kind %q", step.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("stack %s step %s: %w", plan.Stack, step.Name, err)
		}
	}

	return result, nil
}

// runRegistry ensures the durable repository exists: either by deploying the
// stack template through CloudFormation (once per run) or directly via the
// ECR API.
func (e *Engine) runRegistry(ctx context.Context, stackName string, step stack.Step, template string, opts Options, deployed *bool) error {
	if opts.DirectRegistry {
		_, err := e.registries.EnsureRepository(ctx, step.Repository)
		return err
	}

	if *deployed {
		return nil
	}
	if _, err := e.cloudformation.DeployTemplate(ctx, stackName, template); err != nil {
		return err
	}
	*deployed = true
	return nil
}

// runBuild ensures the staging repository exists, then builds and stages the
// image asset.
func (e *Engine) runBuild(ctx context.Context, step stack.Step, result *Result) error {
	if _, err := e.registries.EnsureRepository(ctx, StagingRepository); err != nil {
		return fmt.Errorf("failed to ensure staging repository: %w", err)
	}

	built, err := e.builder.Build(ctx, assets.BuildSpec{
		Directory: step.Directory,
		File:      step.File,
		Exclude:   step.Exclude,
	})
	if err != nil {
		return err
	}

	result.Builds[step.Name] = built.Reference
	return nil
}

// runPromote copies the staged asset to the durable reference
func (e *Engine) runPromote(ctx context.Context, step stack.Step, result *Result) error {
	src, ok := result.Builds[step.Source]
	if !ok {
		return fmt.Errorf("no build result for source step %q", step.Source)
	}

	dst := fmt.Sprintf("%s:%s", step.RepositoryURI, step.Tag)
	return e.copier.Copy(ctx, src, dst)
}

// runOutput publishes the stack outputs
func (e *Engine) runOutput(ctx context.Context, stackName string, step stack.Step, opts Options, result *Result) error {
	logger := zerolog.Ctx(ctx)

	for _, output := range step.Outputs {
		result.Outputs[output.Name] = output.Value

		logger.Info().
			Str("stack", stackName).
			Str("output", output.Name).
			Str("value", output.Value).
			Msg("stack output")

		if opts.SkipOutputStore || e.outputs == nil {
			continue
		}
		if err := e.outputs.PutOutput(ctx, stackName, output.Name, output.Value); err != nil {
			return err
		}
	}
	return nil
}
