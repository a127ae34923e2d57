package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// CloudFormationService deploys synthesized stack templates
type CloudFormationService struct {
	client *cloudformation.Client
}

// NewCloudFormationService creates a new CloudFormation service from the given AWS config
func NewCloudFormationService(cfg aws.Config) *CloudFormationService {
	return &CloudFormationService{
		client: cloudformation.NewFromConfig(cfg),
	}
}

// DeployResult describes a completed stack deployment
type DeployResult struct {
	StackName string `json:"stack_name"`
	StackID   string `json:"stack_id"`
	Operation string `json:"operation"`
}

// DeployTemplate creates or updates the named stack with the given template
// body and waits for the operation to reach a terminal state. An update that
// changes nothing is treated as success.
func (s *CloudFormationService) DeployTemplate(ctx context.Context, stackName, template string) (result *DeployResult, err error) {
	logger := zerolog.Ctx(ctx)

	defer func(begin time.Time) {
		logger.Info().
			Interface("error", err).
			Str("stack_name", stackName).
			Dur("elapsed", time.Since(begin)).
			Msg("DeployTemplate completed")
	}(time.Now())

	exists, err := s.stackExists(ctx, stackName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if stack exists: %w", err)
	}

	if exists {
		result, err = s.updateStack(ctx, stackName, template)
		if err != nil {
			return nil, fmt.Errorf("failed to update stack: %w", err)
		}
	} else {
		result, err = s.createStack(ctx, stackName, template)
		if err != nil {
			return nil, fmt.Errorf("failed to create stack: %w", err)
		}
	}

	if result.Operation != "NOOP" {
		if err := s.waitForStack(ctx, stackName); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *CloudFormationService) stackExists(ctx context.Context, stackName string) (bool, error) {
	_, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "ValidationError" || strings.Contains(apiErr.ErrorMessage(), "does not exist") {
				return false, nil
			}
		}
		return false, err
	}
	return true, nil
}

func (s *CloudFormationService) createStack(ctx context.Context, stackName, template string) (*DeployResult, error) {
	input := &cloudformation.CreateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(template),
		Tags: []types.Tag{
			{
				Key:   aws.String("ManagedBy"),
				Value: aws.String("image-deployer"),
			},
		},
	}

	result, err := s.client.CreateStack(ctx, input)
	if err != nil {
		return nil, err
	}

	return &DeployResult{
		StackName: stackName,
		StackID:   aws.ToString(result.StackId),
		Operation: "CREATE",
	}, nil
}

func (s *CloudFormationService) updateStack(ctx context.Context, stackName, template string) (*DeployResult, error) {
	logger := zerolog.Ctx(ctx)

	input := &cloudformation.UpdateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(template),
	}

	result, err := s.client.UpdateStack(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "ValidationError" &&
				(strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed") ||
					strings.Contains(apiErr.ErrorMessage(), "No updates to be performed")) {
				logger.Info().Str("stack_name", stackName).Msg("No updates needed for stack")
				return &DeployResult{
					StackName: stackName,
					StackID:   stackName,
					Operation: "NOOP",
				}, nil
			}
		}
		return nil, err
	}

	return &DeployResult{
		StackName: stackName,
		StackID:   aws.ToString(result.StackId),
		Operation: "UPDATE",
	}, nil
}

// waitForStack polls until the stack reaches a terminal status
func (s *CloudFormationService) waitForStack(ctx context.Context, stackName string) error {
	logger := zerolog.Ctx(ctx)

	for {
		output, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			StackName: aws.String(stackName),
		})
		if err != nil {
			return fmt.Errorf("failed to describe stack %s: %w", stackName, err)
		}
		if len(output.Stacks) == 0 {
			return fmt.Errorf("stack %s not found while waiting", stackName)
		}

		status := output.Stacks[0].StackStatus
		switch status {
		case types.StackStatusCreateComplete,
			types.StackStatusUpdateComplete:
			return nil
		case types.StackStatusCreateFailed,
			types.StackStatusRollbackComplete,
			types.StackStatusRollbackFailed,
			types.StackStatusUpdateRollbackComplete,
			types.StackStatusUpdateRollbackFailed,
			types.StackStatusDeleteComplete,
			types.StackStatusDeleteFailed:
			reason := aws.ToString(output.Stacks[0].StackStatusReason)
			return fmt.Errorf("stack %s reached %s: %s", stackName, status, reason)
		}

		logger.Info().
			Str("stack_name", stackName).
			Str("status", string(status)).
			Msg("waiting for stack")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

// StackOutputs returns the outputs of a deployed stack as a name/value map
func (s *CloudFormationService) StackOutputs(ctx context.Context, stackName string) (map[string]string, error) {
	output, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
	}
	if len(output.Stacks) == 0 {
		return nil, fmt.Errorf("stack %s not found", stackName)
	}

	outputs := map[string]string{}
	for _, o := range output.Stacks[0].Outputs {
		outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return outputs, nil
}
