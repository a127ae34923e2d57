package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// OutputStore publishes stack outputs for downstream consumption
type OutputStore interface {
	// PutOutput stores one stack output value
	PutOutput(ctx context.Context, stackName, outputName, value string) error

	// GetOutput retrieves one stack output value
	GetOutput(ctx context.Context, stackName, outputName string) (string, error)
}

// SSMOutputStore implements OutputStore on top of SSM Parameter Store.
// Outputs live under /{env}/image-deployer/outputs/{stack}/{name} so a
// deployment pipeline can read the promoted image URI without touching
// CloudFormation.
type SSMOutputStore struct {
	client *ssm.Client
	env    string
}

// NewSSMOutputStore creates a new SSM-backed output store
func NewSSMOutputStore(client *ssm.Client, env string) *SSMOutputStore {
	return &SSMOutputStore{
		client: client,
		env:    env,
	}
}

func (s *SSMOutputStore) path(stackName, outputName string) string {
	return fmt.Sprintf("/%s/image-deployer/outputs/%s/%s", s.env, stackName, outputName)
}

// PutOutput stores one stack output value, overwriting any previous value
func (s *SSMOutputStore) PutOutput(ctx context.Context, stackName, outputName, value string) error {
	name := s.path(stackName, outputName)

	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:        aws.String(name),
		Value:       aws.String(value),
		Type:        types.ParameterTypeString,
		Overwrite:   aws.Bool(true),
		Description: aws.String(fmt.Sprintf("Stack output %s for %s in %s environment", outputName, stackName, s.env)),
	})
	if err != nil {
		return fmt.Errorf("failed to store output %s: %w", name, err)
	}
	return nil
}

// GetOutput retrieves one stack output value
func (s *SSMOutputStore) GetOutput(ctx context.Context, stackName, outputName string) (string, error) {
	name := s.path(stackName, outputName)

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get output %s: %w", name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("output %s not found", name)
	}
	return aws.ToString(result.Parameter.Value), nil
}
