package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/go-containerregistry/pkg/authn"
)

// ECRService manages durable image repositories
type ECRService struct {
	client    *ecr.Client
	stsClient *sts.Client
	orgClient *organizations.Client
	region    string
}

// NewECRService creates a new ECR service from the given AWS config
func NewECRService(cfg aws.Config) *ECRService {
	return &ECRService{
		client:    ecr.NewFromConfig(cfg),
		stsClient: sts.NewFromConfig(cfg),
		orgClient: organizations.NewFromConfig(cfg),
		region:    cfg.Region,
	}
}

// RepositoryInfo describes an ECR repository
type RepositoryInfo struct {
	Name string
	ARN  string
	URI  string
}

// EnsureRepository creates an ECR repository with mutable tags and scan-on-push
// enabled. Tags are mutable so a promotion can safely overwrite an existing
// tag. Idempotent: if the repository already exists it is described and
// returned unchanged.
func (s *ECRService) EnsureRepository(ctx context.Context, repositoryName string) (*RepositoryInfo, error) {
	input := &ecr.CreateRepositoryInput{
		RepositoryName:     aws.String(repositoryName),
		ImageTagMutability: types.ImageTagMutabilityMutable,
		ImageScanningConfiguration: &types.ImageScanningConfiguration{
			ScanOnPush: true,
		},
		Tags: []types.Tag{
			{
				Key:   aws.String("ManagedBy"),
				Value: aws.String("image-deployer"),
			},
		},
	}

	output, err := s.client.CreateRepository(ctx, input)
	if err != nil {
		var exists *types.RepositoryAlreadyExistsException
		if errors.As(err, &exists) {
			return s.describeRepository(ctx, repositoryName)
		}
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	return &RepositoryInfo{
		Name: aws.ToString(output.Repository.RepositoryName),
		ARN:  aws.ToString(output.Repository.RepositoryArn),
		URI:  aws.ToString(output.Repository.RepositoryUri),
	}, nil
}

func (s *ECRService) describeRepository(ctx context.Context, repositoryName string) (*RepositoryInfo, error) {
	output, err := s.client.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{repositoryName},
	})
	if err != nil {
		return nil, fmt.Errorf("repository exists but failed to describe: %w", err)
	}
	if len(output.Repositories) == 0 {
		return nil, fmt.Errorf("repository exists but not found in describe")
	}

	repo := output.Repositories[0]
	return &RepositoryInfo{
		Name: aws.ToString(repo.RepositoryName),
		ARN:  aws.ToString(repo.RepositoryArn),
		URI:  aws.ToString(repo.RepositoryUri),
	}, nil
}

// Authenticator returns registry credentials for the account's ECR registry,
// obtained from GetAuthorizationToken. Tokens are valid for 12 hours, long
// enough for any single deployment run.
func (s *ECRService) Authenticator(ctx context.Context) (authn.Authenticator, error) {
	output, err := s.client.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get ECR authorization token: %w", err)
	}
	if len(output.AuthorizationData) == 0 {
		return nil, fmt.Errorf("no ECR authorization data returned")
	}

	decoded, err := base64.StdEncoding.DecodeString(aws.ToString(output.AuthorizationData[0].AuthorizationToken))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ECR authorization token: %w", err)
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, fmt.Errorf("malformed ECR authorization token")
	}

	return &authn.Basic{Username: username, Password: password}, nil
}

// GetAccountID retrieves the AWS account ID
func (s *ECRService) GetAccountID(ctx context.Context) (string, error) {
	output, err := s.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return aws.ToString(output.Account), nil
}

// GetOrganizationID retrieves the AWS Organization ID if the account belongs to one
func (s *ECRService) GetOrganizationID(ctx context.Context) (string, error) {
	output, err := s.orgClient.DescribeOrganization(ctx, &organizations.DescribeOrganizationInput{})
	if err != nil {
		// Not in an organization or no permissions
		if strings.Contains(err.Error(), "AWSOrganizationsNotInUseException") ||
			strings.Contains(err.Error(), "AccessDeniedException") {
			return "", nil
		}
		return "", fmt.Errorf("failed to describe organization: %w", err)
	}

	return aws.ToString(output.Organization.Id), nil
}

// SetRepositoryPolicy sets an organization-wide read policy on the repository
func (s *ECRService) SetRepositoryPolicy(ctx context.Context, repositoryName, organizationID string) error {
	policy := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Sid":    "OrganizationAccess",
				"Effect": "Allow",
				"Principal": map[string]any{
					"AWS": "*",
				},
				"Action": []string{
					"ecr:GetDownloadUrlForLayer",
					"ecr:BatchGetImage",
					"ecr:BatchCheckLayerAvailability",
					"ecr:DescribeRepositories",
					"ecr:GetRepositoryPolicy",
					"ecr:ListImages",
				},
				"Condition": map[string]any{
					"StringEquals": map[string]any{
						"aws:PrincipalOrgID": organizationID,
					},
				},
			},
		},
	}

	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}

	_, err = s.client.SetRepositoryPolicy(ctx, &ecr.SetRepositoryPolicyInput{
		RepositoryName: aws.String(repositoryName),
		PolicyText:     aws.String(string(policyJSON)),
	})
	if err != nil {
		return fmt.Errorf("failed to set repository policy: %w", err)
	}

	return nil
}
