package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/docker/docker/client"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/savaki/image-deployer/internal/assets"
	"github.com/savaki/image-deployer/internal/dao/deploydao"
	"github.com/savaki/image-deployer/internal/engine"
	"github.com/savaki/image-deployer/internal/policy"
	"github.com/savaki/image-deployer/internal/promote"
	"github.com/savaki/image-deployer/internal/services"
)

func ProvideAWSConfig(ctx context.Context, env Environment) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, config.WithRegion(env.Region))
}

func ProvideSSMClient(config aws.Config) *ssm.Client {
	return ssm.NewFromConfig(config)
}

func ProvideDynamoDB(config aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(config)
}

func ProvideOutputStore(client *ssm.Client, env string) services.OutputStore {
	return services.NewSSMOutputStore(client, env)
}

func ProvideDeployDAO(client *dynamodb.Client, tableName TableName) *deploydao.DAO {
	return deploydao.New(client, string(tableName))
}

func ProvideDockerClient() (client.APIClient, error) {
	return assets.NewDockerClient()
}

// ProvideAuthenticator obtains ECR registry credentials for the run
func ProvideAuthenticator(ctx context.Context, ecrService *services.ECRService) (authn.Authenticator, error) {
	return ecrService.Authenticator(ctx)
}

func ProvideBuilder(docker client.APIClient, env Environment, auth authn.Authenticator) *assets.Builder {
	stagingURI := env.RepositoryURI(engine.StagingRepository)
	return assets.NewBuilder(docker, stagingURI, auth)
}

func ProvidePromoter(auth authn.Authenticator) *promote.Promoter {
	return promote.New(auth)
}

func ProvideEngine(
	cloudformation *services.CloudFormationService,
	ecrService *services.ECRService,
	builder *assets.Builder,
	promoter *promote.Promoter,
	outputs services.OutputStore,
	env string,
) *engine.Engine {
	return engine.New(cloudformation, ecrService, builder, promoter, outputs, env)
}

var core = []any{
	ProvideLogger,
	ProvideContext,
	ProvideAWSConfig,
	ProvideSSMClient,
	ProvideDynamoDB,
	ProvideOutputStore,
	ProvideDeployDAO,
	ProvideDockerClient,
	ProvideAuthenticator,
	ProvideBuilder,
	ProvidePromoter,
	ProvideEngine,
	services.NewECRService,
	services.NewCloudFormationService,
	policy.NewValidator,
}
