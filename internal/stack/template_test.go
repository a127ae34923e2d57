package stack

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestStack(t *testing.T) *Stack {
	t.Helper()

	app := NewApp(testEnv)
	s, err := app.NewStack("agent-b-mcps")
	assert.NoError(t, err)

	repo, err := s.AddRepository("Repository", "agent-b-mcps")
	assert.NoError(t, err)
	asset, err := s.AddImageAsset("Image", ".", "agent-b/Dockerfile", []string{".git", "stacks.out"})
	assert.NoError(t, err)
	promotion, err := s.AddPromotion("Promotion", asset, repo, "latest")
	assert.NoError(t, err)
	promotion.DependsOn(repo)
	s.AddOutput("ImageUri", repo.URIForTag("latest"), "ECR image URI")

	return s
}

func TestTemplateRepositoryIsRetained(t *testing.T) {
	template := newTestStack(t).Template()

	resource, ok := template.Resources["Repository"]
	assert.True(t, ok)
	assert.Equal(t, "AWS::ECR::Repository", resource.Type)
	assert.Equal(t, "Retain", resource.DeletionPolicy)
	assert.Equal(t, "Retain", resource.UpdateReplacePolicy)
	assert.Equal(t, "agent-b-mcps", resource.Properties["RepositoryName"])
	assert.Equal(t, "MUTABLE", resource.Properties["ImageTagMutability"])
}

func TestTemplateOutputs(t *testing.T) {
	template := newTestStack(t).Template()

	output, ok := template.Outputs["ImageUri"]
	assert.True(t, ok)
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com/agent-b-mcps:latest", output.Value)
	assert.Equal(t, "ECR image URI", output.Description)
}

func TestTemplateJSONRoundTrip(t *testing.T) {
	data, err := newTestStack(t).TemplateJSON()
	assert.NoError(t, err)

	var obj map[string]any
	assert.NoError(t, json.Unmarshal(data, &obj))
	assert.Equal(t, "2010-09-09", obj["AWSTemplateFormatVersion"])

	resources, ok := obj["Resources"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, resources, "Repository")
}
