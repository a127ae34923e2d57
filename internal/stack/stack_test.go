package stack

import (
	"testing"

	apperrors "github.com/savaki/image-deployer/internal/errors"
	"github.com/stretchr/testify/assert"
)

var testEnv = Environment{Account: "123456789012", Region: "us-east-1"}

func TestEnvironmentURIs(t *testing.T) {
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com", testEnv.RegistryHost())
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com/agent-b-mcps", testEnv.RepositoryURI("agent-b-mcps"))
}

func TestAppContext(t *testing.T) {
	app := NewApp(testEnv, WithContext(map[string]string{"image_tag": "v1.2.3"}))

	got, ok := app.Context("image_tag")
	assert.True(t, ok)
	assert.Equal(t, "v1.2.3", got)

	_, ok = app.Context("missing")
	assert.False(t, ok)

	assert.Equal(t, "v1.2.3", app.ContextOrDefault("image_tag", "latest"))
	assert.Equal(t, "latest", app.ContextOrDefault("missing", "latest"))
}

func TestAppContextDefaultWhenEmpty(t *testing.T) {
	app := NewApp(testEnv, WithContext(map[string]string{"image_tag": ""}))
	assert.Equal(t, "latest", app.ContextOrDefault("image_tag", "latest"))
}

func TestNewStackRejectsDuplicates(t *testing.T) {
	app := NewApp(testEnv)

	_, err := app.NewStack("agent-b-mcps")
	assert.NoError(t, err)

	_, err = app.NewStack("agent-b-mcps")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateStack)
}

func TestAddRepositoryValidatesName(t *testing.T) {
	tests := []struct {
		name     string
		repoName string
		wantErr  error
	}{
		{name: "lowercase ok", repoName: "agent-b-mcps"},
		{name: "uppercase rejected", repoName: "Agent-B-MCPS", wantErr: apperrors.ErrInvalidRepositoryName},
		{name: "mixed case rejected", repoName: "agentB", wantErr: apperrors.ErrInvalidRepositoryName},
		{name: "path segments ok", repoName: "team/agent-b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApp(testEnv)
			s, err := app.NewStack("test")
			assert.NoError(t, err)

			_, err = s.AddRepository("Repository", tt.repoName)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAddRepositoryRejectsDuplicateID(t *testing.T) {
	app := NewApp(testEnv)
	s, err := app.NewStack("test")
	assert.NoError(t, err)

	_, err = s.AddRepository("Repository", "one")
	assert.NoError(t, err)

	_, err = s.AddRepository("Repository", "two")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateResource)
}

func TestRepositoryURIForTag(t *testing.T) {
	app := NewApp(testEnv)
	s, err := app.NewStack("test")
	assert.NoError(t, err)

	repo, err := s.AddRepository("Repository", "agent-a-mcpc")
	assert.NoError(t, err)

	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com/agent-a-mcpc:v1.2.3", repo.URIForTag("v1.2.3"))
}

func TestPromotionDependsOn(t *testing.T) {
	app := NewApp(testEnv)
	s, err := app.NewStack("test")
	assert.NoError(t, err)

	repo, err := s.AddRepository("Repository", "agent-a-mcpc")
	assert.NoError(t, err)
	asset, err := s.AddImageAsset("Image", ".", "Dockerfile", nil)
	assert.NoError(t, err)

	promotion, err := s.AddPromotion("Promotion", asset, repo, "latest")
	assert.NoError(t, err)

	// the build edge is implicit, the repository edge is explicit
	assert.Equal(t, []string{"Image"}, promotion.dependsOn)

	promotion.DependsOn(repo)
	assert.Equal(t, []string{"Image", "Repository"}, promotion.dependsOn)

	// declaring the same edge twice is a no-op
	promotion.DependsOn(repo)
	assert.Equal(t, []string{"Image", "Repository"}, promotion.dependsOn)
}
