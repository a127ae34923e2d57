package stack

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSynthWritesAssembly(t *testing.T) {
	app := NewApp(testEnv)

	for _, name := range []string{"agent-b-mcps", "agent-a-mcpc"} {
		s, err := app.NewStack(name)
		assert.NoError(t, err)

		repo, err := s.AddRepository("Repository", name)
		assert.NoError(t, err)
		asset, err := s.AddImageAsset("Image", ".", "Dockerfile", nil)
		assert.NoError(t, err)
		promotion, err := s.AddPromotion("Promotion", asset, repo, "latest")
		assert.NoError(t, err)
		promotion.DependsOn(repo)
		s.AddOutput("ImageUri", repo.URIForTag("latest"), "ECR image URI")
	}

	dir := filepath.Join(t.TempDir(), "stacks.out")
	assembly, err := app.Synth(dir)
	assert.NoError(t, err)
	assert.Equal(t, dir, assembly.Dir)
	assert.Len(t, assembly.Manifest.Stacks, 2)

	// manifest on disk matches the returned assembly
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	assert.NoError(t, err)

	var manifest Manifest
	assert.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, ManifestVersion, manifest.Version)
	assert.Equal(t, "123456789012", manifest.Account)
	assert.Equal(t, assembly.Manifest, manifest)

	// each stack's template and plan are readable
	for name := range manifest.Stacks {
		plan, err := ReadPlan(dir, name)
		assert.NoError(t, err)
		assert.Equal(t, name, plan.Stack)

		_, err = plan.Ordered()
		assert.NoError(t, err)

		template, err := ReadTemplate(dir, name)
		assert.NoError(t, err)
		assert.Contains(t, template, "AWS::ECR::Repository")
		assert.Contains(t, template, `"DeletionPolicy": "Retain"`)
	}
}

func TestSynthFailsOnBadPlan(t *testing.T) {
	app := NewApp(testEnv)
	s, err := app.NewStack("broken")
	assert.NoError(t, err)

	// promotion referencing an asset from another stack leaves a dangling edge
	other := NewApp(testEnv)
	o, err := other.NewStack("other")
	assert.NoError(t, err)
	foreign, err := o.AddImageAsset("Foreign", ".", "Dockerfile", nil)
	assert.NoError(t, err)

	repo, err := s.AddRepository("Repository", "broken")
	assert.NoError(t, err)
	_, err = s.AddPromotion("Promotion", foreign, repo, "latest")
	assert.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "stacks.out")
	_, err = app.Synth(dir)
	assert.Error(t, err)

	// nothing may be written on failure
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReadPlanMissing(t *testing.T) {
	_, err := ReadPlan(t.TempDir(), "missing")
	assert.Error(t, err)
}
