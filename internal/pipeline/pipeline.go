// Package pipeline assembles one image promotion pipeline per deployable
// artifact: a durable ECR repository, an image asset built from local source,
// a promotion of the freshly built image into the repository under the
// context-supplied tag, and the resulting image URI as a stack output.
package pipeline

import (
	"fmt"

	"github.com/savaki/image-deployer/internal/stack"
)

// TagContextKey is the app context key carrying the destination image tag
const TagContextKey = "image_tag"

// DefaultTag is used when no image_tag context value is supplied. Tags are
// mutable, so repeated deployments without an explicit tag overwrite the
// previous image under this tag.
const DefaultTag = "latest"

// Spec describes one deployable artifact
type Spec struct {
	// Name is the stack name
	Name string

	// RepositoryName is the durable ECR repository name; ECR requires lowercase
	RepositoryName string

	// Directory is the build context, relative to the repository root
	Directory string

	// File is the build file path, relative to the build context
	File string

	// Exclude lists patterns kept out of the build context
	Exclude []string

	// OutputName names the stack output carrying the image URI; defaults to ImageUri
	OutputName string
}

// Pipeline is one assembled image promotion pipeline
type Pipeline struct {
	Stack      *stack.Stack
	Repository *stack.Repository
	Asset      *stack.ImageAsset
	Promotion  *stack.Promotion
	Tag        string
}

// New registers a stack on the app built from the given spec. The promotion
// carries an explicit dependency edge on the repository, and the output value
// uses the same tag the promotion uses.
func New(app *stack.App, spec Spec) (*Pipeline, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("pipeline name is required")
	}

	outputName := spec.OutputName
	if outputName == "" {
		outputName = "ImageUri"
	}

	s, err := app.NewStack(spec.Name)
	if err != nil {
		return nil, err
	}

	repo, err := s.AddRepository("Repository", spec.RepositoryName)
	if err != nil {
		return nil, fmt.Errorf("stack %s: %w", spec.Name, err)
	}

	asset, err := s.AddImageAsset("Image", spec.Directory, spec.File, spec.Exclude)
	if err != nil {
		return nil, fmt.Errorf("stack %s: %w", spec.Name, err)
	}

	tag := app.ContextOrDefault(TagContextKey, DefaultTag)

	promotion, err := s.AddPromotion("Promotion", asset, repo, tag)
	if err != nil {
		return nil, fmt.Errorf("stack %s: %w", spec.Name, err)
	}
	promotion.DependsOn(repo)

	s.AddOutput(
		outputName,
		repo.URIForTag(tag),
		fmt.Sprintf("ECR image URI with custom tag (%s:%s or %s:vX.Y.Z)", spec.RepositoryName, DefaultTag, spec.RepositoryName),
	)

	return &Pipeline{
		Stack:      s,
		Repository: repo,
		Asset:      asset,
		Promotion:  promotion,
		Tag:        tag,
	}, nil
}
