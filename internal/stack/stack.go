package stack

import (
	"fmt"
	"strings"

	apperrors "github.com/savaki/image-deployer/internal/errors"
)

// Stack is one independently deployable unit: a durable ECR repository, an
// image asset built from local source, a promotion of the asset into the
// repository, and the outputs surfaced after deployment.
type Stack struct {
	name string
	env  Environment
	ids  map[string]struct{}

	repositories []*Repository
	assets       []*ImageAsset
	promotions   []*Promotion
	outputs      []Output
}

// Repository declares a durable ECR repository. Repositories always carry a
// retain deletion policy and mutable tags; they survive stack teardown.
type Repository struct {
	id    string
	name  string
	stack *Stack
}

// ImageAsset declares a container image built from a local directory and a
// build file, with an exclusion list applied to the build context. The asset
// itself is not a CloudFormation resource; it is built and pushed to a
// transient staging location at deploy time.
type ImageAsset struct {
	id        string
	directory string
	file      string
	exclude   []string
	stack     *Stack
}

// Promotion declares a copy of a built asset into a durable repository under
// a fixed tag. The dependency on the target repository is an explicit edge,
// declared with DependsOn, never an implicit race.
type Promotion struct {
	id        string
	source    *ImageAsset
	target    *Repository
	tag       string
	dependsOn []string
	stack     *Stack
}

// Output declares a named string surfaced after deployment
type Output struct {
	Name        string
	Value       string
	Description string
}

// Name returns the stack name
func (s *Stack) Name() string {
	return s.name
}

// Env returns the stack's target environment
func (s *Stack) Env() Environment {
	return s.env
}

func (s *Stack) claimID(id string) error {
	if id == "" {
		return fmt.Errorf("resource id is required")
	}
	if _, exists := s.ids[id]; exists {
		return fmt.Errorf("%w: %s/%s", apperrors.ErrDuplicateResource, s.name, id)
	}
	s.ids[id] = struct{}{}
	return nil
}

// AddRepository declares an ECR repository on the stack. ECR mandates
// lowercase repository names; anything else is a construction-time defect.
func (s *Stack) AddRepository(id, name string) (*Repository, error) {
	if err := s.claimID(id); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("repository name is required")
	}
	if name != strings.ToLower(name) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidRepositoryName, name)
	}

	r := &Repository{id: id, name: name, stack: s}
	s.repositories = append(s.repositories, r)
	return r, nil
}

// AddImageAsset declares an image asset on the stack
func (s *Stack) AddImageAsset(id, directory, file string, exclude []string) (*ImageAsset, error) {
	if err := s.claimID(id); err != nil {
		return nil, err
	}
	if directory == "" || file == "" {
		return nil, fmt.Errorf("image asset requires a directory and a build file")
	}

	a := &ImageAsset{
		id:        id,
		directory: directory,
		file:      file,
		exclude:   append([]string(nil), exclude...),
		stack:     s,
	}
	s.assets = append(s.assets, a)
	return a, nil
}

// AddPromotion declares a promotion of source into target under tag
func (s *Stack) AddPromotion(id string, source *ImageAsset, target *Repository, tag string) (*Promotion, error) {
	if err := s.claimID(id); err != nil {
		return nil, err
	}
	if source == nil || target == nil {
		return nil, fmt.Errorf("promotion requires a source asset and a target repository")
	}
	if tag == "" {
		return nil, fmt.Errorf("promotion tag is required")
	}

	p := &Promotion{
		id:     id,
		source: source,
		target: target,
		tag:    tag,
		stack:  s,
	}
	// the source asset must be built before it can be copied
	p.dependsOn = append(p.dependsOn, source.id)
	s.promotions = append(s.promotions, p)
	return p, nil
}

// AddOutput declares a stack output
func (s *Stack) AddOutput(name, value, description string) {
	s.outputs = append(s.outputs, Output{
		Name:        name,
		Value:       value,
		Description: description,
	})
}

// Outputs returns the declared outputs in declaration order
func (s *Stack) Outputs() []Output {
	return append([]Output(nil), s.outputs...)
}

// Repositories returns the declared repositories
func (s *Stack) Repositories() []*Repository {
	return append([]*Repository(nil), s.repositories...)
}

// ID returns the repository's resource id within its stack
func (r *Repository) ID() string { return r.id }

// RepositoryName returns the ECR repository name
func (r *Repository) RepositoryName() string { return r.name }

// URI returns the durable repository URI
func (r *Repository) URI() string {
	return r.stack.env.RepositoryURI(r.name)
}

// URIForTag returns the durable reference for the given tag
func (r *Repository) URIForTag(tag string) string {
	return fmt.Sprintf("%s:%s", r.URI(), tag)
}

// ID returns the asset's resource id within its stack
func (a *ImageAsset) ID() string { return a.id }

// Directory returns the build context directory
func (a *ImageAsset) Directory() string { return a.directory }

// File returns the build file path, relative to the build context
func (a *ImageAsset) File() string { return a.file }

// Exclude returns the exclusion patterns applied to the build context
func (a *ImageAsset) Exclude() []string { return append([]string(nil), a.exclude...) }

// ID returns the promotion's resource id within its stack
func (p *Promotion) ID() string { return p.id }

// Tag returns the destination tag
func (p *Promotion) Tag() string { return p.tag }

// Target returns the destination repository
func (p *Promotion) Target() *Repository { return p.target }

// DependsOn adds an explicit ordering edge: the promotion must not run until
// the resource with the given id has been applied.
func (p *Promotion) DependsOn(r *Repository) {
	for _, id := range p.dependsOn {
		if id == r.id {
			return
		}
	}
	p.dependsOn = append(p.dependsOn, r.id)
}
