package stack

import (
	"fmt"
	"slices"
	"sort"

	apperrors "github.com/savaki/image-deployer/internal/errors"
)

// StepKind identifies what a plan step does
type StepKind string

const (
	StepKindRegistry StepKind = "registry"
	StepKindBuild    StepKind = "build"
	StepKindPromote  StepKind = "promote"
	StepKindOutput   StepKind = "output"
)

// Step is one unit of work in a stack's deployment plan. Ordering between
// steps is carried entirely by DependsOn edges; the engine derives an
// execution order from the edges and never reorders on its own.
type Step struct {
	Name      string   `json:"name"`
	Kind      StepKind `json:"kind"`
	DependsOn []string `json:"depends_on,omitempty"`

	// registry
	Repository    string `json:"repository,omitempty"`
	RepositoryURI string `json:"repository_uri,omitempty"`

	// build
	Directory string   `json:"directory,omitempty"`
	File      string   `json:"file,omitempty"`
	Exclude   []string `json:"exclude,omitempty"`

	// promote
	Source string `json:"source,omitempty"` // name of the build step producing the image
	Tag    string `json:"tag,omitempty"`

	// output
	Outputs []Output `json:"outputs,omitempty"`
}

// Plan is the synthesized deployment plan for one stack
type Plan struct {
	Stack    string `json:"stack"`
	Account  string `json:"account"`
	Region   string `json:"region"`
	Template string `json:"template"`
	Steps    []Step `json:"steps"`
}

// Plan synthesizes the stack's deployment plan. Each repository becomes a
// registry step, each asset a build step, each promotion a promote step
// carrying its declared edges, and the stack outputs a single trailing output
// step that depends on every promotion.
func (s *Stack) Plan() Plan {
	var steps []Step

	for _, r := range s.repositories {
		steps = append(steps, Step{
			Name:          r.id,
			Kind:          StepKindRegistry,
			Repository:    r.name,
			RepositoryURI: r.URI(),
		})
	}

	for _, a := range s.assets {
		steps = append(steps, Step{
			Name:      a.id,
			Kind:      StepKindBuild,
			Directory: a.directory,
			File:      a.file,
			Exclude:   a.Exclude(),
		})
	}

	var promotionIDs []string
	for _, p := range s.promotions {
		steps = append(steps, Step{
			Name:          p.id,
			Kind:          StepKindPromote,
			DependsOn:     append([]string(nil), p.dependsOn...),
			Repository:    p.target.name,
			RepositoryURI: p.target.URI(),
			Source:        p.source.id,
			Tag:           p.tag,
		})
		promotionIDs = append(promotionIDs, p.id)
	}

	if len(s.outputs) > 0 {
		steps = append(steps, Step{
			Name:      "Outputs",
			Kind:      StepKindOutput,
			DependsOn: promotionIDs,
			Outputs:   s.Outputs(),
		})
	}

	return Plan{
		Stack:    s.name,
		Account:  s.env.Account,
		Region:   s.env.Region,
		Template: TemplateFileName(s.name),
		Steps:    steps,
	}
}

// Ordered returns the plan's steps in a valid execution order: every step
// appears after all steps it depends on. Among ready steps, declaration order
// is preserved so repeated synthesis produces identical output. Unknown edges
// and cycles are construction-time defects.
func (p Plan) Ordered() ([]Step, error) {
	index := map[string]int{}
	for i, step := range p.Steps {
		index[step.Name] = i
	}

	indegree := make([]int, len(p.Steps))
	dependents := map[string][]int{}
	for i, step := range p.Steps {
		for _, dep := range step.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %s -> %s", apperrors.ErrUnknownDependency, step.Name, dep)
			}
			indegree[i]++
			dependents[p.Steps[j].Name] = append(dependents[p.Steps[j].Name], i)
		}
	}

	var ready []int
	for i := range p.Steps {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	var ordered []Step
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]

		ordered = append(ordered, p.Steps[i])
		for _, j := range dependents[p.Steps[i].Name] {
			indegree[j]--
			if indegree[j] == 0 {
				ready = append(ready, j)
			}
		}
	}

	if len(ordered) != len(p.Steps) {
		return nil, fmt.Errorf("%w: stack %s", apperrors.ErrPlanCycle, p.Stack)
	}
	return ordered, nil
}

// Step returns the named step
func (p Plan) Step(name string) (Step, bool) {
	i := slices.IndexFunc(p.Steps, func(s Step) bool { return s.Name == name })
	if i < 0 {
		return Step{}, false
	}
	return p.Steps[i], true
}
