// Package stack provides the declarative model for image deployment stacks.
//
// An App holds a set of stacks targeting a single account/region pair. Each
// stack declares an ECR repository, an image asset built from local source, a
// promotion of that asset into the repository, and the output reference.
// Synthesis turns the declarations into a CloudFormation template plus a
// deployment plan per stack; nothing talks to AWS until the plan is executed.
package stack

import (
	"fmt"
	"maps"

	apperrors "github.com/savaki/image-deployer/internal/errors"
)

// App is the root of the construct tree: a fixed target environment, the
// context values supplied at invocation time, and the registered stacks.
type App struct {
	env     Environment
	context map[string]string
	stacks  []*Stack
	byName  map[string]*Stack
}

// AppOption configures an App
type AppOption func(*App)

// WithContext merges the given key/value pairs into the app context.
// Later options win on key collisions.
func WithContext(values map[string]string) AppOption {
	return func(a *App) {
		maps.Copy(a.context, values)
	}
}

// NewApp creates a new App targeting the given environment
func NewApp(env Environment, opts ...AppOption) *App {
	app := &App{
		env:     env,
		context: map[string]string{},
		byName:  map[string]*Stack{},
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Env returns the fixed target environment
func (a *App) Env() Environment {
	return a.env
}

// Context returns the context value for key, if one was supplied
func (a *App) Context(key string) (string, bool) {
	v, ok := a.context[key]
	return v, ok
}

// ContextOrDefault returns the context value for key, or def when absent or empty
func (a *App) ContextOrDefault(key, def string) string {
	if v, ok := a.context[key]; ok && v != "" {
		return v
	}
	return def
}

// NewStack registers a new, empty stack with the app. Stack names must be
// unique within an app.
func (a *App) NewStack(name string) (*Stack, error) {
	if name == "" {
		return nil, fmt.Errorf("stack name is required")
	}
	if _, exists := a.byName[name]; exists {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrDuplicateStack, name)
	}

	s := &Stack{
		name: name,
		env:  a.env,
		ids:  map[string]struct{}{},
	}
	a.stacks = append(a.stacks, s)
	a.byName[name] = s
	return s, nil
}

// Stacks returns the registered stacks in registration order
func (a *App) Stacks() []*Stack {
	return a.stacks
}

// Stack returns the stack with the given name
func (a *App) Stack(name string) (*Stack, error) {
	s, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownStack, name)
	}
	return s, nil
}
