package di

import "github.com/savaki/image-deployer/internal/stack"

// Environment is the injected deployment target
type Environment = stack.Environment

// TableName names the DynamoDB deployment history table
type TableName string

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithEnvironment sets the deployment target account/region
func WithEnvironment(env Environment) Option {
	return func(opts *options) {
		opts.environment = env
	}
}

// WithTableName overrides the default deployment history table name
func WithTableName(name string) Option {
	return func(opts *options) {
		opts.tableName = TableName(name)
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	environment Environment
	tableName   TableName
	providers   []any
}
