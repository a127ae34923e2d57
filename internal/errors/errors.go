package errors

import "errors"

var (
	ErrDuplicateStack        = errors.New("duplicate stack name")
	ErrUnknownStack          = errors.New("unknown stack")
	ErrInvalidRepositoryName = errors.New("repository name must be lowercase")
	ErrDuplicateResource     = errors.New("duplicate resource id")
	ErrUnknownDependency     = errors.New("step depends on unknown step")
	ErrPlanCycle             = errors.New("deployment plan contains a cycle")
	ErrBuildFileNotFound     = errors.New("build file not found in build context")
	ErrEmptyBuildContext     = errors.New("build context contains no files")
)
