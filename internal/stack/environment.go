package stack

import "fmt"

// Environment identifies the fixed AWS account and region a stack deploys into.
// It is injected into the App by the caller rather than read from a global.
type Environment struct {
	Account string
	Region  string
}

// RegistryHost returns the ECR registry hostname for the environment
func (e Environment) RegistryHost() string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", e.Account, e.Region)
}

// RepositoryURI returns the full ECR repository URI for the given repository name
func (e Environment) RepositoryURI(name string) string {
	return fmt.Sprintf("%s/%s", e.RegistryHost(), name)
}

func (e Environment) String() string {
	return fmt.Sprintf("%s/%s", e.Account, e.Region)
}
