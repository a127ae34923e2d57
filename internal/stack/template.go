package stack

import (
	"encoding/json"
	"fmt"
)

// Template is a CloudFormation template in its JSON object form
type Template struct {
	AWSTemplateFormatVersion string                      `json:"AWSTemplateFormatVersion"`
	Description              string                      `json:"Description,omitempty"`
	Resources                map[string]TemplateResource `json:"Resources"`
	Outputs                  map[string]TemplateOutput   `json:"Outputs,omitempty"`
}

// TemplateResource is a single CloudFormation resource declaration
type TemplateResource struct {
	Type                string         `json:"Type"`
	DeletionPolicy      string         `json:"DeletionPolicy,omitempty"`
	UpdateReplacePolicy string         `json:"UpdateReplacePolicy,omitempty"`
	Properties          map[string]any `json:"Properties,omitempty"`
}

// TemplateOutput is a single CloudFormation output declaration
type TemplateOutput struct {
	Value       string `json:"Value"`
	Description string `json:"Description,omitempty"`
}

// Template synthesizes the stack's CloudFormation template. Repositories are
// the only resources that live in CloudFormation; image builds and promotions
// are deploy-time steps recorded in the plan. Every repository is emitted with
// a Retain deletion policy and mutable tags, regardless of inputs.
func (s *Stack) Template() Template {
	resources := map[string]TemplateResource{}
	for _, r := range s.repositories {
		resources[r.id] = TemplateResource{
			Type:                "AWS::ECR::Repository",
			DeletionPolicy:      "Retain",
			UpdateReplacePolicy: "Retain",
			Properties: map[string]any{
				"RepositoryName":     r.name,
				"ImageTagMutability": "MUTABLE",
			},
		}
	}

	outputs := map[string]TemplateOutput{}
	for _, o := range s.outputs {
		outputs[o.Name] = TemplateOutput{
			Value:       o.Value,
			Description: o.Description,
		}
	}

	return Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Description:              fmt.Sprintf("Image deployment stack %s (%s)", s.name, s.env),
		Resources:                resources,
		Outputs:                  outputs,
	}
}

// TemplateJSON renders the template as indented JSON
func (s *Stack) TemplateJSON() ([]byte, error) {
	data, err := json.MarshalIndent(s.Template(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template for stack %s: %w", s.name, err)
	}
	return data, nil
}
