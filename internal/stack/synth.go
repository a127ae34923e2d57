package stack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestVersion identifies the synthesis output format
const ManifestVersion = "1.0"

// Manifest is the app-level synthesis index: one entry per stack pointing at
// its template and plan files.
type Manifest struct {
	Version string                   `json:"version"`
	Account string                   `json:"account"`
	Region  string                   `json:"region"`
	Stacks  map[string]ManifestEntry `json:"stacks"`
}

// ManifestEntry locates one stack's synthesized artifacts within the assembly
type ManifestEntry struct {
	Template string `json:"template"`
	Plan     string `json:"plan"`
}

// Assembly is the result of a synthesis pass: a directory containing the
// manifest plus each stack's template and plan.
type Assembly struct {
	Dir      string
	Manifest Manifest
}

// TemplateFileName returns the file name of a stack's synthesized template
func TemplateFileName(stack string) string {
	return stack + ".template.json"
}

// PlanFileName returns the file name of a stack's synthesized plan
func PlanFileName(stack string) string {
	return stack + ".plan.json"
}

// Synth synthesizes every registered stack into dir, creating it if needed.
// Each plan is checked for ordering defects before anything is written, so a
// bad dependency graph fails the whole pass.
func (a *App) Synth(dir string) (*Assembly, error) {
	manifest := Manifest{
		Version: ManifestVersion,
		Account: a.env.Account,
		Region:  a.env.Region,
		Stacks:  map[string]ManifestEntry{},
	}

	type synthesized struct {
		name     string
		template []byte
		plan     []byte
	}

	var results []synthesized
	for _, s := range a.stacks {
		plan := s.Plan()
		if _, err := plan.Ordered(); err != nil {
			return nil, err
		}

		template, err := s.TemplateJSON()
		if err != nil {
			return nil, err
		}
		planJSON, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal plan for stack %s: %w", s.name, err)
		}

		results = append(results, synthesized{name: s.name, template: template, plan: planJSON})
		manifest.Stacks[s.name] = ManifestEntry{
			Template: TemplateFileName(s.name),
			Plan:     PlanFileName(s.name),
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, r := range results {
		if err := os.WriteFile(filepath.Join(dir, TemplateFileName(r.name)), r.template, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write template for stack %s: %w", r.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, PlanFileName(r.name)), r.plan, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write plan for stack %s: %w", r.name, err)
		}
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), manifestJSON, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	return &Assembly{Dir: dir, Manifest: manifest}, nil
}

// ReadPlan loads a synthesized plan from an assembly directory
func ReadPlan(dir, stackName string) (Plan, error) {
	data, err := os.ReadFile(filepath.Join(dir, PlanFileName(stackName)))
	if err != nil {
		return Plan{}, fmt.Errorf("failed to read plan for stack %s: %w", stackName, err)
	}

	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return Plan{}, fmt.Errorf("failed to parse plan for stack %s: %w", stackName, err)
	}
	return plan, nil
}

// ReadTemplate loads a synthesized template body from an assembly directory
func ReadTemplate(dir, stackName string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, TemplateFileName(stackName)))
	if err != nil {
		return "", fmt.Errorf("failed to read template for stack %s: %w", stackName, err)
	}
	return string(data), nil
}
