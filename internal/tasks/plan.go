package tasks

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan is a request and the steps it was split into.
type Plan struct {
	Request string `json:"request,omitempty" yaml:"request,omitempty"`
	Steps   []Step `json:"steps" yaml:"steps"`
}

// LoadPlanFile reads a plan from YAML or JSON. The document is either a
// mapping with request and steps or a bare list of steps.
func LoadPlanFile(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a plan document.
func ParsePlan(data []byte) (Plan, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if len(doc.Content) == 0 {
		return Plan{}, fmt.Errorf("%w: empty document", ErrInvalidPlan)
	}

	var p Plan
	switch root := doc.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&p.Steps); err != nil {
			return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
		}
	case yaml.MappingNode:
		if err := root.Decode(&p); err != nil {
			return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
		}
	default:
		return Plan{}, fmt.Errorf("%w: expected a list or a mapping", ErrInvalidPlan)
	}
	if len(p.Steps) == 0 {
		return Plan{}, fmt.Errorf("%w: no steps", ErrInvalidPlan)
	}
	steps, err := normalizeSteps(p.Steps)
	if err != nil {
		return Plan{}, err
	}
	p.Steps = steps
	return p, nil
}

// YAML renders the plan for display or saving.
func (p Plan) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
