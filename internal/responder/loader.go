package responder

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TriggerFile is the on-disk trigger table format.
type TriggerFile struct {
	Triggers []TriggerSpec `yaml:"triggers"`
}

// TriggerSpec declares one trigger. Steps share StepDelay unless a step sets
// its own delay.
type TriggerSpec struct {
	Name        string        `yaml:"name"`
	Phrase      string        `yaml:"phrase"`
	Workflow    string        `yaml:"workflow,omitempty"`
	StepDelay   time.Duration `yaml:"step_delay,omitempty"`
	Steps       []StepSpec    `yaml:"steps,omitempty"`
	CompleteKPI string        `yaml:"complete_kpi,omitempty"`
	Evidence    string        `yaml:"evidence,omitempty"`
	Notify      string        `yaml:"notify,omitempty"`
}

// StepSpec is a scripted message. A bare string in YAML is accepted too.
type StepSpec struct {
	Text  string        `yaml:"text"`
	Delay time.Duration `yaml:"delay,omitempty"`
}

// UnmarshalYAML accepts either a scalar string or a mapping.
func (s *StepSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Text = node.Value
		return nil
	}
	type plain StepSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = StepSpec(p)
	return nil
}

// ParseTable decodes and validates a trigger table.
func ParseTable(data []byte) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("responder: trigger table is empty")
	}
	var file TriggerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("responder: decode triggers: %w", err)
	}
	triggers := make([]Trigger, 0, len(file.Triggers))
	seen := map[string]struct{}{}
	for i, spec := range file.Triggers {
		trig, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("responder: triggers[%d]: %w", i, err)
		}
		if _, dup := seen[trig.Name]; dup {
			return nil, fmt.Errorf("responder: triggers[%d]: duplicate name %s", i, trig.Name)
		}
		seen[trig.Name] = struct{}{}
		triggers = append(triggers, trig)
	}
	return NewTable(triggers...), nil
}

// LoadTable reads a trigger table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("responder: read %s: %w", path, err)
	}
	table, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

func (spec TriggerSpec) build() (Trigger, error) {
	phrase := strings.TrimSpace(spec.Phrase)
	if phrase == "" {
		return Trigger{}, fmt.Errorf("phrase is required")
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = strings.TrimSpace(spec.Workflow)
	}
	if name == "" {
		return Trigger{}, fmt.Errorf("name is required")
	}
	if spec.StepDelay < 0 {
		return Trigger{}, fmt.Errorf("step_delay must be >= 0")
	}
	steps := make([]Step, 0, len(spec.Steps))
	for i, s := range spec.Steps {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			return Trigger{}, fmt.Errorf("steps[%d]: text is required", i)
		}
		delay := s.Delay
		if delay == 0 {
			delay = spec.StepDelay
		}
		if delay < 0 {
			return Trigger{}, fmt.Errorf("steps[%d]: delay must be >= 0", i)
		}
		steps = append(steps, Step{Text: text, Delay: delay})
	}
	workflow := strings.TrimSpace(spec.Workflow)
	if workflow == "" {
		workflow = name
	}
	return Trigger{
		Name:  name,
		Match: ExactPhrase(phrase),
		Effect: Effect{
			Workflow:    workflow,
			Steps:       steps,
			CompleteKPI: KPISelector(strings.TrimSpace(spec.CompleteKPI)),
			Evidence:    spec.Evidence,
			Notify:      strings.TrimSpace(spec.Notify),
		},
	}, nil
}
