// Package pipeline parses the project.yaml action DAG the DAG resolver
// consumes. spec.md treats the pipeline DSL itself as an external
// collaborator ("the core does not define the project/pipeline DSL");
// this package is that external resolver's contract, not core logic.
package pipeline

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ActionSpec is one action entry in project.yaml.
type ActionSpec struct {
	Run             string   `yaml:"run"`
	Needs           []string `yaml:"needs"`
	Outputs         Outputs  `yaml:"outputs"`
	IsDatabaseAction bool    `yaml:"-"`
}

// Outputs mirrors Job.OutputSpec's privacy-level grouping, as written
// in project.yaml.
type Outputs struct {
	HighlySensitive     map[string]string `yaml:"highly_sensitive"`
	ModeratelySensitive map[string]string `yaml:"moderately_sensitive"`
	MinimallySensitive  map[string]string `yaml:"minimally_sensitive"`
}

// rawProject is the on-disk project.yaml shape. A `config` key on an
// action (decoded into DatabaseName) marks it as requiring database
// access downstream (the resolver maps that onto Job.RequiresDB,
// spec.md §4.2 step 2).
type rawProject struct {
	Version int `yaml:"version"`
	Actions map[string]struct {
		Run          string   `yaml:"run"`
		Needs        []string `yaml:"needs"`
		Outputs      Outputs  `yaml:"outputs"`
		DatabaseName *string  `yaml:"config,omitempty"`
	} `yaml:"actions"`
}

// Project is the parsed result: every action name mapped to its spec,
// ready for the DAG resolver (spec.md §4.2 step 2's "all_actions and
// per-action {run, needs, outputs, is_database_action}").
type Project struct {
	Actions map[string]ActionSpec
}

// ActionNames returns every action name in the project ("all_actions").
func (p *Project) ActionNames() []string {
	names := make([]string, 0, len(p.Actions))
	for name := range p.Actions {
		names = append(names, name)
	}
	return names
}

// Parse parses project.yaml content into a Project.
func Parse(data []byte) (*Project, error) {
	var raw rawProject
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse project.yaml: %w", err)
	}

	project := &Project{Actions: make(map[string]ActionSpec, len(raw.Actions))}
	for name, a := range raw.Actions {
		if a.Run == "" {
			return nil, fmt.Errorf("project.yaml: action %q has no run command", name)
		}
		project.Actions[name] = ActionSpec{
			Run:              a.Run,
			Needs:            a.Needs,
			Outputs:          a.Outputs,
			IsDatabaseAction: a.DatabaseName != nil,
		}
	}

	if err := project.validateDAG(); err != nil {
		return nil, err
	}

	return project, nil
}

// validateDAG rejects project.yaml files whose needs graph is cyclic or
// references an undefined action; the resolver assumes an acyclic
// graph when walking `needs` transitively (spec.md §4.2 step 5).
func (p *Project) validateDAG() error {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[string]int, len(p.Actions))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("project.yaml: dependency cycle detected: %v -> %s", path, name)
		}
		action, ok := p.Actions[name]
		if !ok {
			return fmt.Errorf("project.yaml: action %q needs undefined action %q", path[len(path)-1], name)
		}
		state[name] = visiting
		for _, dep := range action.Needs {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = visited
		return nil
	}

	for name := range p.Actions {
		if err := visit(name, []string{"<root>"}); err != nil {
			return err
		}
	}
	return nil
}
