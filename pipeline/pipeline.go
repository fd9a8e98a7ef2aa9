// Package pipeline loads pipeline definitions from TOML or YAML files and
// builds the stage registry they declare. A definition names its stages and
// the artifact kinds flowing between them; execution order is never part of
// the file.
package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/teranos/quire/assemble"
	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/graph"
)

// StageDef is one stage declaration in a pipeline file
type StageDef struct {
	ID        string   `toml:"id" yaml:"id"`
	Handler   string   `toml:"handler" yaml:"handler"`
	Inputs    []string `toml:"inputs" yaml:"inputs"`
	Outputs   []string `toml:"outputs" yaml:"outputs"`
	Timeout   string   `toml:"timeout" yaml:"timeout"`
	Abortable bool     `toml:"abortable" yaml:"abortable"`
	Notes     string   `toml:"notes" yaml:"notes"`
}

// Definition is a parsed pipeline file
type Definition struct {
	Name        string            `toml:"name" yaml:"name"`
	Stages      []StageDef        `toml:"stages" yaml:"stages"`
	Deliverable *assemble.Mapping `toml:"deliverable" yaml:"deliverable"`
}

// Load reads a pipeline definition, picking the decoder from the file
// extension: .toml, or .yaml/.yml
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read pipeline definition %s", path)
	}

	var def Definition
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &def); err != nil {
			return nil, errors.Wrapf(err, "parse pipeline definition %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, errors.Wrapf(err, "parse pipeline definition %s", path)
		}
	default:
		return nil, errors.Newf("unsupported pipeline definition format %q, use .toml or .yaml", ext)
	}

	if err := def.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid pipeline definition %s", path)
	}
	return &def, nil
}

// Validate checks the declaration before any graph is built
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New("pipeline name cannot be empty")
	}
	if len(d.Stages) == 0 {
		return errors.Newf("pipeline %s declares no stages", d.Name)
	}
	for _, s := range d.Stages {
		if s.ID == "" {
			return errors.Newf("pipeline %s: stage with empty id", d.Name)
		}
		if s.Handler == "" {
			return errors.Newf("pipeline %s: stage %s has no handler", d.Name, s.ID)
		}
		if len(s.Outputs) == 0 {
			return errors.Newf("pipeline %s: stage %s produces nothing", d.Name, s.ID)
		}
		if s.Timeout != "" {
			if _, err := time.ParseDuration(s.Timeout); err != nil {
				return errors.Wrapf(err, "pipeline %s: stage %s timeout", d.Name, s.ID)
			}
		}
	}
	if d.Deliverable != nil {
		if err := d.Deliverable.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Build constructs the stage registry and validates the resulting graph.
// A declared cycle surfaces here as ErrDependencyCycle, before any run
// record exists.
func (d *Definition) Build() (*graph.Registry, error) {
	registry := graph.NewRegistry()
	for _, s := range d.Stages {
		stage := graph.Stage{
			ID:        graph.StageID(s.ID),
			Handler:   s.Handler,
			Abortable: s.Abortable,
			Notes:     s.Notes,
		}
		for _, in := range s.Inputs {
			stage.Inputs = append(stage.Inputs, graph.Kind(in))
		}
		for _, out := range s.Outputs {
			stage.Outputs = append(stage.Outputs, graph.Kind(out))
		}
		if s.Timeout != "" {
			timeout, err := time.ParseDuration(s.Timeout)
			if err != nil {
				return nil, errors.Wrapf(err, "stage %s timeout", s.ID)
			}
			stage.Timeout = timeout
		}
		if err := registry.Register(stage); err != nil {
			return nil, err
		}
	}
	if err := registry.Validate(); err != nil {
		return nil, err
	}
	return registry, nil
}
