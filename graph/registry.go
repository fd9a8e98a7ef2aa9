package graph

import (
	"github.com/teranos/quire/errors"
)

// Registry holds the static declaration of stages for one pipeline.
// Register stages, then Validate() before any execution: cycles are rejected
// up front, never discovered mid-run.
type Registry struct {
	stages    []*Stage
	byID      map[StageID]*Stage
	producers map[Kind]StageID // each kind has exactly one producing stage
}

// NewRegistry creates an empty stage registry
func NewRegistry() *Registry {
	return &Registry{
		byID:      make(map[StageID]*Stage),
		producers: make(map[Kind]StageID),
	}
}

// Register adds a stage with its declared input/output kinds.
// Duplicate stage ids and duplicate output kinds are rejected immediately;
// cycle detection happens in Validate once all stages are registered.
func (r *Registry) Register(stage Stage) error {
	if stage.ID == "" {
		return errors.New("stage id cannot be empty")
	}
	if _, exists := r.byID[stage.ID]; exists {
		return errors.Wrapf(errors.ErrConflict, "stage %q already registered", stage.ID)
	}
	for _, kind := range stage.Outputs {
		if producer, exists := r.producers[kind]; exists {
			return errors.Wrapf(errors.ErrConflict,
				"output kind %q already produced by stage %q", kind, producer)
		}
	}

	stage.seq = len(r.stages)
	s := &stage
	r.stages = append(r.stages, s)
	r.byID[stage.ID] = s
	for _, kind := range stage.Outputs {
		r.producers[kind] = stage.ID
	}
	return nil
}

// Stages returns all registered stages in registration order
func (r *Registry) Stages() []Stage {
	out := make([]Stage, len(r.stages))
	for i, s := range r.stages {
		out[i] = *s
	}
	return out
}

// Stage returns the stage with the given id
func (r *Registry) Stage(id StageID) (Stage, error) {
	s, ok := r.byID[id]
	if !ok {
		return Stage{}, errors.NewNotFoundError("stage %q", id)
	}
	return *s, nil
}

// Producer returns the stage that produces the given artifact kind.
// A kind with no producer is a pipeline input supplied from outside.
func (r *Registry) Producer(kind Kind) (StageID, bool) {
	id, ok := r.producers[kind]
	return id, ok
}

// Edges derives the dependency edges from stage declarations: one edge per
// (producer, consumer, kind) where the consumer declares an input kind some
// registered stage produces.
func (r *Registry) Edges() []Edge {
	var edges []Edge
	for _, consumer := range r.stages {
		for _, kind := range consumer.Inputs {
			if producer, ok := r.producers[kind]; ok {
				edges = append(edges, Edge{Producer: producer, Consumer: consumer.ID, Kind: kind})
			}
		}
	}
	return edges
}

// Validate checks the acyclic invariant. Fails fast with ErrDependencyCycle
// naming the offending cycle before any execution can begin.
func (r *Registry) Validate() error {
	_, err := r.Resolve()
	return err
}
