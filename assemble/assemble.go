package assemble

import (
	"fmt"
	"strings"

	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/logger"
	"github.com/teranos/quire/split"
	"github.com/teranos/quire/store"
)

// SectionSpec maps one deliverable section to the artifact that fills it
type SectionSpec struct {
	Title    string `toml:"title" yaml:"title"`
	Artifact string `toml:"artifact" yaml:"artifact"`
	Required bool   `toml:"required" yaml:"required"`
}

// Mapping is the deliverable layout: ordered sections, each backed by an
// artifact name
type Mapping struct {
	Name     string        `toml:"name" yaml:"name"`
	Sections []SectionSpec `toml:"sections" yaml:"sections"`
}

// Validate rejects an empty or ambiguous mapping
func (m Mapping) Validate() error {
	if m.Name == "" {
		return errors.New("mapping name cannot be empty")
	}
	if len(m.Sections) == 0 {
		return errors.Newf("mapping %s has no sections", m.Name)
	}
	seen := make(map[string]bool)
	for _, s := range m.Sections {
		if s.Artifact == "" {
			return errors.Newf("mapping %s: section %q has no artifact", m.Name, s.Title)
		}
		if seen[s.Artifact] {
			return errors.Wrapf(errors.ErrConflict, "mapping %s: artifact %s mapped twice", m.Name, s.Artifact)
		}
		seen[s.Artifact] = true
	}
	return nil
}

// Deliverable is an assembled document. Assembly always completes; gaps are
// marked in place and reported, never silently dropped.
type Deliverable struct {
	Name    string
	Content string
	Missing []string // required artifacts that were absent
}

// SectionStatus is the per-section readiness verdict: a section is ready
// only when its artifact was present and every check touching it passed
type SectionStatus struct {
	Title        string
	Artifact     string
	Ready        bool
	Missing      bool
	FailedChecks []string
}

// ReadinessReport says whether the deliverable is ready or conditional.
// Conditional means complete but carrying failed checks or gaps a human
// should review.
type ReadinessReport struct {
	RunID    string
	Ready    bool
	Missing  []string
	Sections []SectionStatus
	Checks   []CheckResult
}

// FailedChecks returns only the failing check results
func (r *ReadinessReport) FailedChecks() []CheckResult {
	var failed []CheckResult
	for _, c := range r.Checks {
		if !c.Pass {
			failed = append(failed, c)
		}
	}
	return failed
}

// Assembler compiles artifacts into deliverables and gates them
type Assembler struct {
	store *store.Store
	gate  *Gate
}

// NewAssembler creates an assembler over the artifact store and quality gate
func NewAssembler(s *store.Store, gate *Gate) *Assembler {
	return &Assembler{store: s, gate: gate}
}

// Assemble builds the deliverable for a mapping and runs the quality gate
// over every artifact it pulled in. A missing optional artifact is skipped;
// a missing required one leaves a marked gap and degrades the report.
func (as *Assembler) Assemble(runID string, m Mapping) (*Deliverable, *ReadinessReport, error) {
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}

	d := &Deliverable{Name: m.Name}
	var gated []*store.Artifact
	var sections []string
	owners := make(map[string][]int) // physical artifact name -> section indices
	statuses := make([]SectionStatus, len(m.Sections))

	for i, spec := range m.Sections {
		statuses[i] = SectionStatus{Title: spec.Title, Artifact: spec.Artifact, Ready: true}

		artifacts, content, err := as.resolve(spec.Artifact)
		if errors.IsNotFoundError(err) {
			if spec.Required {
				d.Missing = append(d.Missing, spec.Artifact)
				statuses[i].Missing = true
				statuses[i].Ready = false
				sections = append(sections, fmt.Sprintf("<!-- missing required section: %s (%s) -->\n", spec.Title, spec.Artifact))
			}
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		for _, a := range artifacts {
			owners[a.Name] = append(owners[a.Name], i)
		}
		gated = append(gated, artifacts...)
		sections = append(sections, content)
	}
	d.Content = strings.Join(sections, "\n")

	checks, err := as.gate.Run(runID, gated)
	if err != nil {
		return nil, nil, err
	}
	for _, c := range checks {
		if c.Pass {
			continue
		}
		for _, i := range owners[c.Artifact] {
			statuses[i].Ready = false
			statuses[i].FailedChecks = append(statuses[i].FailedChecks, c.Check)
		}
	}

	report := &ReadinessReport{
		RunID:    runID,
		Missing:  d.Missing,
		Sections: statuses,
		Checks:   checks,
	}
	report.Ready = len(d.Missing) == 0 && len(report.FailedChecks()) == 0

	logger.Logger.Infow(fmt.Sprintf("assembled %s: ready=%t, %d checks", m.Name, report.Ready, len(checks)),
		logger.FieldRunID, runID,
		logger.FieldCount, len(checks),
		logger.FieldStatus, readiness(report.Ready),
	)
	return d, report, nil
}

// resolve fetches one mapped artifact. A split artifact is stitched back
// from its ordered parts; the physical parts are what the gate inspects.
func (as *Assembler) resolve(name string) ([]*store.Artifact, string, error) {
	head, err := as.store.Get(name)
	if err != nil {
		return nil, "", err
	}
	if !head.Archived {
		return []*store.Artifact{head}, head.Content, nil
	}

	var parts []*store.Artifact
	var content strings.Builder
	for i := 1; ; i++ {
		part, err := as.store.Get(split.PartName(name, i))
		if errors.IsNotFoundError(err) {
			break
		}
		if err != nil {
			return nil, "", err
		}
		parts = append(parts, part)
		content.WriteString(part.Content)
	}
	if len(parts) == 0 {
		// Archived but never split: use the head as-is
		return []*store.Artifact{head}, head.Content, nil
	}
	return parts, content.String(), nil
}

func readiness(ready bool) string {
	if ready {
		return "ready"
	}
	return "conditional"
}
