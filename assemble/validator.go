// Package assemble compiles pipeline artifacts into an ordered deliverable
// and runs the quality gate over them. Assembly always completes: a failing
// check degrades the readiness report to conditional instead of blocking the
// deliverable.
package assemble

import (
	"database/sql"
	"fmt"

	"github.com/teranos/quire/config"
	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/split"
	"github.com/teranos/quire/store"
	"github.com/teranos/quire/xref"
)

// Validator is one pluggable quality check. Validate inspects a single
// artifact and returns pass plus human-readable findings; it must not
// mutate anything.
type Validator interface {
	Name() string
	Validate(a *store.Artifact) (bool, []string)
}

// ValidatorFunc adapts a named function to the Validator interface
type ValidatorFunc struct {
	CheckName string
	Fn        func(a *store.Artifact) (bool, []string)
}

func (v ValidatorFunc) Name() string { return v.CheckName }

func (v ValidatorFunc) Validate(a *store.Artifact) (bool, []string) { return v.Fn(a) }

// ValidatorRegistry holds the ordered set of checks the gate runs
type ValidatorRegistry struct {
	validators []Validator
	byName     map[string]bool
}

// NewValidatorRegistry creates an empty validator registry
func NewValidatorRegistry() *ValidatorRegistry {
	return &ValidatorRegistry{byName: make(map[string]bool)}
}

// Register appends a validator. Names must be unique.
func (r *ValidatorRegistry) Register(v Validator) error {
	if v == nil || v.Name() == "" {
		return errors.New("validator must have a name")
	}
	if r.byName[v.Name()] {
		return errors.Wrapf(errors.ErrConflict, "validator %s already registered", v.Name())
	}
	r.byName[v.Name()] = true
	r.validators = append(r.validators, v)
	return nil
}

// Validators returns the registered checks in registration order
func (r *ValidatorRegistry) Validators() []Validator {
	return r.validators
}

// ReferenceValidator checks that every cross-reference cited by an artifact
// resolves through the cross-reference index. Local anchors must exist in
// the artifact itself; qualified targets must resolve in the index.
type ReferenceValidator struct {
	index *xref.Index
}

// NewReferenceValidator creates the reference resolvability check
func NewReferenceValidator(ix *xref.Index) *ReferenceValidator {
	return &ReferenceValidator{index: ix}
}

func (v *ReferenceValidator) Name() string { return "references_resolve" }

func (v *ReferenceValidator) Validate(a *store.Artifact) (bool, []string) {
	anchors := make(map[string]bool)
	for _, anchor := range split.ContentAnchors(a.Content) {
		anchors[anchor] = true
	}

	var findings []string
	for _, ref := range split.References(a.Content) {
		if !anchors[ref] {
			findings = append(findings, fmt.Sprintf("unresolved reference #%s", ref))
		}
	}
	for _, target := range split.QualifiedReferences(a.Content) {
		if _, err := v.index.Resolve(target); err != nil {
			findings = append(findings, fmt.Sprintf("unresolved cross-reference %s", target))
		}
	}
	return len(findings) == 0, findings
}

// BudgetValidator checks that an artifact respects its size budget and
// carries no standing split conflict flag
type BudgetValidator struct {
	db  *sql.DB
	cfg config.SplitConfig
}

// NewBudgetValidator creates the size-budget check
func NewBudgetValidator(db *sql.DB, cfg config.SplitConfig) *BudgetValidator {
	return &BudgetValidator{db: db, cfg: cfg}
}

func (v *BudgetValidator) Name() string { return "size_budget" }

func (v *BudgetValidator) Validate(a *store.Artifact) (bool, []string) {
	var findings []string

	budget := v.cfg.BudgetFor(a.Name)
	if a.Size > budget && !a.Archived {
		findings = append(findings, fmt.Sprintf("%d lines exceeds budget of %d", a.Size, budget))
	}

	var target, reason string
	err := v.db.QueryRow(
		`SELECT target, reason FROM split_flags WHERE artifact = ?`, a.Name,
	).Scan(&target, &reason)
	if err == nil {
		findings = append(findings, fmt.Sprintf("split blocked by pinned %s: %s", target, reason))
	}

	return len(findings) == 0, findings
}

// NonEmptyValidator checks that a required artifact has content
type NonEmptyValidator struct{}

func (NonEmptyValidator) Name() string { return "non_empty" }

func (NonEmptyValidator) Validate(a *store.Artifact) (bool, []string) {
	if a.Size == 0 {
		return false, []string{"artifact is empty"}
	}
	return true, nil
}
