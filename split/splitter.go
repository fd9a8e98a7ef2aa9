package split

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/teranos/quire/config"
	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/logger"
	"github.com/teranos/quire/store"
	"github.com/teranos/quire/xref"
)

// producedBySplitter marks artifacts committed by the split pass
const producedBySplitter = "splitter"

// Splitter runs the post-commit length check and, when an artifact exceeds
// its budget, replaces it with ordered parts plus a navigation index.
type Splitter struct {
	store *store.Store
	index *xref.Index
	db    *sql.DB
	cfg   config.SplitConfig
}

// NewSplitter creates a splitter over the artifact store and reference index
func NewSplitter(s *store.Store, ix *xref.Index, db *sql.DB, cfg config.SplitConfig) *Splitter {
	return &Splitter{store: s, index: ix, db: db, cfg: cfg}
}

// PartResult describes one committed part
type PartResult struct {
	Name    string
	Version int
	Lines   int
	Heading string
	Anchors []string
}

// Result describes one completed split pass over a single artifact
type Result struct {
	Artifact  string
	Version   int
	Budget    int
	Split     bool // false when the artifact fit its budget
	Parts     []PartResult
	IndexName string
}

// Check reports whether the named artifact currently exceeds its budget
func (sp *Splitter) Check(name string) (bool, int, error) {
	a, err := sp.store.Get(name)
	if err != nil {
		return false, 0, err
	}
	budget := sp.cfg.BudgetFor(name)
	return a.Size > budget, budget, nil
}

// Split runs one split pass over the named artifact. An artifact within
// budget is untouched. Splitting is atomic with respect to commits on the
// same name and idempotent: re-running over an unchanged artifact recommits
// identical parts at their existing versions.
//
// A pinned reference whose target would move to a different part aborts the
// pass before anything is written: the artifact stays whole, the conflict is
// flagged for the quality gate, and ErrSplitIntegrity is returned.
func (sp *Splitter) Split(name string) (*Result, error) {
	unlock := sp.store.LockName(name)
	defer unlock()

	a, err := sp.store.Get(name)
	if err != nil {
		return nil, err
	}

	budget := sp.cfg.BudgetFor(name)
	res := &Result{Artifact: name, Version: a.Version, Budget: budget}
	if a.Size <= budget {
		return res, nil
	}

	plan := BuildPlan(name, a.Version, a.Content, budget, sp.cfg.MergeThreshold)
	if len(plan.Parts) <= 1 {
		return res, nil
	}

	anchorPart := plan.AnchorPart()
	if err := sp.checkPins(name, anchorPart); err != nil {
		return nil, err
	}

	// References are patched before parts are written, so every committed
	// part already carries working links
	if err := sp.index.Invalidate(name); err != nil {
		return nil, err
	}

	for i := range plan.Parts {
		part := &plan.Parts[i]
		content := sp.rewriteReferences(name, part.Content(), part.Index, anchorPart)

		partName := PartName(name, part.Index)
		version, err := sp.store.Put(partName, content, producedBySplitter)
		if err != nil {
			return nil, errors.Wrapf(err, "commit part %d of %s", part.Index, name)
		}
		res.Parts = append(res.Parts, PartResult{
			Name:    partName,
			Version: version,
			Lines:   part.Size(),
			Heading: part.Heading,
			Anchors: part.Anchors,
		})

		for _, anchor := range part.Anchors {
			loc := xref.Location{Artifact: name, Part: part.Index, Anchor: anchor}
			if err := sp.index.Register(name+"#"+anchor, loc); err != nil {
				return nil, err
			}
		}
	}

	indexName := IndexName(name)
	if _, err := sp.store.Put(indexName, renderIndex(name, res.Parts), producedBySplitter); err != nil {
		return nil, errors.Wrapf(err, "commit index of %s", name)
	}
	res.IndexName = indexName

	if err := sp.store.Archive(name, a.Version); err != nil {
		return nil, err
	}

	res.Split = true
	logger.Logger.Infow(fmt.Sprintf("split [artifact:%s] into %d parts", name, len(res.Parts)),
		logger.FieldArtifact, name,
		logger.FieldParts, len(res.Parts),
		logger.FieldLines, a.Size,
		logger.FieldBudget, budget,
	)
	return res, nil
}

// checkPins verifies every externally pinned target lands in the part the
// external citation expects. Part 0 pins cite the unsplit root and are
// compatible only with part 1 of a first split.
func (sp *Splitter) checkPins(name string, anchorPart map[string]int) error {
	pins, err := sp.index.Pins(name)
	if err != nil {
		return err
	}
	for _, pin := range pins {
		newPart, ok := anchorPart[pin.Location.Anchor]
		if !ok {
			reason := fmt.Sprintf("pinned anchor #%s no longer exists", pin.Location.Anchor)
			return sp.flagIntegrity(name, pin.Target, reason)
		}
		expected := pin.Location.Part
		if expected == 0 {
			expected = 1
		}
		if newPart != expected {
			reason := fmt.Sprintf("pinned target would move from part %d to part %d", expected, newPart)
			return sp.flagIntegrity(name, pin.Target, reason)
		}
	}
	return nil
}

// flagIntegrity records the conflict for the quality gate and returns the
// split integrity error. The artifact is left whole.
func (sp *Splitter) flagIntegrity(name, target, reason string) error {
	_, err := sp.db.Exec(`
		INSERT INTO split_flags (artifact, target, reason, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(artifact) DO UPDATE SET
			target = excluded.target,
			reason = excluded.reason,
			created_at = excluded.created_at`,
		name, target, reason, time.Now().UTC())
	if err != nil {
		return errors.Wrapf(err, "flag split conflict on %s", name)
	}

	logger.Logger.Warnw(fmt.Sprintf("split of [artifact:%s] blocked by pinned reference", name),
		logger.FieldArtifact, name,
		logger.FieldTarget, target,
	)

	serr := errors.Wrapf(errors.ErrSplitIntegrity, "cannot split %s", name)
	serr = errors.WithDetailf(serr, "target: %s", target)
	serr = errors.WithDetailf(serr, "reason: %s", reason)
	return errors.WithHint(serr, "release the pin or adjust the size budget, then re-run the split")
}

// rewriteReferences patches in-document references in one part: an anchor
// that landed in another part becomes a cross-part link, an anchor in the
// same part keeps its local form. Unknown anchors are left as written and
// surface later through the quality gate.
func (sp *Splitter) rewriteReferences(parent, content string, partIndex int, anchorPart map[string]int) string {
	return refPattern.ReplaceAllStringFunc(content, func(match string) string {
		m := refPattern.FindStringSubmatch(match)
		text, anchor := m[1], m[2]
		target, ok := anchorPart[anchor]
		if !ok || target == partIndex {
			return match
		}
		return fmt.Sprintf("[%s](%s#%s)", text, PartName(parent, target), anchor)
	})
}

// renderIndex produces the navigation index artifact: one line per part
// with its coverage heading, size and prev/next neighbors
func renderIndex(name string, parts []PartResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: part index\n\n", name)
	for i, p := range parts {
		heading := p.Heading
		if heading == "" {
			heading = "(preamble)"
		}
		fmt.Fprintf(&b, "- [%s](%s) (%d lines)", heading, p.Name, p.Lines)
		if i > 0 {
			fmt.Fprintf(&b, " | prev: [%s](%s)", parts[i-1].Name, parts[i-1].Name)
		}
		if i < len(parts)-1 {
			fmt.Fprintf(&b, " | next: [%s](%s)", parts[i+1].Name, parts[i+1].Name)
		}
		b.WriteString("\n")
	}
	return b.String()
}
