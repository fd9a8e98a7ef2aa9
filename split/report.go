package split

import (
	"database/sql"
	"time"

	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/logger"
)

// Flag is a recorded split conflict: a pinned reference blocked the split
// and the artifact was left over budget.
type Flag struct {
	Artifact  string
	Target    string
	Reason    string
	CreatedAt time.Time
}

// Report is the split state of one artifact: whether it is currently split,
// its parts, and any standing conflict flag.
type Report struct {
	Artifact   string
	Budget     int
	Lines      int
	OverBudget bool
	Parts      []PartResult
	Flag       *Flag
}

// Flags returns every standing split conflict, ordered by artifact
func (sp *Splitter) Flags() ([]Flag, error) {
	rows, err := sp.db.Query(
		`SELECT artifact, target, reason, created_at FROM split_flags ORDER BY artifact`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list split flags")
	}
	defer rows.Close()

	var flags []Flag
	for rows.Next() {
		var f Flag
		if err := rows.Scan(&f.Artifact, &f.Target, &f.Reason, &f.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan split flag")
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

// ClearFlag drops the standing conflict for one artifact, called after the
// pin is released or the budget adjusted
func (sp *Splitter) ClearFlag(artifact string) error {
	res, err := sp.db.Exec(`DELETE FROM split_flags WHERE artifact = ?`, artifact)
	if err != nil {
		return errors.Wrapf(err, "failed to clear split flag of %s", artifact)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "clear flag rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("split flag for %s", artifact)
	}
	return nil
}

// ReportFor returns the split state of one artifact
func (sp *Splitter) ReportFor(name string) (*Report, error) {
	a, err := sp.store.Get(name)
	if err != nil {
		return nil, err
	}

	budget := sp.cfg.BudgetFor(name)
	r := &Report{
		Artifact:   name,
		Budget:     budget,
		Lines:      a.Size,
		OverBudget: a.Size > budget,
	}

	for i := 1; ; i++ {
		part, err := sp.store.Get(PartName(name, i))
		if errors.IsNotFoundError(err) {
			break
		}
		if err != nil {
			return nil, err
		}
		r.Parts = append(r.Parts, PartResult{
			Name:    part.Name,
			Version: part.Version,
			Lines:   part.Size,
			Anchors: Anchors(splitLines(part.Content)),
		})
	}

	var f Flag
	err = sp.db.QueryRow(
		`SELECT artifact, target, reason, created_at FROM split_flags WHERE artifact = ?`,
		name,
	).Scan(&f.Artifact, &f.Target, &f.Reason, &f.CreatedAt)
	if err == nil {
		r.Flag = &f
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(err, "read split flag of %s", name)
	}

	return r, nil
}

// Sweep runs the length check over every head artifact, splitting each one
// over budget. Derived artifacts (parts and indexes) and archived heads are
// skipped. A pin conflict flags the artifact and continues the sweep; any
// other failure aborts it.
func (sp *Splitter) Sweep() ([]Result, error) {
	heads, err := sp.store.List()
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, head := range heads {
		if head.Archived || IsDerived(head.Name) {
			continue
		}
		over, _, err := sp.Check(head.Name)
		if err != nil {
			return results, err
		}
		if !over {
			continue
		}
		res, err := sp.Split(head.Name)
		if errors.IsSplitIntegrityError(err) {
			logger.Logger.Warnw("sweep continuing past flagged artifact",
				logger.FieldArtifact, head.Name,
				logger.FieldError, err,
			)
			continue
		}
		if err != nil {
			return results, err
		}
		if res.Split {
			results = append(results, *res)
		}
	}
	return results, nil
}
