// Package xref maintains the cross-reference index: the map from logical
// reference targets to physical (artifact, part, anchor) locations. The
// splitter patches it after every pass; downstream consumers resolve through
// it. An unresolvable reference is a hard error surfaced to the quality
// gate, never silently dropped.
package xref

import (
	"database/sql"
	"time"

	"github.com/teranos/quire/errors"
)

// Location is the physical position of a logical reference target.
// Part 0 means the unsplit root artifact.
type Location struct {
	Artifact string `json:"artifact"`
	Part     int    `json:"part"`
	Anchor   string `json:"anchor"`
}

// Pin records an externally-cited target and the location the external
// citation expects.
type Pin struct {
	Target   string
	Location Location
}

// Index is the SQLite-backed cross-reference index
type Index struct {
	db *sql.DB
}

// NewIndex creates a cross-reference index over an open database
func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

// Register records or updates the physical location of a logical target
func (ix *Index) Register(target string, loc Location) error {
	if target == "" {
		return errors.New("reference target cannot be empty")
	}
	_, err := ix.db.Exec(`
		INSERT INTO xref_locations (target, artifact, part_index, anchor, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(target) DO UPDATE SET
			artifact = excluded.artifact,
			part_index = excluded.part_index,
			anchor = excluded.anchor,
			updated_at = excluded.updated_at`,
		target, loc.Artifact, loc.Part, loc.Anchor, time.Now().UTC())
	if err != nil {
		err = errors.Wrap(err, "failed to register reference")
		err = errors.WithDetailf(err, "target: %s", target)
		return err
	}
	return nil
}

// Resolve returns the physical location of a logical target.
// A miss is a hard ErrNotFound carrying the target name.
func (ix *Index) Resolve(target string) (Location, error) {
	var loc Location
	err := ix.db.QueryRow(
		`SELECT artifact, part_index, anchor FROM xref_locations WHERE target = ?`,
		target,
	).Scan(&loc.Artifact, &loc.Part, &loc.Anchor)
	if errors.Is(err, sql.ErrNoRows) {
		return Location{}, errors.NewNotFoundError("reference target %s", target)
	}
	if err != nil {
		return Location{}, errors.Wrapf(err, "failed to resolve %s", target)
	}
	return loc, nil
}

// Invalidate drops the locations registered for one artifact, called when
// the artifact is about to be resplit. Pinned targets survive: the pin
// records what an external citation expects and must be checked against the
// new plan, not discarded with it.
func (ix *Index) Invalidate(artifact string) error {
	_, err := ix.db.Exec(
		`DELETE FROM xref_locations WHERE artifact = ? AND pinned = 0`, artifact)
	if err != nil {
		return errors.Wrapf(err, "failed to invalidate references of %s", artifact)
	}
	return nil
}

// SetPin marks a registered target as pinned by an external document
func (ix *Index) SetPin(target string) error {
	res, err := ix.db.Exec(`UPDATE xref_locations SET pinned = 1 WHERE target = ?`, target)
	if err != nil {
		return errors.Wrapf(err, "failed to pin %s", target)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "pin rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("reference target %s", target)
	}
	return nil
}

// Pinned reports whether the target carries a pin. An unregistered target
// is simply not pinned.
func (ix *Index) Pinned(target string) (bool, error) {
	var pinned int
	err := ix.db.QueryRow(`SELECT pinned FROM xref_locations WHERE target = ?`, target).Scan(&pinned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to check pin on %s", target)
	}
	return pinned != 0, nil
}

// Pins returns every pinned target located in the given artifact, with the
// location the external citation expects
func (ix *Index) Pins(artifact string) ([]Pin, error) {
	rows, err := ix.db.Query(
		`SELECT target, artifact, part_index, anchor FROM xref_locations
		 WHERE artifact = ? AND pinned = 1 ORDER BY target`, artifact)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list pins of %s", artifact)
	}
	defer rows.Close()

	var pins []Pin
	for rows.Next() {
		var p Pin
		if err := rows.Scan(&p.Target, &p.Location.Artifact, &p.Location.Part, &p.Location.Anchor); err != nil {
			return nil, errors.Wrap(err, "scan pin")
		}
		pins = append(pins, p)
	}
	return pins, rows.Err()
}

// Targets returns every registered target located in the given artifact
func (ix *Index) Targets(artifact string) ([]string, error) {
	rows, err := ix.db.Query(
		`SELECT target FROM xref_locations WHERE artifact = ? ORDER BY target`, artifact)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list targets of %s", artifact)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, errors.Wrap(err, "scan target")
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}
