package store

import (
	"database/sql"
	"sync"
	"time"

	"github.com/teranos/quire/errors"
)

// Store handles persistence of versioned artifacts.
// Concurrent reads are free (immutable, versioned data); writes are
// serialized per artifact name with compare-and-append semantics so two
// stages never race to create the same version.
type Store struct {
	db *sql.DB

	mu        sync.Mutex
	nameLocks map[string]*sync.Mutex
}

// NewStore creates a new artifact store over an open database
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:        db,
		nameLocks: make(map[string]*sync.Mutex),
	}
}

// lockName returns the write lock for one artifact name.
// The splitter also takes this lock for the duration of a split pass.
func (s *Store) lockName(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.nameLocks[name]
	if !ok {
		l = &sync.Mutex{}
		s.nameLocks[name] = l
	}
	return l
}

// LockName takes the exclusive per-name lock. Used by the splitter so no
// commit lands on an artifact mid-split. Returns the unlock function.
func (s *Store) LockName(name string) func() {
	l := s.lockName(name)
	l.Lock()
	return l.Unlock
}

// Put commits content as a new version of the named artifact and returns the
// version number. Committing content identical to the current head is a
// no-op returning the head version, so re-running a stage with unchanged
// output does not inflate version history.
func (s *Store) Put(name, content, producedBy string) (int, error) {
	if name == "" {
		return 0, errors.New("artifact name cannot be empty")
	}

	l := s.lockName(name)
	l.Lock()
	defer l.Unlock()

	return s.put(name, content, producedBy)
}

// put assumes the caller holds the per-name lock
func (s *Store) put(name, content, producedBy string) (int, error) {
	hash := HashContent(content)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "begin artifact commit")
	}
	defer tx.Rollback()

	var headVersion int
	var headHash string
	err = tx.QueryRow(
		`SELECT version, content_hash FROM artifacts WHERE name = ? ORDER BY version DESC LIMIT 1`,
		name,
	).Scan(&headVersion, &headHash)
	switch {
	case err == sql.ErrNoRows:
		headVersion = 0
	case err != nil:
		return 0, errors.Wrapf(err, "read head version of %s", name)
	case headHash == hash:
		// Identical content: idempotent commit
		return headVersion, nil
	}

	version := headVersion + 1
	_, err = tx.Exec(
		`INSERT INTO artifacts (name, version, content, size_lines, content_hash, produced_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, version, content, CountLines(content), hash, producedBy, time.Now().UTC(),
	)
	if err != nil {
		err = errors.Wrap(err, "failed to commit artifact")
		err = errors.WithDetailf(err, "artifact: %s@%d", name, version)
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrapf(err, "commit artifact %s@%d", name, version)
	}
	return version, nil
}

const artifactColumns = `name, version, content, size_lines, content_hash, produced_by, archived, created_at`

func scanArtifact(row interface{ Scan(...interface{}) error }) (*Artifact, error) {
	var a Artifact
	var archived int
	if err := row.Scan(&a.Name, &a.Version, &a.Content, &a.Size, &a.Hash, &a.ProducedBy, &archived, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Archived = archived != 0
	return &a, nil
}

// Get returns the latest committed version of the named artifact.
// An unknown name returns ErrNotFound; callers cannot distinguish "not yet
// produced" from "pipeline misconfigured" - both surface this error,
// disambiguated only by the caller's own dependency knowledge.
func (s *Store) Get(name string) (*Artifact, error) {
	a, err := scanArtifact(s.db.QueryRow(
		`SELECT `+artifactColumns+` FROM artifacts WHERE name = ? ORDER BY version DESC LIMIT 1`,
		name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("artifact %s", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get artifact %s", name)
	}
	return a, nil
}

// GetVersion returns one specific committed version
func (s *Store) GetVersion(name string, version int) (*Artifact, error) {
	a, err := scanArtifact(s.db.QueryRow(
		`SELECT `+artifactColumns+` FROM artifacts WHERE name = ? AND version = ?`,
		name, version,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("artifact %s@%d", name, version)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get artifact %s@%d", name, version)
	}
	return a, nil
}

// Versions returns the ordered version list for one artifact name
func (s *Store) Versions(name string) ([]int, error) {
	rows, err := s.db.Query(`SELECT version FROM artifacts WHERE name = ? ORDER BY version`, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list versions of %s", name)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan version")
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate versions")
	}
	if len(versions) == 0 {
		return nil, errors.NewNotFoundError("artifact %s", name)
	}
	return versions, nil
}

// Archive marks one committed version as archived. Archival is the only
// form of destruction: the row stays readable via GetVersion.
func (s *Store) Archive(name string, version int) error {
	res, err := s.db.Exec(`UPDATE artifacts SET archived = 1 WHERE name = ? AND version = ?`, name, version)
	if err != nil {
		return errors.Wrapf(err, "failed to archive %s@%d", name, version)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "archive rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("artifact %s@%d", name, version)
	}
	return nil
}

// List returns the head version of every artifact name, without content,
// ordered by name. Archived heads are included with the flag set.
func (s *Store) List() ([]Artifact, error) {
	rows, err := s.db.Query(`
		SELECT a.name, a.version, '', a.size_lines, a.content_hash, a.produced_by, a.archived, a.created_at
		FROM artifacts a
		JOIN (SELECT name, MAX(version) AS version FROM artifacts GROUP BY name) heads
		  ON a.name = heads.name AND a.version = heads.version
		ORDER BY a.name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list artifacts")
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan artifact")
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}

// FindByHash returns every (name, version) whose content matches the hash.
// The content-addressed lookup lets callers detect duplicate commits across
// names.
func (s *Store) FindByHash(hash string) ([]Artifact, error) {
	rows, err := s.db.Query(
		`SELECT `+artifactColumns+` FROM artifacts WHERE content_hash = ? ORDER BY name, version`, hash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find by hash")
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan artifact")
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}
