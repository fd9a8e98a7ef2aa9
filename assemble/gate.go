package assemble

import (
	"database/sql"
	"strings"
	"time"

	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/logger"
	"github.com/teranos/quire/store"
)

// CheckResult is the outcome of one validator on one artifact
type CheckResult struct {
	Artifact string
	Check    string
	Pass     bool
	Message  string
}

// Gate runs the registered validators over artifacts and records every
// outcome. Results are append-only: re-running the gate adds rows, it never
// rewrites history.
type Gate struct {
	db       *sql.DB
	registry *ValidatorRegistry
}

// NewGate creates a quality gate over an open database
func NewGate(db *sql.DB, registry *ValidatorRegistry) *Gate {
	return &Gate{db: db, registry: registry}
}

// Run executes every validator against every artifact, persists the
// outcomes under the run and returns them in order
func (g *Gate) Run(runID string, artifacts []*store.Artifact) ([]CheckResult, error) {
	now := time.Now().UTC()

	var results []CheckResult
	for _, a := range artifacts {
		for _, v := range g.registry.Validators() {
			pass, findings := v.Validate(a)
			res := CheckResult{
				Artifact: a.Name,
				Check:    v.Name(),
				Pass:     pass,
				Message:  strings.Join(findings, "; "),
			}
			results = append(results, res)

			_, err := g.db.Exec(
				`INSERT INTO gate_results (run_id, artifact, check_name, pass, message, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				runID, res.Artifact, res.Check, boolToInt(res.Pass), res.Message, now)
			if err != nil {
				return nil, errors.Wrapf(err, "record gate result %s on %s", res.Check, res.Artifact)
			}

			if !pass {
				logger.Logger.Warnw("quality check failed on [artifact:"+a.Name+"]: "+res.Message,
					logger.FieldArtifact, a.Name,
					logger.FieldCheck, res.Check,
				)
			}
		}
	}
	return results, nil
}

// Results loads the recorded gate outcomes of one run, oldest first
func (g *Gate) Results(runID string) ([]CheckResult, error) {
	rows, err := g.db.Query(
		`SELECT artifact, check_name, pass, message FROM gate_results WHERE run_id = ? ORDER BY id`,
		runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load gate results of run %s", runID)
	}
	defer rows.Close()

	var results []CheckResult
	for rows.Next() {
		var res CheckResult
		var pass int
		if err := rows.Scan(&res.Artifact, &res.Check, &pass, &res.Message); err != nil {
			return nil, errors.Wrap(err, "scan gate result")
		}
		res.Pass = pass != 0
		results = append(results, res)
	}
	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
