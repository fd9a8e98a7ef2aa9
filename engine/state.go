package engine

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/graph"
)

// RunStatus is the lifecycle state of a whole run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunComplete  RunStatus = "complete"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run is the persisted record of one pipeline run
type Run struct {
	ID          string
	Pipeline    string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// StageRecord is the persisted state of one stage within a run
type StageRecord struct {
	RunID       string
	StageID     graph.StageID
	Status      graph.Status
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// StateStore persists run and stage state so an interrupted run can resume
// without repeating completed stages
type StateStore struct {
	db *sql.DB
}

// NewStateStore creates a run-state store over an open database
func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

// CreateRun records a new run and one pending row per stage
func (st *StateStore) CreateRun(pipeline string, stages []graph.Stage) (*Run, error) {
	now := time.Now().UTC()
	run := &Run{
		ID:        uuid.New().String(),
		Pipeline:  pipeline,
		Status:    RunRunning,
		StartedAt: now,
		UpdatedAt: now,
	}

	tx, err := st.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "begin run creation")
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, pipeline, status, started_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Pipeline, run.Status, run.StartedAt, run.UpdatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "create run for pipeline %s", pipeline)
	}

	for _, stage := range stages {
		_, err = tx.Exec(
			`INSERT INTO run_stages (run_id, stage_id, status, updated_at) VALUES (?, ?, ?, ?)`,
			run.ID, stage.ID, graph.StatusPending, now)
		if err != nil {
			return nil, errors.Wrapf(err, "create stage row %s", stage.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit run creation")
	}
	return run, nil
}

// GetRun loads one run by ID
func (st *StateStore) GetRun(id string) (*Run, error) {
	var run Run
	var completed sql.NullTime
	err := st.db.QueryRow(
		`SELECT id, pipeline, status, started_at, completed_at, updated_at FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Pipeline, &run.Status, &run.StartedAt, &completed, &run.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("run %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load run %s", id)
	}
	if completed.Valid {
		run.CompletedAt = &completed.Time
	}
	return &run, nil
}

// ListRuns returns every run, most recent first
func (st *StateStore) ListRuns() ([]Run, error) {
	rows, err := st.db.Query(
		`SELECT id, pipeline, status, started_at, completed_at, updated_at FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var completed sql.NullTime
		if err := rows.Scan(&run.ID, &run.Pipeline, &run.Status, &run.StartedAt, &completed, &run.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if completed.Valid {
			run.CompletedAt = &completed.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FinishRun records the terminal status of a run
func (st *StateStore) FinishRun(id string, status RunStatus) error {
	now := time.Now().UTC()
	res, err := st.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		status, now, now, id)
	if err != nil {
		return errors.Wrapf(err, "failed to finish run %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "finish run rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("run %s", id)
	}
	return nil
}

// MarkRunning flips a run back to running, used by resume
func (st *StateStore) MarkRunning(id string) error {
	_, err := st.db.Exec(
		`UPDATE runs SET status = ?, completed_at = NULL, updated_at = ? WHERE id = ?`,
		RunRunning, time.Now().UTC(), id)
	return errors.Wrapf(err, "failed to mark run %s running", id)
}

// SetStageStatus persists a stage transition within a run. The error text is
// kept only for failed stages; other transitions clear it.
func (st *StateStore) SetStageStatus(runID string, stageID graph.StageID, status graph.Status, stageErr string) error {
	now := time.Now().UTC()

	var started, completed interface{}
	if status == graph.StatusRunning {
		started = now
	}
	if status.IsTerminal() {
		completed = now
	}

	_, err := st.db.Exec(`
		INSERT INTO run_stages (run_id, stage_id, status, error, started_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stage_id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			started_at = COALESCE(excluded.started_at, run_stages.started_at),
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		runID, stageID, status, stageErr, started, completed, now)
	if err != nil {
		err = errors.Wrap(err, "failed to persist stage status")
		err = errors.WithDetailf(err, "run: %s stage: %s -> %s", runID, stageID, status)
		return err
	}
	return nil
}

// StageRecords loads the persisted state of every stage in a run
func (st *StateStore) StageRecords(runID string) (map[graph.StageID]StageRecord, error) {
	rows, err := st.db.Query(
		`SELECT run_id, stage_id, status, error, started_at, completed_at FROM run_stages WHERE run_id = ?`,
		runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load stages of run %s", runID)
	}
	defer rows.Close()

	records := make(map[graph.StageID]StageRecord)
	for rows.Next() {
		var rec StageRecord
		var stageErr sql.NullString
		var started, completed sql.NullTime
		if err := rows.Scan(&rec.RunID, &rec.StageID, &rec.Status, &stageErr, &started, &completed); err != nil {
			return nil, errors.Wrap(err, "scan stage record")
		}
		// Stage rows are only ever written by the engine; an unknown status
		// means the database was edited by hand
		if !graph.IsValidStatus(string(rec.Status)) {
			return nil, errors.Newf("run %s stage %s has unknown status %q", runID, rec.StageID, rec.Status)
		}
		rec.Error = stageErr.String
		if started.Valid {
			rec.StartedAt = &started.Time
		}
		if completed.Valid {
			rec.CompletedAt = &completed.Time
		}
		records[rec.StageID] = rec
	}
	return records, rows.Err()
}
