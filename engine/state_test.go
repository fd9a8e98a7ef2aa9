package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/graph"
	quiretest "github.com/teranos/quire/internal/testing"
)

func TestStateStoreRunLifecycle(t *testing.T) {
	st := NewStateStore(quiretest.CreateTestDB(t))
	stages := []graph.Stage{
		{ID: "a", Outputs: []graph.Kind{"x"}},
		{ID: "b", Inputs: []graph.Kind{"x"}, Outputs: []graph.Kind{"y"}},
	}

	run, err := st.CreateRun("research", stages)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunRunning, run.Status)

	records, err := st.StageRecords(run.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, graph.StatusPending, records["a"].Status)

	require.NoError(t, st.SetStageStatus(run.ID, "a", graph.StatusRunning, ""))
	require.NoError(t, st.SetStageStatus(run.ID, "a", graph.StatusFailed, "executor exploded"))

	records, err = st.StageRecords(run.ID)
	require.NoError(t, err)
	assert.Equal(t, graph.StatusFailed, records["a"].Status)
	assert.Equal(t, "executor exploded", records["a"].Error)
	assert.NotNil(t, records["a"].StartedAt)
	assert.NotNil(t, records["a"].CompletedAt)

	require.NoError(t, st.FinishRun(run.ID, RunFailed))
	loaded, err := st.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, loaded.Status)
	assert.NotNil(t, loaded.CompletedAt)

	runs, err := st.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestStateStoreUnknownRun(t *testing.T) {
	st := NewStateStore(quiretest.CreateTestDB(t))
	_, err := st.GetRun("nope")
	assert.True(t, errors.IsNotFoundError(err))
	assert.True(t, errors.IsNotFoundError(st.FinishRun("nope", RunComplete)))
}

func TestStageRecordsRejectsUnknownStatus(t *testing.T) {
	database := quiretest.CreateTestDB(t)
	st := NewStateStore(database)

	run, err := st.CreateRun("research", []graph.Stage{{ID: "a"}})
	require.NoError(t, err)

	// Only the engine writes stage rows; a hand-edited status must not load
	_, err = database.Exec(`UPDATE run_stages SET status = 'paused' WHERE run_id = ?`, run.ID)
	require.NoError(t, err)

	_, err = st.StageRecords(run.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}
