package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/quire/config"
	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/graph"
	quiretest "github.com/teranos/quire/internal/testing"
	"github.com/teranos/quire/store"
)

type engineFixture struct {
	registry  *graph.Registry
	executors *ExecutorRegistry
	artifacts *store.Store
	state     *StateStore
	cfg       config.EngineConfig
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	database := quiretest.CreateTestDB(t)
	return &engineFixture{
		registry:  graph.NewRegistry(),
		executors: NewExecutorRegistry(),
		artifacts: store.NewStore(database),
		state:     NewStateStore(database),
		cfg:       config.EngineConfig{Workers: 1},
	}
}

func (f *engineFixture) engine() *Engine {
	return New(f.registry, f.executors, f.artifacts, f.state, f.cfg)
}

// passthrough returns an executor producing fixed content for each output kind
func passthrough(outputs ...graph.Kind) ExecutorFunc {
	return func(ctx context.Context, in Inputs) (Outputs, error) {
		out := make(Outputs)
		for _, kind := range outputs {
			out[kind] = "content of " + string(kind) + "\n"
		}
		return out, nil
	}
}

// researchStages wires the intake -> outline -> {lit_review, methods} shape
func (f *engineFixture) researchStages(t *testing.T) {
	t.Helper()
	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "intake", Inputs: []graph.Kind{"topic"}, Outputs: []graph.Kind{"notes"}, Handler: "intake",
	}))
	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "outline", Inputs: []graph.Kind{"notes"}, Outputs: []graph.Kind{"outline"}, Handler: "outline",
	}))
	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "lit_review", Inputs: []graph.Kind{"outline"}, Outputs: []graph.Kind{"review"}, Handler: "lit_review",
	}))
	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "methods", Inputs: []graph.Kind{"outline"}, Outputs: []graph.Kind{"methods"}, Handler: "methods",
	}))

	require.NoError(t, f.executors.RegisterFunc("intake", passthrough("notes")))
	require.NoError(t, f.executors.RegisterFunc("outline", passthrough("outline")))
	require.NoError(t, f.executors.RegisterFunc("lit_review", passthrough("review")))
	require.NoError(t, f.executors.RegisterFunc("methods", passthrough("methods")))
}

func (f *engineFixture) seedTopic(t *testing.T) {
	t.Helper()
	_, err := f.artifacts.Put("topic", "distributed tracing\n", "operator")
	require.NoError(t, err)
}

func TestRunCompletesPipeline(t *testing.T) {
	f := newEngineFixture(t)
	f.researchStages(t)
	f.seedTopic(t)

	result, err := f.engine().Run(context.Background(), "research")
	require.NoError(t, err)
	assert.Equal(t, RunComplete, result.Status)
	assert.False(t, result.Failed())

	for _, id := range []graph.StageID{"intake", "outline", "lit_review", "methods"} {
		assert.Equal(t, graph.StatusComplete, result.Stages[id].Status, "stage %s", id)
	}

	review, err := f.artifacts.Get("review")
	require.NoError(t, err)
	assert.Equal(t, "lit_review", review.ProducedBy)

	run, err := f.state.GetRun(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunComplete, run.Status)
	assert.NotNil(t, run.CompletedAt)
}

func TestRunFailureBlocksOnlyDownstream(t *testing.T) {
	f := newEngineFixture(t)
	f.researchStages(t)
	f.seedTopic(t)

	// Independent branch off the same external input keeps running
	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "glossary", Inputs: []graph.Kind{"topic"}, Outputs: []graph.Kind{"glossary"}, Handler: "glossary",
	}))
	require.NoError(t, f.executors.RegisterFunc("glossary", passthrough("glossary")))

	require.NoError(t, f.executors.RegisterFunc("outline", func(ctx context.Context, in Inputs) (Outputs, error) {
		return nil, errors.New("model refused the outline")
	}))

	result, err := f.engine().Run(context.Background(), "research")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, result.Status)

	assert.Equal(t, graph.StatusComplete, result.Stages["intake"].Status)
	assert.Equal(t, graph.StatusComplete, result.Stages["glossary"].Status)
	assert.Equal(t, graph.StatusFailed, result.Stages["outline"].Status)
	assert.Equal(t, graph.StatusBlockedDownstream, result.Stages["lit_review"].Status)
	assert.Equal(t, graph.StatusBlockedDownstream, result.Stages["methods"].Status)

	require.Error(t, result.Stages["outline"].Err)
	assert.True(t, errors.Is(result.Stages["outline"].Err, errors.ErrStageExecution))

	records, err := f.state.StageRecords(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, graph.StatusBlockedDownstream, records["lit_review"].Status)
	assert.Contains(t, records["lit_review"].Error, "outline")
}

func TestResumeSkipsCompletedStages(t *testing.T) {
	f := newEngineFixture(t)
	f.researchStages(t)
	f.seedTopic(t)

	intakeRuns := 0
	require.NoError(t, f.executors.RegisterFunc("intake", func(ctx context.Context, in Inputs) (Outputs, error) {
		intakeRuns++
		return Outputs{"notes": "notes\n"}, nil
	}))

	broken := true
	require.NoError(t, f.executors.RegisterFunc("outline", func(ctx context.Context, in Inputs) (Outputs, error) {
		if broken {
			return nil, errors.New("transient upstream outage")
		}
		return Outputs{"outline": "outline\n"}, nil
	}))

	first, err := f.engine().Run(context.Background(), "research")
	require.NoError(t, err)
	require.Equal(t, RunFailed, first.Status)
	require.Equal(t, 1, intakeRuns)

	broken = false
	second, err := f.engine().Resume(context.Background(), first.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunComplete, second.Status)
	assert.Equal(t, 1, intakeRuns, "completed stages must not re-run on resume")
	assert.Equal(t, graph.StatusComplete, second.Stages["outline"].Status)
	assert.Equal(t, graph.StatusComplete, second.Stages["lit_review"].Status)
}

func TestRunMissingExternalInput(t *testing.T) {
	f := newEngineFixture(t)
	f.researchStages(t)
	// no topic artifact seeded

	result, err := f.engine().Run(context.Background(), "research")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, result.Status)
	assert.Equal(t, graph.StatusFailed, result.Stages["intake"].Status)
	assert.True(t, errors.Is(result.Stages["intake"].Err, errors.ErrMissingInput))
	assert.Equal(t, graph.StatusBlockedDownstream, result.Stages["outline"].Status)
}

func TestStageTimeout(t *testing.T) {
	f := newEngineFixture(t)
	f.seedTopic(t)
	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "slow", Inputs: []graph.Kind{"topic"}, Outputs: []graph.Kind{"notes"},
		Handler: "slow", Timeout: 20 * time.Millisecond, Abortable: true,
	}))
	require.NoError(t, f.executors.RegisterFunc("slow", func(ctx context.Context, in Inputs) (Outputs, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return Outputs{"notes": "too late\n"}, nil
		}
	}))

	result, err := f.engine().Run(context.Background(), "research")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, result.Status)
	assert.True(t, errors.IsStageTimeoutError(result.Stages["slow"].Err))
}

func TestRunRejectsCyclicPipeline(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "a", Inputs: []graph.Kind{"y"}, Outputs: []graph.Kind{"x"}, Handler: "a",
	}))
	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "b", Inputs: []graph.Kind{"x"}, Outputs: []graph.Kind{"y"}, Handler: "b",
	}))

	_, err := f.engine().Run(context.Background(), "cyclic")
	require.Error(t, err)
	assert.True(t, errors.IsCycleError(err))
}

func TestRunUnknownHandler(t *testing.T) {
	f := newEngineFixture(t)
	f.seedTopic(t)
	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "intake", Inputs: []graph.Kind{"topic"}, Outputs: []graph.Kind{"notes"}, Handler: "nobody",
	}))

	result, err := f.engine().Run(context.Background(), "research")
	require.NoError(t, err)
	assert.Equal(t, RunFailed, result.Status)
	assert.True(t, errors.Is(result.Stages["intake"].Err, errors.ErrStageExecution))
}

func TestRunMissingDeclaredOutput(t *testing.T) {
	f := newEngineFixture(t)
	f.seedTopic(t)
	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "intake", Inputs: []graph.Kind{"topic"}, Outputs: []graph.Kind{"notes"}, Handler: "intake",
	}))
	require.NoError(t, f.executors.RegisterFunc("intake", func(ctx context.Context, in Inputs) (Outputs, error) {
		return Outputs{}, nil
	}))

	result, err := f.engine().Run(context.Background(), "research")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusFailed, result.Stages["intake"].Status)
	assert.Contains(t, result.Stages["intake"].Err.Error(), "declared output")
}

func TestParallelBranchesRunConcurrently(t *testing.T) {
	f := newEngineFixture(t)
	f.researchStages(t)
	f.seedTopic(t)
	f.cfg.Workers = 2

	// Each branch stage waits for the other to start; only a pool of two
	// lets both be in flight at once
	litStarted := make(chan struct{})
	methodsStarted := make(chan struct{})
	awaitPeer := func(mine chan struct{}, peer chan struct{}, out Outputs) ExecutorFunc {
		return func(ctx context.Context, in Inputs) (Outputs, error) {
			close(mine)
			select {
			case <-peer:
				return out, nil
			case <-time.After(5 * time.Second):
				return nil, errors.New("peer branch never started")
			}
		}
	}
	require.NoError(t, f.executors.RegisterFunc("lit_review",
		awaitPeer(litStarted, methodsStarted, Outputs{"review": "review\n"})))
	require.NoError(t, f.executors.RegisterFunc("methods",
		awaitPeer(methodsStarted, litStarted, Outputs{"methods": "methods\n"})))

	result, err := f.engine().Run(context.Background(), "research")
	require.NoError(t, err)
	assert.Equal(t, RunComplete, result.Status)
}

func TestRunCancellation(t *testing.T) {
	f := newEngineFixture(t)
	f.seedTopic(t)
	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "long", Inputs: []graph.Kind{"topic"}, Outputs: []graph.Kind{"notes"},
		Handler: "long", Abortable: true,
	}))
	require.NoError(t, f.registry.Register(graph.Stage{
		ID: "after", Inputs: []graph.Kind{"notes"}, Outputs: []graph.Kind{"out"}, Handler: "after",
	}))
	require.NoError(t, f.executors.RegisterFunc("after", passthrough("out")))

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	require.NoError(t, f.executors.RegisterFunc("long", func(ctx context.Context, in Inputs) (Outputs, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	go func() {
		<-started
		cancel()
	}()

	result, err := f.engine().Run(ctx, "research")
	require.NoError(t, err)
	assert.Equal(t, RunCancelled, result.Status)
	// The downstream stage never dispatched
	assert.Equal(t, graph.StatusPending, result.Stages["after"].Status)
}

func TestExecutorRegistry(t *testing.T) {
	r := NewExecutorRegistry()
	require.Error(t, r.Register("", passthrough()))
	require.Error(t, r.Register("x", nil))

	require.NoError(t, r.RegisterFunc("x", passthrough("k")))
	ex, err := r.Get("x")
	require.NoError(t, err)
	assert.NotNil(t, ex)

	_, err = r.Get("missing")
	assert.True(t, errors.IsNotFoundError(err))
	assert.Equal(t, []string{"x"}, r.Names())
}

func TestDispatchForcesSingleStage(t *testing.T) {
	f := newEngineFixture(t)
	f.researchStages(t)
	f.seedTopic(t)

	run, err := f.state.CreateRun("research", f.registry.Stages())
	require.NoError(t, err)

	require.NoError(t, f.engine().Dispatch(context.Background(), run.ID, "intake"))

	notes, err := f.artifacts.Get("notes")
	require.NoError(t, err)
	assert.Equal(t, "intake", notes.ProducedBy)

	records, err := f.state.StageRecords(run.ID)
	require.NoError(t, err)
	assert.Equal(t, graph.StatusComplete, records["intake"].Status)
}

func TestDispatchWithoutInputFails(t *testing.T) {
	f := newEngineFixture(t)
	f.researchStages(t)
	// No topic seeded: intake's external input is absent

	run, err := f.state.CreateRun("research", f.registry.Stages())
	require.NoError(t, err)

	err = f.engine().Dispatch(context.Background(), run.ID, "intake")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingInput))

	records, err := f.state.StageRecords(run.ID)
	require.NoError(t, err)
	assert.Equal(t, graph.StatusFailed, records["intake"].Status)
}
