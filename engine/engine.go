package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/time/rate"

	"github.com/teranos/quire/config"
	"github.com/teranos/quire/errors"
	"github.com/teranos/quire/graph"
	"github.com/teranos/quire/logger"
	"github.com/teranos/quire/store"
)

// Engine drives pipeline runs over a stage registry. Stage state is
// persisted through the StateStore so interrupted runs resume where they
// stopped; artifacts move only through the artifact store.
type Engine struct {
	registry  *graph.Registry
	executors *ExecutorRegistry
	artifacts *store.Store
	state     *StateStore
	cfg       config.EngineConfig

	limiter  *rate.Limiter
	lockPath string
	advisory *memoryAdvisory
}

// Option configures an Engine
type Option func(*Engine)

// WithLockPath enables a cross-process file lock so two quire processes
// cannot drive runs against the same database concurrently
func WithLockPath(path string) Option {
	return func(e *Engine) { e.lockPath = path }
}

// New creates an execution engine
func New(reg *graph.Registry, execs *ExecutorRegistry, artifacts *store.Store, state *StateStore, cfg config.EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		registry:  reg,
		executors: execs,
		artifacts: artifacts,
		state:     state,
		cfg:       cfg,
		advisory:  newMemoryAdvisory(),
	}
	if cfg.DispatchPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(float64(cfg.DispatchPerMinute)/60.0), 1)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StageOutcome is the terminal state of one stage within a finished run
type StageOutcome struct {
	Status   graph.Status
	Err      error
	Duration time.Duration
}

// RunResult summarizes a finished run. Stage failures live here, not in the
// returned error: the engine completed its job of driving the run even when
// stages inside it failed.
type RunResult struct {
	RunID  string
	Status RunStatus
	Stages map[graph.StageID]StageOutcome
}

// Failed reports whether any stage failed or was blocked
func (r *RunResult) Failed() bool {
	return r.Status != RunComplete
}

// Run validates the pipeline graph, records a new run and executes it.
// A dependency cycle or infrastructure failure returns an error; stage
// failures are reported through the RunResult.
func (e *Engine) Run(ctx context.Context, pipeline string) (*RunResult, error) {
	if _, err := e.registry.Resolve(); err != nil {
		return nil, err
	}

	unlock, err := e.acquireLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	run, err := e.state.CreateRun(pipeline, e.registry.Stages())
	if err != nil {
		return nil, err
	}

	logger.Logger.Infow(fmt.Sprintf("starting [run:%s] of pipeline %s", run.ID, pipeline),
		logger.FieldRunID, run.ID,
		logger.FieldCount, len(e.registry.Stages()),
	)

	status := make(map[graph.StageID]graph.Status)
	for _, stage := range e.registry.Stages() {
		status[stage.ID] = graph.StatusPending
	}
	return e.execute(ctx, run, status)
}

// Resume restarts an interrupted run. Completed stages keep their status and
// their committed outputs; everything else is reset to pending and
// re-executed.
func (e *Engine) Resume(ctx context.Context, runID string) (*RunResult, error) {
	if _, err := e.registry.Resolve(); err != nil {
		return nil, err
	}

	unlock, err := e.acquireLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	run, err := e.state.GetRun(runID)
	if err != nil {
		return nil, err
	}
	records, err := e.state.StageRecords(runID)
	if err != nil {
		return nil, err
	}

	status := make(map[graph.StageID]graph.Status)
	var resumed int
	for _, stage := range e.registry.Stages() {
		rec, ok := records[stage.ID]
		if ok && rec.Status == graph.StatusComplete {
			status[stage.ID] = graph.StatusComplete
			continue
		}
		status[stage.ID] = graph.StatusPending
		if ok && rec.Status != graph.StatusPending {
			if err := e.state.SetStageStatus(runID, stage.ID, graph.StatusPending, ""); err != nil {
				return nil, err
			}
			resumed++
		}
	}

	if err := e.state.MarkRunning(runID); err != nil {
		return nil, err
	}

	logger.Logger.Infow(fmt.Sprintf("resuming [run:%s], %d stages reset", runID, resumed),
		logger.FieldRunID, runID,
		logger.FieldCount, resumed,
	)
	return e.execute(ctx, run, status)
}

// Dispatch forces a single stage to execute immediately, outside the
// scheduling loop. Input readiness is not checked: an input no stage has
// committed surfaces as ErrMissingInput. The outcome is persisted against
// the run so a later Resume sees it.
func (e *Engine) Dispatch(ctx context.Context, runID string, id graph.StageID) error {
	stage, err := e.registry.Stage(id)
	if err != nil {
		return err
	}
	if _, err := e.state.GetRun(runID); err != nil {
		return err
	}

	if err := e.state.SetStageStatus(runID, id, graph.StatusRunning, ""); err != nil {
		return err
	}
	started := time.Now()
	if err := e.runStage(ctx, runID, stage); err != nil {
		if serr := e.state.SetStageStatus(runID, id, graph.StatusFailed, err.Error()); serr != nil {
			return serr
		}
		return err
	}
	logger.Logger.Infow(fmt.Sprintf("stage %s dispatched manually, complete", id),
		logger.FieldRunID, runID,
		logger.FieldStage, id,
		logger.FieldDurationMS, time.Since(started).Milliseconds(),
	)
	return e.state.SetStageStatus(runID, id, graph.StatusComplete, "")
}

func (e *Engine) acquireLock() (func(), error) {
	if e.lockPath == "" {
		return func() {}, nil
	}
	l := flock.New(e.lockPath)
	locked, err := l.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "acquire run lock %s", e.lockPath)
	}
	if !locked {
		return nil, errors.Newf("another quire process holds the run lock at %s", e.lockPath)
	}
	return func() { l.Unlock() }, nil
}

type stageResult struct {
	stage    graph.Stage
	err      error
	duration time.Duration
}

// execute drives the scheduling loop: dispatch every pending stage whose
// inputs are satisfied, up to the worker bound, and fold results back into
// the status map until nothing is running or dispatchable.
func (e *Engine) execute(ctx context.Context, run *Run, status map[graph.StageID]graph.Status) (*RunResult, error) {
	order, err := e.registry.Resolve()
	if err != nil {
		return nil, err
	}

	workers := e.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	// Kinds already satisfied by completed stages (relevant on resume)
	available := make(map[graph.Kind]bool)
	for id, s := range status {
		if s == graph.StatusComplete {
			stage, err := e.registry.Stage(id)
			if err != nil {
				return nil, err
			}
			for _, kind := range stage.Outputs {
				available[kind] = true
			}
		}
	}

	outcomes := make(map[graph.StageID]StageOutcome)
	results := make(chan stageResult)
	inFlight := 0
	cancelled := false

	for {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
			logger.Logger.Warnw(fmt.Sprintf("[run:%s] cancelled, draining running stages", run.ID),
				logger.FieldRunID, run.ID,
			)
		}

		if !cancelled {
			for _, id := range order {
				if inFlight >= workers {
					break
				}
				if status[id] != graph.StatusPending {
					continue
				}
				stage, err := e.registry.Stage(id)
				if err != nil {
					return nil, err
				}
				if !e.inputsSatisfied(stage, available) {
					continue
				}

				if err := e.state.SetStageStatus(run.ID, id, graph.StatusReady, ""); err != nil {
					return nil, err
				}
				if e.limiter != nil {
					if err := e.limiter.Wait(ctx); err != nil {
						cancelled = true
						break
					}
				}
				e.advisory.check()

				status[id] = graph.StatusRunning
				if err := e.state.SetStageStatus(run.ID, id, graph.StatusRunning, ""); err != nil {
					return nil, err
				}
				inFlight++
				go func(stage graph.Stage) {
					started := time.Now()
					err := e.runStage(ctx, run.ID, stage)
					results <- stageResult{stage: stage, err: err, duration: time.Since(started)}
				}(stage)
			}
		}

		if inFlight == 0 {
			break
		}

		res := <-results
		inFlight--
		id := res.stage.ID

		if res.err != nil {
			if ctx.Err() != nil && errors.Is(res.err, context.Canceled) {
				// The run was cancelled out from under the stage; leave it
				// pending so resume re-executes it
				cancelled = true
				status[id] = graph.StatusPending
				if err := e.state.SetStageStatus(run.ID, id, graph.StatusPending, ""); err != nil {
					return nil, err
				}
				continue
			}
			status[id] = graph.StatusFailed
			outcomes[id] = StageOutcome{Status: graph.StatusFailed, Err: res.err, Duration: res.duration}
			if err := e.state.SetStageStatus(run.ID, id, graph.StatusFailed, res.err.Error()); err != nil {
				return nil, err
			}
			logger.Logger.Errorw(fmt.Sprintf("stage %s failed: %v", id, res.err),
				logger.FieldRunID, run.ID,
				logger.FieldStage, id,
				logger.FieldDurationMS, res.duration.Milliseconds(),
			)
			if err := e.blockDownstream(run.ID, id, status, outcomes); err != nil {
				return nil, err
			}
			continue
		}

		status[id] = graph.StatusComplete
		outcomes[id] = StageOutcome{Status: graph.StatusComplete, Duration: res.duration}
		if err := e.state.SetStageStatus(run.ID, id, graph.StatusComplete, ""); err != nil {
			return nil, err
		}
		for _, kind := range res.stage.Outputs {
			available[kind] = true
		}
		logger.Logger.Infow(fmt.Sprintf("stage %s complete", id),
			logger.FieldRunID, run.ID,
			logger.FieldStage, id,
			logger.FieldDurationMS, res.duration.Milliseconds(),
		)
	}

	result := &RunResult{RunID: run.ID, Stages: outcomes}
	result.Status = finalStatus(status, cancelled)
	for id, s := range status {
		if _, ok := outcomes[id]; !ok {
			outcomes[id] = StageOutcome{Status: s}
		}
	}

	if err := e.state.FinishRun(run.ID, result.Status); err != nil {
		return nil, err
	}

	logger.Logger.Infow(fmt.Sprintf("[run:%s] finished: %s", run.ID, result.Status),
		logger.FieldRunID, run.ID,
		logger.FieldStatus, string(result.Status),
	)
	return result, nil
}

// inputsSatisfied reports whether every produced input kind of the stage is
// available. Kinds with no producing stage are external and checked against
// the artifact store at execution time.
func (e *Engine) inputsSatisfied(stage graph.Stage, available map[graph.Kind]bool) bool {
	for _, kind := range stage.Inputs {
		if _, ok := e.registry.Producer(kind); !ok {
			continue
		}
		if !available[kind] {
			return false
		}
	}
	return true
}

// blockDownstream marks every pending transitive dependent of a failed stage
// as blocked, so unrelated branches keep running while the broken chain stops
func (e *Engine) blockDownstream(runID string, failed graph.StageID, status map[graph.StageID]graph.Status, outcomes map[graph.StageID]StageOutcome) error {
	for _, dep := range e.registry.Dependents(failed) {
		if status[dep] != graph.StatusPending {
			continue
		}
		status[dep] = graph.StatusBlockedDownstream
		outcomes[dep] = StageOutcome{Status: graph.StatusBlockedDownstream}
		msg := fmt.Sprintf("blocked: upstream stage %s failed", failed)
		if err := e.state.SetStageStatus(runID, dep, graph.StatusBlockedDownstream, msg); err != nil {
			return err
		}
		logger.Logger.Warnw(fmt.Sprintf("stage %s blocked by failure of %s", dep, failed),
			logger.FieldRunID, runID,
			logger.FieldStage, dep,
		)
	}
	return nil
}

// runStage gathers inputs, invokes the executor under the stage's timeout
// and commits the declared outputs
func (e *Engine) runStage(ctx context.Context, runID string, stage graph.Stage) error {
	inputs := make(Inputs, len(stage.Inputs))
	for _, kind := range stage.Inputs {
		a, err := e.artifacts.Get(string(kind))
		if errors.IsNotFoundError(err) {
			merr := errors.Wrapf(errors.ErrMissingInput, "stage %s requires %s", stage.ID, kind)
			return errors.WithHint(merr, "commit the input artifact or add a stage that produces it")
		}
		if err != nil {
			return err
		}
		inputs[kind] = a.Content
	}

	ex, err := e.executors.Get(stage.Handler)
	if err != nil {
		serr := errors.Wrapf(errors.ErrStageExecution, "stage %s: no executor registered for handler %s", stage.ID, stage.Handler)
		return errors.WithHint(serr, "register the handler before running the pipeline")
	}

	execCtx := ctx
	if !stage.Abortable {
		// A non-abortable executor may not be idempotent; let it finish
		// even when the run is cancelled
		execCtx = context.WithoutCancel(ctx)
	}
	timeout := stage.Timeout
	if timeout == 0 && e.cfg.StageTimeoutSeconds > 0 {
		timeout = time.Duration(e.cfg.StageTimeoutSeconds) * time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(execCtx, timeout)
		defer cancel()
	}

	outputs, err := ex.Execute(execCtx, inputs)
	if err != nil {
		if timeout > 0 && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			terr := errors.Mark(errors.Wrapf(err, "stage %s exceeded %s", stage.ID, timeout), errors.ErrStageTimeout)
			return errors.WithDetailf(terr, "run: %s", runID)
		}
		if errors.Is(err, context.Canceled) {
			// Run cancellation, not a stage fault
			return errors.Wrapf(err, "stage %s interrupted", stage.ID)
		}
		return errors.Mark(errors.Wrapf(err, "stage %s", stage.ID), errors.ErrStageExecution)
	}

	for _, kind := range stage.Outputs {
		content, ok := outputs[kind]
		if !ok {
			return errors.Wrapf(errors.ErrStageExecution, "stage %s did not produce declared output %s", stage.ID, kind)
		}
		if _, err := e.artifacts.Put(string(kind), content, string(stage.ID)); err != nil {
			return err
		}
	}
	for kind := range outputs {
		if !containsKind(stage.Outputs, kind) {
			// Fixture executors can over-produce; only declared kinds commit
			logger.Logger.Debugw("discarding undeclared output",
				logger.FieldStage, stage.ID,
				logger.FieldArtifact, string(kind),
			)
		}
	}
	return nil
}

func containsKind(kinds []graph.Kind, kind graph.Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// finalStatus folds per-stage terminal states into the run status
func finalStatus(status map[graph.StageID]graph.Status, cancelled bool) RunStatus {
	if cancelled {
		return RunCancelled
	}
	for _, s := range status {
		if s != graph.StatusComplete {
			return RunFailed
		}
	}
	return RunComplete
}
