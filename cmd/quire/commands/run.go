package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/quire/config"
	"github.com/teranos/quire/engine"
	"github.com/teranos/quire/pipeline"
	"github.com/teranos/quire/split"
)

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run <pipeline-def>",
	Short: "Run a pipeline from a definition file",
	Long: `run — Execute a pipeline definition

Loads the pipeline (TOML or YAML), validates the stage graph, then executes
every stage in dependency order through the worker pool. Stage state is
persisted; an interrupted or failed run can be continued with 'quire resume'.

After the run, the length monitor sweeps committed artifacts and splits any
that exceed their size budget.

Examples:
  quire run research.toml
  quire run research.yaml --fixtures ./fixtures
  quire run research.toml --workers 4

Exit codes:
  0  every stage completed
  1  one or more stages failed or were blocked, or the definition is invalid
  2  the definition declares a dependency cycle`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runFixturesDir string
	runWorkers     int
)

func init() {
	RunCmd.Flags().StringVar(&runFixturesDir, "fixtures", "", "Directory of staged files backing 'file'-handled stages")
	RunCmd.Flags().IntVar(&runWorkers, "workers", 0, "Worker pool size (overrides configuration)")
}

func runRun(cmd *cobra.Command, args []string) error {
	def, err := pipeline.Load(args[0])
	if err != nil {
		return err
	}
	registry, err := def.Build()
	if err != nil {
		return err
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	engineCfg := svc.cfg.Engine
	if runWorkers > 0 {
		engineCfg.Workers = runWorkers
	}

	executors := engine.NewExecutorRegistry()
	if runFixturesDir != "" {
		if err := executors.Register("file", engine.FileExecutor{Dir: runFixturesDir}); err != nil {
			return err
		}
	}

	eng := engine.New(registry, executors, svc.store, svc.state, engineCfg,
		engine.WithLockPath(svc.lockPath()))

	// Edits to the project config during a long run take effect at the next
	// phase boundary: budget changes are picked up before the sweep
	var reloaded atomic.Pointer[config.Config]
	if path := config.ProjectConfigPath(); path != "" {
		watcher, err := config.NewWatcher(path)
		if err != nil {
			return err
		}
		watcher.OnReload(func(c *config.Config) error {
			reloaded.Store(c)
			return nil
		})
		watcher.Start()
		defer watcher.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := eng.Run(ctx, def.Name)
	if err != nil {
		return err
	}

	order, _ := registry.Resolve()
	renderStages(result, order)

	if cfg := reloaded.Load(); cfg != nil {
		svc.cfg = cfg
		svc.splitter = split.NewSplitter(svc.store, svc.index, svc.db, cfg.Split)
	}

	splits, err := svc.splitter.Sweep()
	if err != nil {
		return err
	}
	for _, s := range splits {
		fmt.Printf("split %s into %d parts (+%s)\n", s.Artifact, len(s.Parts), s.IndexName)
	}

	if result.Failed() {
		return ErrRunFailed
	}
	return nil
}
